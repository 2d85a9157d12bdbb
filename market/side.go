package market

// Side is the direction of a position: +1 long (BUY), -1 short (SELL).
type Side int8

const (
	Buy  Side = +1
	Sell Side = -1
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	}
	return "UNKNOWN"
}

// Sign returns the P/L sign multiplier for the side.
func (s Side) Sign() float64 {
	return float64(s)
}
