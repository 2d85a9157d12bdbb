// Package market defines the core market data types shared by the feed,
// engine, and strategy packages: OHLCV bars, timeframes, order sides, and
// per-instrument contract metadata.
package market

import "time"

// Bar is one OHLCV candle for a fixed time interval, plus the spread (in
// points) observed when the bar was produced. Indicator values attached by
// the engine live in Indicators, keyed by the name the strategy requested
// ("rsi", "ema", ...). A Bar is never mutated after the feed produces it;
// the engine attaches indicators to a copy.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
	Spread int64

	Indicators map[string]float64
}

// Indicator returns the attached indicator value for name. ok is false when
// the engine did not attach one (indicator still warming up, or never
// requested).
func (b Bar) Indicator(name string) (v float64, ok bool) {
	v, ok = b.Indicators[name]
	return v, ok
}

// WithIndicators returns a copy of the bar carrying the given indicator
// values. The receiver is left untouched.
func (b Bar) WithIndicators(vals map[string]float64) Bar {
	nb := b
	nb.Indicators = vals
	return nb
}
