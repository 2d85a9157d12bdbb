package ledger

import (
	"encoding/json"
	"math"
)

// Ratio is a nullable ratio metric. Several performance ratios are undefined
// for some trade histories (profit factor with no losses, win rate with no
// trades); Ratio keeps "undefined" distinct from "zero" so a parameter sweep
// can tell them apart. Float64 collapses undefined to 0, the convention the
// plain-number report columns use.
type Ratio struct {
	value float64
	valid bool
}

// DefinedRatio wraps a concrete value. Non-finite input yields an undefined
// Ratio so NaN/Inf never reach a report.
func DefinedRatio(v float64) Ratio {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Ratio{}
	}
	return Ratio{value: v, valid: true}
}

// UndefinedRatio is the null ratio.
func UndefinedRatio() Ratio { return Ratio{} }

// Valid reports whether the ratio has a defined value.
func (r Ratio) Valid() bool { return r.valid }

// Float64 returns the value, or 0 when undefined.
func (r Ratio) Float64() float64 {
	if !r.valid {
		return 0
	}
	return r.value
}

// Value returns the value and whether it is defined.
func (r Ratio) Value() (float64, bool) { return r.value, r.valid }

// MarshalJSON renders undefined ratios as null.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.value)
}

// UnmarshalJSON accepts null or a number.
func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Ratio{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = DefinedRatio(v)
	return nil
}

// Metrics is the realized-performance summary derived from the ledger.
type Metrics struct {
	InitialBalance float64 `json:"initial_balance"`
	FinalBalance   float64 `json:"final_balance"`
	TotalReturnPct float64 `json:"total_return_pct"`

	TotalTrades   int `json:"total_trades"`
	WinningTrades int `json:"winning_trades"`
	LosingTrades  int `json:"losing_trades"`

	WinRatePct   Ratio `json:"win_rate_pct"`
	ProfitFactor Ratio `json:"profit_factor"`
	AvgWin       Ratio `json:"avg_win"`
	AvgLoss      Ratio `json:"avg_loss"`

	TotalProfit    float64 `json:"total_profit"`
	TotalLoss      float64 `json:"total_loss"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
}

// Metrics derives the performance summary from the ledger's realized state.
// Ratios that are undefined for the trade history come back as null Ratios;
// their Float64() form is 0.
func (l *Ledger) Metrics() Metrics {
	m := Metrics{
		InitialBalance: l.initialBalance,
		FinalBalance:   l.equity,
		TotalTrades:    len(l.closed),
		WinningTrades:  l.winCount,
		LosingTrades:   l.lossCount,
		TotalProfit:    l.totalProfit,
		TotalLoss:      l.totalLoss,
		MaxDrawdownPct: l.maxDrawdown * 100,
	}

	m.TotalReturnPct = (l.equity - l.initialBalance) / l.initialBalance * 100

	if m.TotalTrades > 0 {
		m.WinRatePct = DefinedRatio(float64(l.winCount) / float64(m.TotalTrades) * 100)
	}
	if l.winCount > 0 {
		m.AvgWin = DefinedRatio(l.totalProfit / float64(l.winCount))
	}
	if l.lossCount > 0 {
		m.AvgLoss = DefinedRatio(l.totalLoss / float64(l.lossCount))
	}
	// Profit factor is undefined when there are no losses, whether or not
	// there is profit. Rendering that as 0 (the Float64 form) matches the
	// historical report convention; the null form lets rankings skip it.
	if l.totalLoss > 0 {
		m.ProfitFactor = DefinedRatio(l.totalProfit / l.totalLoss)
	}

	return m
}
