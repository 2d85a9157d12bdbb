// Package analyzer turns a finished engine run into human- and
// machine-readable output: ratio statistics over the trade history, a text
// summary, and CSV/JSON/Parquet exports.
package analyzer

import (
	"math"
	"time"

	"github.com/rustyeddy/backtester/engine"
	"github.com/rustyeddy/backtester/ledger"
)

// Stats extends the ledger's realized metrics with statistics that need
// the full trade and equity history.
type Stats struct {
	Sharpe      ledger.Ratio  `json:"sharpe"`
	Sortino     ledger.Ratio  `json:"sortino"`
	Expectancy  ledger.Ratio  `json:"expectancy"`
	AvgDuration time.Duration `json:"avg_duration_ns"`
}

// Analyze computes the extended statistics for a report. Ratios that are
// undefined for the history (fewer than two trades, zero variance, no
// downside) come back as null Ratios.
func Analyze(report *engine.Report) Stats {
	var s Stats
	trades := report.Trades
	if len(trades) == 0 {
		return s
	}

	base := report.Metrics.InitialBalance
	returns := make([]float64, len(trades))
	var total float64
	var totalDur time.Duration
	for i, t := range trades {
		returns[i] = t.Profit / base
		total += t.Profit
		totalDur += t.ExitTime.Sub(t.EntryTime)
	}

	s.AvgDuration = totalDur / time.Duration(len(trades))
	s.Expectancy = defined(total / float64(len(trades)))

	if len(trades) < 2 {
		return s
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	downside := 0.0
	nDown := 0
	for _, r := range returns {
		d := r - mean
		variance += d * d
		if r < 0 {
			downside += r * r
			nDown++
		}
	}
	variance /= float64(len(returns) - 1)

	if std := math.Sqrt(variance); std > 0 {
		s.Sharpe = defined(mean / std)
	}
	if nDown > 0 {
		if dd := math.Sqrt(downside / float64(len(returns))); dd > 0 {
			s.Sortino = defined(mean / dd)
		}
	}

	return s
}

// defined wraps v as a Ratio, degrading NaN/Inf to the null Ratio instead
// of letting them leak into reports.
func defined(v float64) ledger.Ratio {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ledger.UndefinedRatio()
	}
	return ledger.DefinedRatio(v)
}
