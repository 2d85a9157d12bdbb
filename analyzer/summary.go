package analyzer

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rustyeddy/backtester/engine"
	"github.com/rustyeddy/backtester/ledger"
)

const rule = "============================================================"

// WriteSummary renders the classic text report for one run.
func WriteSummary(w io.Writer, report *engine.Report) error {
	m := report.Metrics

	var b strings.Builder
	b.WriteString("\n" + rule + "\n")
	fmt.Fprintf(&b, "BACKTEST SUMMARY: %s\n", report.Strategy)
	b.WriteString(rule + "\n")

	fmt.Fprintf(&b, "\nInitial Balance: $%s\n", money(m.InitialBalance))
	fmt.Fprintf(&b, "Final Balance: $%s\n", money(m.FinalBalance))
	fmt.Fprintf(&b, "Total Return: %.2f%%\n", m.TotalReturnPct)

	fmt.Fprintf(&b, "\nTotal Trades: %d\n", m.TotalTrades)
	fmt.Fprintf(&b, "Winning Trades: %d\n", m.WinningTrades)
	fmt.Fprintf(&b, "Losing Trades: %d\n", m.LosingTrades)
	fmt.Fprintf(&b, "Win Rate: %.2f%%\n", m.WinRatePct.Float64())

	fmt.Fprintf(&b, "\nTotal Profit: $%s\n", money(m.TotalProfit))
	fmt.Fprintf(&b, "Total Loss: $%s\n", money(m.TotalLoss))
	fmt.Fprintf(&b, "Profit Factor: %s\n", ratioOrNA(m.ProfitFactor))

	fmt.Fprintf(&b, "\nAverage Win: $%s\n", money(m.AvgWin.Float64()))
	fmt.Fprintf(&b, "Average Loss: $%s\n", money(m.AvgLoss.Float64()))
	fmt.Fprintf(&b, "Max Drawdown: %.2f%%\n", m.MaxDrawdownPct)

	if len(report.Params) > 0 {
		b.WriteString("\nStrategy Parameters:\n")
		keys := make([]string, 0, len(report.Params))
		for k := range report.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %v\n", k, report.Params[k])
		}
	}

	b.WriteString(rule + "\n\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func ratioOrNA(r ledger.Ratio) string {
	if v, ok := r.Value(); ok {
		return fmt.Sprintf("%.2f", v)
	}
	return "n/a"
}

// money formats v with two decimals and thousands separators: 12345.6
// becomes "12,345.60".
func money(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	dot := strings.IndexByte(s, '.')
	whole, frac := s[:dot], s[dot:]

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteString(frac)
	return b.String()
}
