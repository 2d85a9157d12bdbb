package analyzer

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/engine"
	"github.com/rustyeddy/backtester/ledger"
	"github.com/rustyeddy/backtester/market"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func trade(i int, profit float64) ledger.ClosedTrade {
	entry := t0.Add(time.Duration(i*4) * time.Hour)
	return ledger.ClosedTrade{
		ID:         "t" + string(rune('0'+i)),
		Side:       market.Buy,
		Size:       0.1,
		EntryPrice: 1.1,
		ExitPrice:  1.1 + profit/1000,
		EntryTime:  entry,
		ExitTime:   entry.Add(2 * time.Hour),
		Pips:       profit,
		Profit:     profit,
		Reason:     ledger.ReasonTakeProfit,
	}
}

func sampleReport(trades ...ledger.ClosedTrade) *engine.Report {
	r := &engine.Report{
		Symbol:    "EURUSD",
		Timeframe: market.H1,
		Strategy:  "ema-cross",
		Params:    map[string]any{"ema_period": 20},
		Trades:    trades,
		Metrics: ledger.Metrics{
			InitialBalance: 10_000,
			FinalBalance:   10_100,
			TotalReturnPct: 1.0,
			TotalTrades:    len(trades),
		},
	}
	for i := range trades {
		r.Equity = append(r.Equity, engine.EquityPoint{
			Time:    t0.Add(time.Duration(i) * time.Hour),
			Balance: 10_000,
			Equity:  10_000 + float64(i)*10,
		})
	}
	return r
}

func TestAnalyzeMixedHistory(t *testing.T) {
	t.Parallel()

	report := sampleReport(trade(0, 100), trade(1, -50), trade(2, 80), trade(3, -30))
	stats := Analyze(report)

	require.True(t, stats.Sharpe.Valid())
	assert.Greater(t, stats.Sharpe.Float64(), 0.0, "net-positive history")
	require.True(t, stats.Sortino.Valid())
	require.True(t, stats.Expectancy.Valid())
	assert.InDelta(t, 25.0, stats.Expectancy.Float64(), 1e-9)
	assert.Equal(t, 2*time.Hour, stats.AvgDuration)
}

func TestAnalyzeDegenerateHistories(t *testing.T) {
	t.Parallel()

	// No trades at all.
	stats := Analyze(sampleReport())
	assert.False(t, stats.Sharpe.Valid())
	assert.False(t, stats.Sortino.Valid())
	assert.False(t, stats.Expectancy.Valid())

	// A single trade has no variance to divide by.
	stats = Analyze(sampleReport(trade(0, 100)))
	assert.False(t, stats.Sharpe.Valid())
	assert.True(t, stats.Expectancy.Valid())

	// Identical returns: zero variance, Sharpe undefined rather than Inf.
	stats = Analyze(sampleReport(trade(0, 50), trade(1, 50), trade(2, 50)))
	assert.False(t, stats.Sharpe.Valid())

	// All winners: no downside, Sortino undefined.
	stats = Analyze(sampleReport(trade(0, 50), trade(1, 80)))
	assert.False(t, stats.Sortino.Valid())
}

func TestWriteSummaryText(t *testing.T) {
	t.Parallel()

	report := sampleReport(trade(0, 100))
	report.Metrics.WinRatePct = ledger.DefinedRatio(100)
	report.Metrics.TotalProfit = 12345.6

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, report))

	out := buf.String()
	assert.Contains(t, out, "BACKTEST SUMMARY: ema-cross")
	assert.Contains(t, out, "Initial Balance: $10,000.00")
	assert.Contains(t, out, "Total Profit: $12,345.60")
	assert.Contains(t, out, "Win Rate: 100.00%")
	assert.Contains(t, out, "Profit Factor: n/a", "undefined ratio renders as n/a")
	assert.Contains(t, out, "ema_period: 20")
}

func TestMoneyFormatting(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0.00", money(0))
	assert.Equal(t, "999.99", money(999.99))
	assert.Equal(t, "1,000.00", money(1000))
	assert.Equal(t, "12,345.60", money(12345.6))
	assert.Equal(t, "1,234,567.89", money(1234567.891))
	assert.Equal(t, "-12,345.60", money(-12345.6))
}

func TestWriteSummaryJSONNullRatios(t *testing.T) {
	t.Parallel()

	report := sampleReport()
	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, WriteSummaryJSON(path, report, Analyze(report)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))

	var stats map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(decoded["stats"], &stats))
	assert.Equal(t, "null", string(stats["sharpe"]), "undefined ratio is JSON null")
}

func TestWriteTradesAndEquityCSV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	report := sampleReport(trade(0, 100), trade(1, -50))

	tradesPath := filepath.Join(dir, "trades.csv")
	require.NoError(t, WriteTradesCSV(tradesPath, report))
	data, err := os.ReadFile(tradesPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "trade_id,side,size")
	assert.Contains(t, string(data), "BUY")

	equityPath := filepath.Join(dir, "equity.csv")
	require.NoError(t, WriteEquityCSV(equityPath, report))
	data, err = os.ReadFile(equityPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "time,balance,equity,drawdown")
}

func TestParquetRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	report := sampleReport(trade(0, 100), trade(1, -50))

	tradesPath := filepath.Join(dir, "trades.parquet")
	require.NoError(t, WriteTradesParquet(tradesPath, report))
	rows, err := parquet.ReadFile[tradeRow](tradesPath)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 100.0, rows[0].Profit)
	assert.Equal(t, report.Trades[1].EntryTime.UnixMilli(), rows[1].EntryTime)

	equityPath := filepath.Join(dir, "equity.parquet")
	require.NoError(t, WriteEquityParquet(equityPath, report))
	erows, err := parquet.ReadFile[equityRow](equityPath)
	require.NoError(t, err)
	require.Len(t, erows, 2)
	assert.Equal(t, 10_010.0, erows[1].Equity)
}
