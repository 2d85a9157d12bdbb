package analyzer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/rustyeddy/backtester/engine"
)

// Summary is the JSON export: the run report plus the extended statistics.
type Summary struct {
	Report *engine.Report `json:"report"`
	Stats  Stats          `json:"stats"`
}

// WriteSummaryJSON writes the full report and statistics as indented JSON.
func WriteSummaryJSON(path string, report *engine.Report, stats Stats) error {
	data, err := json.MarshalIndent(Summary{Report: report, Stats: stats}, "", "  ")
	if err != nil {
		return fmt.Errorf("analyzer: marshal summary: %w", err)
	}
	return writeFileAtomic(path, data)
}

// WriteTradesCSV exports the trade history.
func WriteTradesCSV(path string, report *engine.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"trade_id", "side", "size", "entry_price", "exit_price", "entry_time", "exit_time", "pips", "profit", "reason", "comment"}); err != nil {
		return err
	}
	for _, t := range report.Trades {
		rec := []string{
			t.ID,
			t.Side.String(),
			fv(t.Size),
			fv(t.EntryPrice),
			fv(t.ExitPrice),
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			fv(t.Pips),
			fv(t.Profit),
			t.Reason,
			t.Comment,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteEquityCSV exports the per-bar equity curve.
func WriteEquityCSV(path string, report *engine.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "balance", "equity", "drawdown"}); err != nil {
		return err
	}
	for _, p := range report.Equity {
		rec := []string{
			p.Time.Format(time.RFC3339),
			fv(p.Balance),
			fv(p.Equity),
			fv(p.Drawdown),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// tradeRow is the Parquet schema for exported trades.
type tradeRow struct {
	TradeID    string  `parquet:"trade_id"`
	Side       string  `parquet:"side"`
	Size       float64 `parquet:"size"`
	EntryPrice float64 `parquet:"entry_price"`
	ExitPrice  float64 `parquet:"exit_price"`
	EntryTime  int64   `parquet:"entry_time,timestamp(millisecond)"`
	ExitTime   int64   `parquet:"exit_time,timestamp(millisecond)"`
	Pips       float64 `parquet:"pips"`
	Profit     float64 `parquet:"profit"`
	Reason     string  `parquet:"reason"`
	Comment    string  `parquet:"comment"`
}

// equityRow is the Parquet schema for the exported equity curve.
type equityRow struct {
	Time     int64   `parquet:"time,timestamp(millisecond)"`
	Balance  float64 `parquet:"balance"`
	Equity   float64 `parquet:"equity"`
	Drawdown float64 `parquet:"drawdown"`
}

// WriteTradesParquet exports the trade history as a Parquet file.
func WriteTradesParquet(path string, report *engine.Report) error {
	rows := make([]tradeRow, len(report.Trades))
	for i, t := range report.Trades {
		rows[i] = tradeRow{
			TradeID:    t.ID,
			Side:       t.Side.String(),
			Size:       t.Size,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			EntryTime:  t.EntryTime.UnixMilli(),
			ExitTime:   t.ExitTime.UnixMilli(),
			Pips:       t.Pips,
			Profit:     t.Profit,
			Reason:     t.Reason,
			Comment:    t.Comment,
		}
	}
	return writeParquet(path, rows)
}

// WriteEquityParquet exports the equity curve as a Parquet file.
func WriteEquityParquet(path string, report *engine.Report) error {
	rows := make([]equityRow, len(report.Equity))
	for i, p := range report.Equity {
		rows[i] = equityRow{
			Time:     p.Time.UnixMilli(),
			Balance:  p.Balance,
			Equity:   p.Equity,
			Drawdown: p.Drawdown,
		}
	}
	return writeParquet(path, rows)
}

func writeParquet[T any](path string, rows []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, rows)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func fv(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
