package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
	"github.com/xyproto/unzip"

	"github.com/rustyeddy/backtester/market"
)

// CSVSource reads bar history from a directory of CSV files named
// SYMBOL_TF.csv (for example EURUSD_H1.csv). Compressed variants
// SYMBOL_TF.csv.xz and SYMBOL_TF.zip are picked up when the plain file is
// absent.
//
// Expected header: time,open,high,low,close,volume,spread. Time is RFC3339
// or unix seconds; spread is optional and defaults to 0.
type CSVSource struct {
	Dir string
}

func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir}
}

func (s *CSVSource) Fetch(ctx context.Context, symbol string, tf market.Timeframe, start, end time.Time) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, closer, err := s.open(symbol, tf)
	if err != nil {
		return nil, err
	}
	defer closer()

	bars, err := ReadBars(r)
	if err != nil {
		return nil, fmt.Errorf("feed: %s %s: %w", symbol, tf, err)
	}

	bars = filterRange(bars, start, end)
	if len(bars) == 0 {
		return nil, fmt.Errorf("feed: %s %s in [%s, %s): %w", symbol, tf, start.Format(time.RFC3339), end.Format(time.RFC3339), ErrNoData)
	}
	return bars, nil
}

func (s *CSVSource) open(symbol string, tf market.Timeframe) (io.Reader, func(), error) {
	base := fmt.Sprintf("%s_%s", symbol, tf)

	if f, err := os.Open(filepath.Join(s.Dir, base+".csv")); err == nil {
		return f, func() { f.Close() }, nil
	}

	if f, err := os.Open(filepath.Join(s.Dir, base+".csv.xz")); err == nil {
		r, xerr := xz.NewReader(f)
		if xerr != nil {
			f.Close()
			return nil, nil, fmt.Errorf("feed: open %s.csv.xz: %w", base, xerr)
		}
		return r, func() { f.Close() }, nil
	}

	if zipPath := filepath.Join(s.Dir, base+".zip"); fileExists(zipPath) {
		return s.openZip(zipPath, base)
	}

	return nil, nil, fmt.Errorf("feed: no data file for %s in %s: %w", base, s.Dir, ErrNoData)
}

// openZip extracts the archive to a scratch directory and reads the CSV
// from there.
func (s *CSVSource) openZip(zipPath, base string) (io.Reader, func(), error) {
	tmp, err := os.MkdirTemp("", "backtester-feed-")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { os.RemoveAll(tmp) }

	if err := unzip.Extract(zipPath, tmp); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("feed: extract %s: %w", zipPath, err)
	}

	f, err := os.Open(filepath.Join(tmp, base+".csv"))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("feed: %s does not contain %s.csv: %w", zipPath, base, err)
	}
	return f, func() { f.Close(); cleanup() }, nil
}

// ReadBars parses CSV bar data from r. The first row must be the header.
func ReadBars(r io.Reader) ([]market.Bar, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	col, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var bars []market.Bar
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+1, err)
		}
		line++

		b, err := parseBar(rec, col)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

type columns struct {
	time, open, high, low, close, volume, spread int
}

func mapColumns(header []string) (columns, error) {
	col := columns{time: -1, open: -1, high: -1, low: -1, close: -1, volume: -1, spread: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "time", "timestamp", "date":
			col.time = i
		case "open":
			col.open = i
		case "high":
			col.high = i
		case "low":
			col.low = i
		case "close":
			col.close = i
		case "volume", "tick_volume":
			col.volume = i
		case "spread":
			col.spread = i
		}
	}
	if col.time < 0 || col.open < 0 || col.high < 0 || col.low < 0 || col.close < 0 {
		return col, fmt.Errorf("header %v missing required columns (time, open, high, low, close)", header)
	}
	return col, nil
}

func parseBar(rec []string, col columns) (market.Bar, error) {
	var b market.Bar
	var err error

	if b.Time, err = parseTime(rec[col.time]); err != nil {
		return b, err
	}
	if b.Open, err = strconv.ParseFloat(rec[col.open], 64); err != nil {
		return b, fmt.Errorf("open: %w", err)
	}
	if b.High, err = strconv.ParseFloat(rec[col.high], 64); err != nil {
		return b, fmt.Errorf("high: %w", err)
	}
	if b.Low, err = strconv.ParseFloat(rec[col.low], 64); err != nil {
		return b, fmt.Errorf("low: %w", err)
	}
	if b.Close, err = strconv.ParseFloat(rec[col.close], 64); err != nil {
		return b, fmt.Errorf("close: %w", err)
	}
	if col.volume >= 0 && col.volume < len(rec) {
		if b.Volume, err = strconv.ParseInt(rec[col.volume], 10, 64); err != nil {
			return b, fmt.Errorf("volume: %w", err)
		}
	}
	if col.spread >= 0 && col.spread < len(rec) && rec[col.spread] != "" {
		if b.Spread, err = strconv.ParseInt(rec[col.spread], 10, 64); err != nil {
			return b, fmt.Errorf("spread: %w", err)
		}
	}
	return b, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	// MT5 export format.
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("time %q: unrecognized format", s)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
