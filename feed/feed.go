package feed

import (
	"context"
	"errors"
	"time"

	"github.com/rustyeddy/backtester/market"
)

// ErrNoData means the source had no bars for the requested range. Callers
// treat it as a setup failure, not a strategy result.
var ErrNoData = errors.New("feed: no data")

// BarSource supplies historical bars for one symbol and timeframe.
// Implementations return bars in ascending time order.
type BarSource interface {
	Fetch(ctx context.Context, symbol string, tf market.Timeframe, start, end time.Time) ([]market.Bar, error)
}

// SliceSource serves bars from memory. Used by tests and parameter sweeps,
// where the same series is replayed many times.
type SliceSource struct {
	Bars []market.Bar
}

func (s *SliceSource) Fetch(ctx context.Context, symbol string, tf market.Timeframe, start, end time.Time) ([]market.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := filterRange(s.Bars, start, end)
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

// filterRange keeps bars within [start, end). Zero bounds are open.
func filterRange(bars []market.Bar, start, end time.Time) []market.Bar {
	var out []market.Bar
	for _, b := range bars {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && !b.Time.Before(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}
