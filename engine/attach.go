package engine

import (
	"fmt"
	"math"

	"github.com/rustyeddy/backtester/indicators"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/strategy"
)

// AttachIndicators precomputes every declared indicator over the full
// series and attaches per-bar values by name. Values still in their warmup
// region (NaN) are left off the bar, so a strategy reading them back gets
// the ok=false miss instead of garbage.
//
// Each indicator value at index i is computed from bars[0..i] only.
func AttachIndicators(bars []market.Bar, specs map[string]strategy.IndicatorSpec) ([]market.Bar, error) {
	if len(specs) == 0 {
		return bars, nil
	}

	closes := indicators.Closes(bars)
	series := make(map[string][]float64, len(specs))

	for name, spec := range specs {
		switch spec.Kind {
		case "ema":
			vals, err := indicators.EMA(closes, spec.Period)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			series[name] = vals

		case "sma":
			vals, err := indicators.SMA(closes, spec.Period)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			series[name] = vals

		case "rsi":
			vals, err := indicators.RSI(closes, spec.Period)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			series[name] = vals

		case "atr":
			vals, err := indicators.ATR(bars, spec.Period)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			series[name] = vals

		case "macd":
			res, err := indicators.MACD(closes, spec.Fast, spec.Slow, spec.Signal)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			series[name] = res.Line
			series[name+"_signal"] = res.Signal
			series[name+"_hist"] = res.Histogram

		default:
			return nil, fmt.Errorf("%s: unknown indicator kind %q", name, spec.Kind)
		}
	}

	out := make([]market.Bar, len(bars))
	for i, bar := range bars {
		attached := make(map[string]float64, len(series))
		for name, vals := range series {
			if v := vals[i]; !math.IsNaN(v) {
				attached[name] = v
			}
		}
		out[i] = bar.WithIndicators(attached)
	}
	return out, nil
}
