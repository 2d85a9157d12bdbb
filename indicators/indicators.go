// Package indicators computes technical analysis series over historical
// bars. Every function is pure: it takes a price series and returns a series
// of the same length, with NaN in the warmup region where the indicator is
// not yet defined. Callers must treat NaN as "no value"; the engine never
// attaches NaN values to a bar.
package indicators

import (
	"fmt"
	"math"

	"github.com/rustyeddy/backtester/market"
)

// Closes extracts the close series from bars.
func Closes(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// RSI computes the Relative Strength Index using simple rolling averages of
// gains and losses over the period. Values are defined from index period
// onward.
func RSI(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("rsi: period must be positive, got %d", period)
	}

	out := nanSlice(len(closes))
	if len(closes) <= period {
		return out, nil
	}

	for i := period; i < len(closes); i++ {
		var gain, loss float64
		for j := i - period + 1; j <= i; j++ {
			delta := closes[j] - closes[j-1]
			if delta > 0 {
				gain += delta
			} else {
				loss -= delta
			}
		}
		gain /= float64(period)
		loss /= float64(period)

		switch {
		case loss == 0 && gain == 0:
			// Flat window; leave NaN rather than invent a level.
		case loss == 0:
			out[i] = 100
		default:
			rs := gain / loss
			out[i] = 100 - 100/(1+rs)
		}
	}
	return out, nil
}

// EMA computes an exponential moving average seeded at the first value, with
// multiplier 2/(period+1). Defined for every index.
func EMA(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("ema: period must be positive, got %d", period)
	}

	out := nanSlice(len(closes))
	if len(closes) == 0 {
		return out, nil
	}

	alpha := 2.0 / float64(period+1)
	ema := closes[0]
	out[0] = ema
	for i := 1; i < len(closes); i++ {
		ema = (closes[i]-ema)*alpha + ema
		out[i] = ema
	}
	return out, nil
}

// SMA computes a simple moving average. Defined from index period-1 onward.
func SMA(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("sma: period must be positive, got %d", period)
	}

	out := nanSlice(len(closes))
	if len(closes) < period {
		return out, nil
	}

	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= period {
			sum -= closes[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out, nil
}

// ATR computes the Average True Range as a simple moving average of true
// ranges. The first bar's true range is its high-low span (no previous
// close). Defined from index period-1 onward.
func ATR(bars []market.Bar, period int) ([]float64, error) {
	if period <= 0 {
		return nil, fmt.Errorf("atr: period must be positive, got %d", period)
	}

	out := nanSlice(len(bars))
	if len(bars) < period {
		return out, nil
	}

	trs := make([]float64, len(bars))
	for i, b := range bars {
		if i == 0 {
			trs[i] = b.High - b.Low
			continue
		}
		prevClose := bars[i-1].Close
		trs[i] = math.Max(b.High-b.Low,
			math.Max(math.Abs(b.High-prevClose), math.Abs(b.Low-prevClose)))
	}

	sum := 0.0
	for i, tr := range trs {
		sum += tr
		if i >= period {
			sum -= trs[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out, nil
}

// MACDResult holds the three MACD series, each aligned to the input.
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes the MACD line (EMA fast minus EMA slow), its signal EMA, and
// the histogram.
func MACD(closes []float64, fast, slow, signal int) (MACDResult, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return MACDResult{}, fmt.Errorf("macd: periods must be positive, got fast=%d slow=%d signal=%d", fast, slow, signal)
	}
	if fast >= slow {
		return MACDResult{}, fmt.Errorf("macd: fast period %d must be below slow period %d", fast, slow)
	}

	emaFast, err := EMA(closes, fast)
	if err != nil {
		return MACDResult{}, err
	}
	emaSlow, err := EMA(closes, slow)
	if err != nil {
		return MACDResult{}, err
	}

	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = emaFast[i] - emaSlow[i]
	}

	sig, err := EMA(line, signal)
	if err != nil {
		return MACDResult{}, err
	}

	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - sig[i]
	}

	return MACDResult{Line: line, Signal: sig, Histogram: hist}, nil
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
