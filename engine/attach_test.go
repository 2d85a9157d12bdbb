package engine

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/strategy"
)

func randomBars(n int, seed int64) []market.Bar {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]market.Bar, n)
	price := 1.1000
	for i := range bars {
		price += (rng.Float64() - 0.5) * 0.002
		bars[i] = market.Bar{
			Time:   testStart.Add(time.Duration(i) * time.Hour),
			Open:   price,
			High:   price + 0.0005,
			Low:    price - 0.0005,
			Close:  price,
			Volume: 1000,
		}
	}
	return bars
}

func TestAttachIndicatorsWarmupNotAttached(t *testing.T) {
	t.Parallel()

	bars := randomBars(30, 1)
	out, err := AttachIndicators(bars, map[string]strategy.IndicatorSpec{
		"sma": {Kind: "sma", Period: 10},
	})
	require.NoError(t, err)
	require.Len(t, out, 30)

	for i := 0; i < 9; i++ {
		_, ok := out[i].Indicator("sma")
		assert.False(t, ok, "bar %d is inside the warmup region", i)
	}
	for i := 9; i < 30; i++ {
		_, ok := out[i].Indicator("sma")
		assert.True(t, ok, "bar %d", i)
	}
}

// Values attached at bar i must be computable from bars[0..i] alone:
// attaching over any prefix yields the same value at every shared index.
func TestAttachIndicatorsNoLookAhead(t *testing.T) {
	t.Parallel()

	bars := randomBars(60, 2)
	specs := map[string]strategy.IndicatorSpec{
		"sma": {Kind: "sma", Period: 10},
		"ema": {Kind: "ema", Period: 10},
		"rsi": {Kind: "rsi", Period: 14},
		"atr": {Kind: "atr", Period: 14},
	}

	full, err := AttachIndicators(bars, specs)
	require.NoError(t, err)

	for _, cut := range []int{20, 35, 59} {
		prefix, err := AttachIndicators(bars[:cut], specs)
		require.NoError(t, err)

		for i := 0; i < cut; i++ {
			for name := range specs {
				fv, fok := full[i].Indicator(name)
				pv, pok := prefix[i].Indicator(name)
				require.Equal(t, fok, pok, "bar %d %s attachment", i, name)
				if fok {
					assert.InDelta(t, pv, fv, 1e-12, "bar %d %s", i, name)
				}
			}
		}
	}
}

func TestAttachIndicatorsMACDSeries(t *testing.T) {
	t.Parallel()

	bars := randomBars(80, 3)
	out, err := AttachIndicators(bars, map[string]strategy.IndicatorSpec{
		"macd": {Kind: "macd", Fast: 12, Slow: 26, Signal: 9},
	})
	require.NoError(t, err)

	last := out[len(out)-1]
	line, ok := last.Indicator("macd")
	require.True(t, ok)
	sig, ok := last.Indicator("macd_signal")
	require.True(t, ok)
	hist, ok := last.Indicator("macd_hist")
	require.True(t, ok)
	assert.InDelta(t, line-sig, hist, 1e-12)
}

func TestAttachIndicatorsUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := AttachIndicators(randomBars(10, 4), map[string]strategy.IndicatorSpec{
		"x": {Kind: "vwap", Period: 10},
	})
	assert.Error(t, err)
}

func TestAttachIndicatorsDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	bars := randomBars(20, 5)
	_, err := AttachIndicators(bars, map[string]strategy.IndicatorSpec{
		"sma": {Kind: "sma", Period: 5},
	})
	require.NoError(t, err)

	for i, b := range bars {
		assert.Nil(t, b.Indicators, "input bar %d gained indicators", i)
	}
}
