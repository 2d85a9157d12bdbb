package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/market"
)

func bars(closes ...float64) []market.Bar {
	out := make([]market.Bar, len(closes))
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		out[i] = market.Bar{
			Time:  t0.Add(time.Duration(i) * time.Hour),
			Open:  c,
			High:  c + 0.5,
			Low:   c - 0.5,
			Close: c,
		}
	}
	return out
}

func TestSMA(t *testing.T) {
	t.Parallel()

	vals, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(vals[0]))
	assert.True(t, math.IsNaN(vals[1]))
	assert.InDelta(t, 2.0, vals[2], 1e-12)
	assert.InDelta(t, 3.0, vals[3], 1e-12)
	assert.InDelta(t, 4.0, vals[4], 1e-12)
}

func TestSMARejectsBadPeriod(t *testing.T) {
	t.Parallel()

	_, err := SMA([]float64{1, 2, 3}, 0)
	assert.Error(t, err)
}

func TestEMAConvergesOnConstantSeries(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100
	}
	vals, err := EMA(closes, 10)
	require.NoError(t, err)

	for i, v := range vals {
		assert.InDelta(t, 100.0, v, 1e-12, "index %d", i)
	}
}

func TestEMARespondsToStep(t *testing.T) {
	t.Parallel()

	// Constant 100, then step to 110: EMA must move toward 110 and stay
	// strictly between old and new level.
	closes := make([]float64, 40)
	for i := range closes {
		if i < 20 {
			closes[i] = 100
		} else {
			closes[i] = 110
		}
	}
	vals, err := EMA(closes, 10)
	require.NoError(t, err)

	assert.Greater(t, vals[25], vals[20])
	assert.Greater(t, vals[39], vals[25])
	assert.Less(t, vals[39], 110.0)
	assert.Greater(t, vals[39], 100.0)
}

func TestRSIBoundsAndDirection(t *testing.T) {
	t.Parallel()

	// Strict uptrend: every delta positive, loss is zero => RSI 100.
	up := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	vals, err := RSI(up, 14)
	require.NoError(t, err)

	for i := 0; i < 14; i++ {
		assert.True(t, math.IsNaN(vals[i]), "warmup index %d", i)
	}
	assert.InDelta(t, 100.0, vals[len(vals)-1], 1e-9)

	// Strict downtrend drives RSI to 0.
	down := make([]float64, 30)
	for i := range down {
		down[i] = 200 - float64(i)
	}
	vals, err = RSI(down, 14)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, vals[len(vals)-1], 1e-9)
}

func TestRSIFlatWindowHasNoValue(t *testing.T) {
	t.Parallel()

	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 100
	}
	vals, err := RSI(flat, 5)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(vals[len(vals)-1]))
}

func TestATR(t *testing.T) {
	t.Parallel()

	bs := bars(100, 101, 102, 103, 104)
	vals, err := ATR(bs, 3)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(vals[0]))
	assert.True(t, math.IsNaN(vals[1]))
	// Each bar spans +-0.5 around close and closes step by 1, so the true
	// range after the first bar is max(1.0, 1.5, 0.5) = 1.5.
	assert.InDelta(t, (1.0+1.5+1.5)/3, vals[2], 1e-12)
	assert.InDelta(t, 1.5, vals[4], 1e-12)
}

func TestMACDSignsFollowTrend(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	res, err := MACD(closes, 12, 26, 9)
	require.NoError(t, err)

	last := len(closes) - 1
	assert.Greater(t, res.Line[last], 0.0, "uptrend MACD line positive")
	assert.Len(t, res.Signal, len(closes))
	assert.InDelta(t, res.Line[last]-res.Signal[last], res.Histogram[last], 1e-12)

	_, err = MACD(closes, 26, 12, 9)
	assert.Error(t, err, "fast must be below slow")
}

func TestStreamingEMAMatchesWarmupSeed(t *testing.T) {
	t.Parallel()

	e := NewStreamingEMA(3)
	assert.False(t, e.Ready())

	for _, c := range []float64{1, 2, 3} {
		e.Update(c)
	}
	require.True(t, e.Ready())
	assert.InDelta(t, 2.0, e.Value(), 1e-12, "seeded with SMA of first period")

	e.Update(10)
	assert.Greater(t, e.Value(), 2.0)

	e.Reset()
	assert.False(t, e.Ready())
}

func TestStreamingSMAWindow(t *testing.T) {
	t.Parallel()

	m := NewStreamingSMA(2)
	m.Update(1)
	assert.False(t, m.Ready())
	m.Update(3)
	require.True(t, m.Ready())
	assert.InDelta(t, 2.0, m.Value(), 1e-12)

	m.Update(5)
	assert.InDelta(t, 4.0, m.Value(), 1e-12, "window slides")
}
