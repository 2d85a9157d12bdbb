package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/market"
)

func rsiBar(i int, close, rsi float64) market.Bar {
	return barAt(i, close, map[string]float64{"rsi": rsi})
}

func TestRSIReversalBuyOnOversoldTurn(t *testing.T) {
	t.Parallel()

	s := NewRSIReversal(RSIReversalDefaults())
	flat := Context{}

	a, err := s.OnBar(flat, rsiBar(0, 1.1000, 25))
	require.NoError(t, err)
	assert.IsType(t, Hold{}, a)

	// Still oversold but rising: reversal entry.
	a, err = s.OnBar(flat, rsiBar(1, 1.1005, 28))
	require.NoError(t, err)
	open, ok := a.(Open)
	require.True(t, ok)
	assert.Equal(t, market.Buy, open.Side)
}

func TestRSIReversalSellOnOverboughtTurn(t *testing.T) {
	t.Parallel()

	s := NewRSIReversal(RSIReversalDefaults())
	flat := Context{}

	_, err := s.OnBar(flat, rsiBar(0, 1.1000, 78))
	require.NoError(t, err)

	a, err := s.OnBar(flat, rsiBar(1, 1.0995, 74))
	require.NoError(t, err)
	open, ok := a.(Open)
	require.True(t, ok)
	assert.Equal(t, market.Sell, open.Side)
}

func TestRSIReversalExitAtNeutral(t *testing.T) {
	t.Parallel()

	s := NewRSIReversal(RSIReversalDefaults())

	long := Context{HasPosition: true, Side: market.Buy}
	a, err := s.OnBar(long, rsiBar(0, 1.1, 51))
	require.NoError(t, err)
	assert.IsType(t, Close{}, a)

	a, err = s.OnBar(long, rsiBar(1, 1.1, 45))
	require.NoError(t, err)
	assert.IsType(t, Hold{}, a)

	short := Context{HasPosition: true, Side: market.Sell}
	a, err = s.OnBar(short, rsiBar(2, 1.1, 49))
	require.NoError(t, err)
	assert.IsType(t, Close{}, a)
}

func TestRSIReversalNoEntryInsideBand(t *testing.T) {
	t.Parallel()

	s := NewRSIReversal(RSIReversalDefaults())
	flat := Context{}

	_, err := s.OnBar(flat, rsiBar(0, 1.1, 45))
	require.NoError(t, err)
	a, err := s.OnBar(flat, rsiBar(1, 1.1, 55))
	require.NoError(t, err)
	assert.IsType(t, Hold{}, a)
}

func TestRSIScalpingBuyOnCrossOutOfOversold(t *testing.T) {
	t.Parallel()

	s := NewRSIScalping(RSIScalpingDefaults())
	flat := Context{}

	_, err := s.OnBar(flat, rsiBar(0, 1.1000, 28))
	require.NoError(t, err)

	a, err := s.OnBar(flat, rsiBar(1, 1.1004, 33))
	require.NoError(t, err)
	open, ok := a.(Open)
	require.True(t, ok)
	assert.Equal(t, market.Buy, open.Side)
}

func TestRSIScalpingSellOnCrossOutOfOverbought(t *testing.T) {
	t.Parallel()

	s := NewRSIScalping(RSIScalpingDefaults())
	flat := Context{}

	_, err := s.OnBar(flat, rsiBar(0, 1.1000, 75))
	require.NoError(t, err)

	a, err := s.OnBar(flat, rsiBar(1, 1.0996, 66))
	require.NoError(t, err)
	open, ok := a.(Open)
	require.True(t, ok)
	assert.Equal(t, market.Sell, open.Side)
}

func TestRSIScalpingTargetExit(t *testing.T) {
	t.Parallel()

	s := NewRSIScalping(RSIScalpingDefaults())

	long := Context{HasPosition: true, Side: market.Buy}
	a, err := s.OnBar(long, rsiBar(0, 1.1, 82))
	require.NoError(t, err)
	assert.IsType(t, Close{}, a)

	short := Context{HasPosition: true, Side: market.Sell}
	a, err = s.OnBar(short, rsiBar(1, 1.1, 18))
	require.NoError(t, err)
	assert.IsType(t, Close{}, a)
}

func TestRSIScalpingSpreadFilter(t *testing.T) {
	t.Parallel()

	cfg := RSIScalpingDefaults()
	cfg.MaxSpread = 20
	s := NewRSIScalping(cfg)
	flat := Context{}

	_, err := s.OnBar(flat, rsiBar(0, 1.1000, 28))
	require.NoError(t, err)

	wide := rsiBar(1, 1.1004, 33)
	wide.Spread = 25
	a, err := s.OnBar(flat, wide)
	require.NoError(t, err)
	assert.IsType(t, Hold{}, a, "wide-spread bar is skipped")

	// The skipped bar must not have advanced the RSI memory, so the same
	// cross still fires on the next acceptable bar.
	narrow := rsiBar(2, 1.1004, 33)
	narrow.Spread = 5
	a, err = s.OnBar(flat, narrow)
	require.NoError(t, err)
	assert.IsType(t, Open{}, a)
}
