package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/backtester/feed"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/ledger"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/strategy"
)

var testStart = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// synMeta is a synthetic instrument priced around 100 so margin never gets
// in the way of the scenarios under test.
func synMeta() market.InstrumentMeta {
	return market.InstrumentMeta{
		Symbol:         "SYN",
		ContractSize:   100,
		MarginRate:     0.01,
		PipSize:        0.01,
		PipValuePerLot: 10,
		MinLot:         0.01,
		MaxLot:         1.0,
	}
}

func synLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	led, err := ledger.New(ledger.Config{InitialBalance: 10_000, Instrument: synMeta()})
	require.NoError(t, err)
	return led
}

func uptrendBars(n int) []market.Bar {
	bars := make([]market.Bar, n)
	for i := range bars {
		c := 100 + float64(i)*0.1
		bars[i] = market.Bar{
			Time:   testStart.Add(time.Duration(i) * time.Hour),
			Open:   c,
			High:   c + 0.05,
			Low:    c - 0.05,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func quietConfig() Config {
	return Config{
		Symbol:    "SYN",
		Timeframe: market.H1,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// scriptStrategy delegates OnBar to a closure.
type scriptStrategy struct {
	name  string
	specs map[string]strategy.IndicatorSpec
	onBar func(strategy.Context, market.Bar) (strategy.Action, error)
}

func (s *scriptStrategy) Name() string { return s.name }

func (s *scriptStrategy) RequiredIndicators() map[string]strategy.IndicatorSpec { return s.specs }

func (s *scriptStrategy) Params() map[string]any { return nil }

func (s *scriptStrategy) OnBar(ctx strategy.Context, bar market.Bar) (strategy.Action, error) {
	return s.onBar(ctx, bar)
}

func TestUptrendEMACrossEndToEnd(t *testing.T) {
	t.Parallel()

	cfg := strategy.EMACrossDefaults()
	cfg.EMAPeriod = 20
	cfg.PipSize = 0.01
	strat := strategy.NewEMACross(cfg)

	led := synLedger(t)
	src := &feed.SliceSource{Bars: uptrendBars(100)}

	e, err := New(quietConfig(), src, strat, led)
	require.NoError(t, err)

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Trades, 1, "a monotone uptrend produces exactly one entry")
	trade := report.Trades[0]
	assert.Equal(t, market.Buy, trade.Side)
	assert.Greater(t, report.Metrics.FinalBalance, report.Metrics.InitialBalance)
	assert.Equal(t, ledger.ReasonTakeProfit, trade.Reason)
	assert.Len(t, report.Equity, 100)
	assert.Equal(t, 0, report.SkippedBars)
}

func TestZeroBarsIsErrNoData(t *testing.T) {
	t.Parallel()

	e, err := New(quietConfig(), &feed.SliceSource{}, &scriptStrategy{
		name:  "noop",
		onBar: func(strategy.Context, market.Bar) (strategy.Action, error) { return strategy.Hold{}, nil },
	}, synLedger(t))
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestOutOfOrderBarsRejected(t *testing.T) {
	t.Parallel()

	bars := uptrendBars(5)
	bars[3].Time = bars[1].Time

	e, err := New(quietConfig(), &feed.SliceSource{Bars: bars}, &scriptStrategy{
		name:  "noop",
		onBar: func(strategy.Context, market.Bar) (strategy.Action, error) { return strategy.Hold{}, nil },
	}, synLedger(t))
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, ErrOutOfOrderBar)
}

func TestStopCheckRunsBeforeStrategy(t *testing.T) {
	t.Parallel()

	var sawPosition []bool
	strat := &scriptStrategy{
		name: "script",
		onBar: func(ctx strategy.Context, bar market.Bar) (strategy.Action, error) {
			sawPosition = append(sawPosition, ctx.HasPosition)
			if !ctx.HasPosition && len(sawPosition) == 1 {
				tp := bar.Close + 0.05
				return strategy.Open{Side: market.Buy, Size: 0.1, TakeProfit: &tp}, nil
			}
			return strategy.Hold{}, nil
		},
	}

	led := synLedger(t)
	e, err := New(quietConfig(), &feed.SliceSource{Bars: uptrendBars(3)}, strat, led)
	require.NoError(t, err)

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	// Bar 1's close is above the take profit, so the position is gone
	// before the strategy runs on that bar.
	assert.Equal(t, []bool{false, false, false}, sawPosition)
	require.Len(t, report.Trades, 1)
	assert.Equal(t, ledger.ReasonTakeProfit, report.Trades[0].Reason)
}

func TestEndOfDataForceClose(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{
		name: "script",
		onBar: func(ctx strategy.Context, bar market.Bar) (strategy.Action, error) {
			if !ctx.HasPosition {
				return strategy.Open{Side: market.Buy, Size: 0.1}, nil
			}
			return strategy.Hold{}, nil
		},
	}

	led := synLedger(t)
	e, err := New(quietConfig(), &feed.SliceSource{Bars: uptrendBars(5)}, strat, led)
	require.NoError(t, err)

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Trades, 1)
	assert.Equal(t, ledger.ReasonEndOfData, report.Trades[0].Reason)
	assert.False(t, led.HasPosition())
	assert.InDelta(t, report.Trades[0].ExitPrice, 100.4, 1e-9, "closed at the last bar's close")
}

func TestFailFastAbortsOnStrategyError(t *testing.T) {
	t.Parallel()

	boom := errors.New("bad indicator state")
	strat := &scriptStrategy{
		name: "script",
		onBar: func(ctx strategy.Context, bar market.Bar) (strategy.Action, error) {
			if bar.Time.Equal(testStart.Add(2 * time.Hour)) {
				return nil, boom
			}
			return strategy.Hold{}, nil
		},
	}

	e, err := New(quietConfig(), &feed.SliceSource{Bars: uptrendBars(5)}, strat, synLedger(t))
	require.NoError(t, err)

	_, err = e.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestSkipBarContinuesOnStrategyError(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{
		name: "script",
		onBar: func(ctx strategy.Context, bar market.Bar) (strategy.Action, error) {
			if bar.Time.Equal(testStart.Add(2 * time.Hour)) {
				return nil, errors.New("bad indicator state")
			}
			return strategy.Hold{}, nil
		},
	}

	cfg := quietConfig()
	cfg.Policy = SkipBar
	e, err := New(cfg, &feed.SliceSource{Bars: uptrendBars(5)}, strat, synLedger(t))
	require.NoError(t, err)

	report, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedBars)
	assert.Len(t, report.Equity, 5, "skipped bars still get an equity mark")
}

func TestStrategyPanicIsRecovered(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{
		name: "script",
		onBar: func(ctx strategy.Context, bar market.Bar) (strategy.Action, error) {
			panic("index out of range")
		},
	}

	// FailFast surfaces the panic as an error.
	e, err := New(quietConfig(), &feed.SliceSource{Bars: uptrendBars(3)}, strat, synLedger(t))
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strategy panic")

	// SkipBar rides through every panicking bar.
	cfg := quietConfig()
	cfg.Policy = SkipBar
	e, err = New(cfg, &feed.SliceSource{Bars: uptrendBars(3)}, strat, synLedger(t))
	require.NoError(t, err)
	report, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, report.SkippedBars)
}

// recordingJournal counts what the engine reports.
type recordingJournal struct {
	trades []journal.TradeRecord
	equity []journal.EquitySnapshot
}

func (j *recordingJournal) RecordTrade(t journal.TradeRecord) error {
	j.trades = append(j.trades, t)
	return nil
}

func (j *recordingJournal) RecordEquity(e journal.EquitySnapshot) error {
	j.equity = append(j.equity, e)
	return nil
}

func (j *recordingJournal) Close() error { return nil }

func TestJournalReceivesTradesAndEquity(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{
		name: "script",
		onBar: func(ctx strategy.Context, bar market.Bar) (strategy.Action, error) {
			if !ctx.HasPosition {
				return strategy.Open{Side: market.Buy, Size: 0.1, Comment: "probe"}, nil
			}
			return strategy.Close{}, nil
		},
	}

	jrn := &recordingJournal{}
	cfg := quietConfig()
	cfg.Journal = jrn

	e, err := New(cfg, &feed.SliceSource{Bars: uptrendBars(4)}, strat, synLedger(t))
	require.NoError(t, err)

	report, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, jrn.equity, 4, "one snapshot per bar")
	require.Len(t, jrn.trades, len(report.Trades))
	assert.Equal(t, "SYN", jrn.trades[0].Instrument)
	assert.Equal(t, "probe", jrn.trades[0].Comment)
	assert.NotEmpty(t, jrn.trades[0].TradeID)
}

func TestContextCancellationStopsRun(t *testing.T) {
	t.Parallel()

	strat := &scriptStrategy{
		name:  "noop",
		onBar: func(strategy.Context, market.Bar) (strategy.Action, error) { return strategy.Hold{}, nil },
	}

	e, err := New(quietConfig(), &feed.SliceSource{Bars: uptrendBars(10)}, strat, synLedger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	led := synLedger(t)
	strat := &scriptStrategy{name: "noop"}
	src := &feed.SliceSource{}

	_, err := New(quietConfig(), nil, strat, led)
	assert.Error(t, err)
	_, err = New(quietConfig(), src, nil, led)
	assert.Error(t, err)
	_, err = New(quietConfig(), src, strat, nil)
	assert.Error(t, err)

	cfg := quietConfig()
	cfg.Timeframe = "H7"
	_, err = New(cfg, src, strat, led)
	assert.Error(t, err)
}
