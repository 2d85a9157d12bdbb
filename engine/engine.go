package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rustyeddy/backtester/feed"
	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/ledger"
	"github.com/rustyeddy/backtester/market"
	"github.com/rustyeddy/backtester/strategy"
)

// ErrOutOfOrderBar means the source violated the ascending-time contract.
// The run aborts; a shuffled series would silently corrupt every
// downstream number.
var ErrOutOfOrderBar = errors.New("engine: bars out of order")

// ErrNoData is feed.ErrNoData re-exported so engine callers can test for
// it without importing feed.
var ErrNoData = feed.ErrNoData

// ErrorPolicy controls what happens when a strategy fails on a bar.
type ErrorPolicy int

const (
	// FailFast aborts the run on the first strategy error.
	FailFast ErrorPolicy = iota

	// SkipBar logs the error and continues with the next bar. The bar's
	// stop/take check and equity mark still happen.
	SkipBar
)

func (p ErrorPolicy) String() string {
	switch p {
	case FailFast:
		return "fail_fast"
	case SkipBar:
		return "skip_bar"
	}
	return fmt.Sprintf("ErrorPolicy(%d)", int(p))
}

// ParseErrorPolicy converts a config string into an ErrorPolicy.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch s {
	case "", "fail_fast":
		return FailFast, nil
	case "skip_bar":
		return SkipBar, nil
	}
	return FailFast, fmt.Errorf("unknown error policy %q (want fail_fast or skip_bar)", s)
}

// EquityPoint is one entry of the per-bar equity curve.
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Balance  float64   `json:"balance"`
	Equity   float64   `json:"equity"`
	Drawdown float64   `json:"drawdown"`
}

// Report is the result of one completed run.
type Report struct {
	Symbol    string           `json:"symbol"`
	Timeframe market.Timeframe `json:"timeframe"`
	Strategy  string           `json:"strategy"`
	Params    map[string]any   `json:"params"`
	Start     time.Time        `json:"start"`
	End       time.Time        `json:"end"`

	Metrics ledger.Metrics       `json:"metrics"`
	Trades  []ledger.ClosedTrade `json:"trades"`
	Equity  []EquityPoint        `json:"equity"`

	BarCount    int `json:"bar_count"`
	SkippedBars int `json:"skipped_bars"`
}

// Config wires one engine run.
type Config struct {
	Symbol    string
	Timeframe market.Timeframe
	Start     time.Time
	End       time.Time

	Policy  ErrorPolicy
	Journal journal.Journal
	Logger  *slog.Logger
}

// Engine replays bars through a strategy against a ledger. Per bar the
// order is fixed: stop/take check first, then the strategy's decision,
// then the equity mark at the bar close.
type Engine struct {
	cfg   Config
	src   feed.BarSource
	strat strategy.Strategy
	led   *ledger.Ledger
	jrn   journal.Journal
	log   *slog.Logger
}

func New(cfg Config, src feed.BarSource, strat strategy.Strategy, led *ledger.Ledger) (*Engine, error) {
	if src == nil {
		return nil, errors.New("engine: nil bar source")
	}
	if strat == nil {
		return nil, errors.New("engine: nil strategy")
	}
	if led == nil {
		return nil, errors.New("engine: nil ledger")
	}
	if cfg.Symbol == "" {
		cfg.Symbol = led.Instrument().Symbol
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = market.H1
	}
	if !cfg.Timeframe.Valid() {
		return nil, fmt.Errorf("engine: invalid timeframe %q", cfg.Timeframe)
	}
	jrn := cfg.Journal
	if jrn == nil {
		jrn = journal.Nop{}
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg, src: src, strat: strat, led: led, jrn: jrn, log: log}, nil
}

// Run fetches the series, precomputes the strategy's indicators, and
// replays every bar. It returns ErrNoData when the source has no bars and
// ErrOutOfOrderBar when the series is not strictly ascending.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	bars, err := e.src.Fetch(ctx, e.cfg.Symbol, e.cfg.Timeframe, e.cfg.Start, e.cfg.End)
	if err != nil {
		return nil, fmt.Errorf("engine: fetch %s %s: %w", e.cfg.Symbol, e.cfg.Timeframe, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("engine: %s %s: %w", e.cfg.Symbol, e.cfg.Timeframe, ErrNoData)
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("engine: bar %d (%s) not after bar %d (%s): %w",
				i, bars[i].Time.Format(time.RFC3339), i-1, bars[i-1].Time.Format(time.RFC3339), ErrOutOfOrderBar)
		}
	}

	bars, err = AttachIndicators(bars, e.strat.RequiredIndicators())
	if err != nil {
		return nil, fmt.Errorf("engine: indicators: %w", err)
	}

	e.log.Info("backtest start",
		"symbol", e.cfg.Symbol,
		"timeframe", string(e.cfg.Timeframe),
		"strategy", e.strat.Name(),
		"bars", len(bars),
		"balance", e.led.Balance(),
	)

	report := &Report{
		Symbol:    e.cfg.Symbol,
		Timeframe: e.cfg.Timeframe,
		Strategy:  e.strat.Name(),
		Params:    e.strat.Params(),
		Start:     bars[0].Time,
		End:       bars[len(bars)-1].Time,
		BarCount:  len(bars),
		Equity:    make([]EquityPoint, 0, len(bars)),
	}

	journaled := 0

	for i, bar := range bars {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		e.led.SetClock(bar.Time)

		if e.led.HasPosition() {
			if _, err := e.led.CheckStopTakeProfit(bar.Close); err != nil {
				return nil, fmt.Errorf("engine: bar %d: stop/take: %w", i, err)
			}
		}

		act, err := e.onBar(bar)
		if err != nil {
			if e.cfg.Policy == FailFast {
				return nil, fmt.Errorf("engine: bar %d (%s): %w", i, bar.Time.Format(time.RFC3339), err)
			}
			report.SkippedBars++
			e.log.Warn("bar skipped", "bar", i, "time", bar.Time, "error", err)
			act = strategy.Hold{}
		}

		if err := e.apply(act, bar); err != nil {
			return nil, fmt.Errorf("engine: bar %d: %w", i, err)
		}

		equity := e.led.MarkEquity(bar.Close)
		point := EquityPoint{
			Time:     bar.Time,
			Balance:  e.led.Balance(),
			Equity:   equity,
			Drawdown: e.led.MaxDrawdown(),
		}
		report.Equity = append(report.Equity, point)
		if err := e.jrn.RecordEquity(journal.EquitySnapshot(point)); err != nil {
			return nil, fmt.Errorf("engine: journal equity: %w", err)
		}

		journaled, err = e.journalNewTrades(journaled)
		if err != nil {
			return nil, err
		}
	}

	if e.led.HasPosition() {
		last := bars[len(bars)-1]
		if _, err := e.led.ClosePosition(last.Close, ledger.ReasonEndOfData); err != nil {
			return nil, fmt.Errorf("engine: close at end of data: %w", err)
		}
		e.led.MarkEquity(last.Close)
		if journaled, err = e.journalNewTrades(journaled); err != nil {
			return nil, err
		}
	}

	report.Trades = e.led.ClosedTrades()
	report.Metrics = e.led.Metrics()

	e.log.Info("backtest done",
		"trades", report.Metrics.TotalTrades,
		"final_balance", report.Metrics.FinalBalance,
		"return_pct", report.Metrics.TotalReturnPct,
		"skipped_bars", report.SkippedBars,
	)

	return report, nil
}

// onBar runs the strategy with panic recovery. A panicking strategy is an
// error on that bar, not a crashed process.
func (e *Engine) onBar(bar market.Bar) (act strategy.Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			act, err = nil, fmt.Errorf("strategy panic: %v", r)
		}
	}()

	ctx := strategy.Context{
		Balance: e.led.Balance(),
		Equity:  e.led.Equity(),
	}
	if pos, ok := e.led.Position(); ok {
		ctx.HasPosition = true
		ctx.Side = pos.Side
		ctx.EntryPrice = pos.EntryPrice
	}

	return e.strat.OnBar(ctx, bar)
}

// apply executes the strategy's action against the ledger. Only the engine
// mutates the ledger.
func (e *Engine) apply(act strategy.Action, bar market.Bar) error {
	switch a := act.(type) {
	case strategy.Hold, nil:
		return nil

	case strategy.Open:
		opened, err := e.led.OpenPosition(a.Side, a.Size, bar.Close, a.StopLoss, a.TakeProfit, a.Comment)
		if err != nil {
			return fmt.Errorf("open: %w", err)
		}
		if !opened {
			e.log.Debug("open rejected", "time", bar.Time, "side", a.Side, "size", a.Size)
		}
		return nil

	case strategy.Close:
		if !e.led.HasPosition() {
			return nil
		}
		_, err := e.led.ClosePosition(bar.Close, ledger.ReasonStrategy)
		if err != nil {
			return fmt.Errorf("close: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown action %T", act)
	}
}

// journalNewTrades records any trades closed since the last call and
// returns the new high-water mark.
func (e *Engine) journalNewTrades(from int) (int, error) {
	trades := e.led.ClosedTrades()
	for _, t := range trades[from:] {
		rec := journal.TradeRecord{
			TradeID:    t.ID,
			Instrument: e.cfg.Symbol,
			Side:       t.Side,
			Size:       t.Size,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			OpenTime:   t.EntryTime,
			CloseTime:  t.ExitTime,
			Pips:       t.Pips,
			RealizedPL: t.Profit,
			Reason:     t.Reason,
			Comment:    t.Comment,
		}
		if err := e.jrn.RecordTrade(rec); err != nil {
			return from, fmt.Errorf("engine: journal trade %s: %w", t.ID, err)
		}
	}
	return len(trades), nil
}
