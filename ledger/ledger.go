// Package ledger owns the account state of one backtest: balance, equity,
// the single open-position slot, the realized trade list, and the running
// risk aggregates (peak equity, max drawdown, win/loss totals).
//
// All business rejections — position already open, insufficient margin,
// nothing to close — are signaled through return values, never errors.
// Errors are reserved for malformed input (non-positive size, non-finite
// price).
package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/rustyeddy/backtester/internal/id"
	"github.com/rustyeddy/backtester/market"
)

// Config sets up a Ledger.
type Config struct {
	InitialBalance float64
	Instrument     market.InstrumentMeta

	// MaxMarginUtilization is the fraction of equity a new position's margin
	// may consume. Zero means the 0.9 default.
	MaxMarginUtilization float64
}

// Ledger tracks one account through one backtest. It is exclusively owned
// by a single engine/strategy pair and is not safe for concurrent use.
type Ledger struct {
	meta    market.InstrumentMeta
	maxUtil float64

	initialBalance float64
	balance        float64
	equity         float64
	peakEquity     float64
	maxDrawdown    float64

	winCount    int
	lossCount   int
	totalProfit float64
	totalLoss   float64

	pos    *Position
	closed []ClosedTrade

	clock time.Time
}

// New creates a Ledger. The initial balance must be positive.
func New(cfg Config) (*Ledger, error) {
	if cfg.InitialBalance <= 0 || !isFinite(cfg.InitialBalance) {
		return nil, fmt.Errorf("ledger: initial balance must be positive and finite, got %v", cfg.InitialBalance)
	}
	maxUtil := cfg.MaxMarginUtilization
	if maxUtil == 0 {
		maxUtil = 0.9
	}
	if maxUtil < 0 || maxUtil > 1 {
		return nil, fmt.Errorf("ledger: max margin utilization must be in (0,1], got %v", maxUtil)
	}

	meta := cfg.Instrument
	if meta.Symbol == "" {
		meta = market.Lookup(nil, "EURUSD")
	}

	return &Ledger{
		meta:           meta,
		maxUtil:        maxUtil,
		initialBalance: cfg.InitialBalance,
		balance:        cfg.InitialBalance,
		equity:         cfg.InitialBalance,
		peakEquity:     cfg.InitialBalance,
	}, nil
}

// SetClock sets the replay time used as entry/exit timestamp for subsequent
// operations. The engine advances it to each bar's time so trade records
// carry simulated time, not wall clock.
func (l *Ledger) SetClock(t time.Time) { l.clock = t }

// OpenPosition opens a position of the given size (lots) at price. It
// returns false without mutating anything when a position is already open or
// the margin check fails. Size is clamped into the instrument's lot range
// before the margin check. The balance is untouched; equity changes only on
// the next mark.
func (l *Ledger) OpenPosition(side market.Side, size, price float64, stopLoss, takeProfit *float64, comment string) (bool, error) {
	if side != market.Buy && side != market.Sell {
		return false, fmt.Errorf("ledger: invalid side %d", side)
	}
	if size <= 0 || !isFinite(size) {
		return false, fmt.Errorf("ledger: size must be positive and finite, got %v", size)
	}
	if price <= 0 || !isFinite(price) {
		return false, fmt.Errorf("ledger: price must be positive and finite, got %v", price)
	}
	if stopLoss != nil && !isFinite(*stopLoss) {
		return false, fmt.Errorf("ledger: stop loss must be finite, got %v", *stopLoss)
	}
	if takeProfit != nil && !isFinite(*takeProfit) {
		return false, fmt.Errorf("ledger: take profit must be finite, got %v", *takeProfit)
	}

	if l.pos != nil {
		return false, nil
	}

	size = clamp(size, l.meta.MinLot, l.meta.MaxLot)

	marginRequired := size * l.meta.ContractSize * price * l.meta.MarginRate
	if marginRequired > l.equity*l.maxUtil {
		return false, nil
	}

	l.pos = &Position{
		Side:       side,
		Size:       size,
		EntryPrice: price,
		EntryTime:  l.clock,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Comment:    comment,
	}
	return true, nil
}

// ClosePosition realizes the open position at exitPrice and returns the
// trade record, or nil when no position is open (a no-op, not an error).
func (l *Ledger) ClosePosition(exitPrice float64, reason string) (*ClosedTrade, error) {
	if exitPrice <= 0 || !isFinite(exitPrice) {
		return nil, fmt.Errorf("ledger: exit price must be positive and finite, got %v", exitPrice)
	}
	if l.pos == nil {
		return nil, nil
	}

	p := l.pos
	pips := p.Side.Sign() * (exitPrice - p.EntryPrice) / l.meta.PipSize
	profit := pips * l.meta.PipValue(p.Size)

	l.balance += profit
	l.equity = l.balance

	if profit > 0 {
		l.winCount++
		l.totalProfit += profit
	} else {
		l.lossCount++
		l.totalLoss += math.Abs(profit)
	}

	l.updateDrawdown()

	trade := ClosedTrade{
		ID:         id.New(),
		Side:       p.Side,
		Size:       p.Size,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exitPrice,
		EntryTime:  p.EntryTime,
		ExitTime:   l.clock,
		Pips:       pips,
		Profit:     profit,
		Reason:     reason,
		Comment:    p.Comment,
	}
	l.closed = append(l.closed, trade)
	l.pos = nil

	return &trade, nil
}

// CheckStopTakeProfit closes the open position when currentPrice crosses its
// stop-loss or take-profit level. The fill price is the configured level,
// not the raw bar price, and at most one close happens per call; when a
// pathological bar crosses both levels the stop wins. Returns whether a
// close was triggered.
func (l *Ledger) CheckStopTakeProfit(currentPrice float64) (bool, error) {
	if currentPrice <= 0 || !isFinite(currentPrice) {
		return false, fmt.Errorf("ledger: price must be positive and finite, got %v", currentPrice)
	}
	if l.pos == nil {
		return false, nil
	}

	p := l.pos
	var (
		exit   float64
		reason string
	)

	if p.Side == market.Buy {
		switch {
		case p.StopLoss != nil && currentPrice <= *p.StopLoss:
			exit, reason = *p.StopLoss, ReasonStopLoss
		case p.TakeProfit != nil && currentPrice >= *p.TakeProfit:
			exit, reason = *p.TakeProfit, ReasonTakeProfit
		}
	} else {
		switch {
		case p.StopLoss != nil && currentPrice >= *p.StopLoss:
			exit, reason = *p.StopLoss, ReasonStopLoss
		case p.TakeProfit != nil && currentPrice <= *p.TakeProfit:
			exit, reason = *p.TakeProfit, ReasonTakeProfit
		}
	}

	if reason == "" {
		return false, nil
	}

	if _, err := l.ClosePosition(exit, reason); err != nil {
		return false, err
	}
	return true, nil
}

// MarkEquity revalues the account at the given close price: balance plus
// unrealized P/L when a position is open, plain balance otherwise. Peak
// equity and max drawdown track every mark.
func (l *Ledger) MarkEquity(closePrice float64) float64 {
	if l.pos == nil {
		l.equity = l.balance
	} else {
		l.equity = l.balance + l.UnrealizedPL(closePrice)
	}
	l.updateDrawdown()
	return l.equity
}

// UnrealizedPL values the open position at price, in account currency.
// Returns 0 when no position is open.
func (l *Ledger) UnrealizedPL(price float64) float64 {
	if l.pos == nil {
		return 0
	}
	p := l.pos
	pips := p.Side.Sign() * (price - p.EntryPrice) / l.meta.PipSize
	return pips * l.meta.PipValue(p.Size)
}

func (l *Ledger) updateDrawdown() {
	if l.equity > l.peakEquity {
		l.peakEquity = l.equity
	}
	if l.peakEquity <= 0 {
		return
	}
	dd := (l.peakEquity - l.equity) / l.peakEquity
	if dd > l.maxDrawdown {
		l.maxDrawdown = dd
	}
}

// InitialBalance returns the starting balance.
func (l *Ledger) InitialBalance() float64 { return l.initialBalance }

// Balance returns the realized balance.
func (l *Ledger) Balance() float64 { return l.balance }

// Equity returns the balance plus unrealized P/L as of the last mark.
func (l *Ledger) Equity() float64 { return l.equity }

// PeakEquity returns the highest equity seen so far.
func (l *Ledger) PeakEquity() float64 { return l.peakEquity }

// MaxDrawdown returns the largest peak-to-trough equity decline seen so far,
// as a fraction of the peak. It never decreases.
func (l *Ledger) MaxDrawdown() float64 { return l.maxDrawdown }

// HasPosition reports whether a position is open.
func (l *Ledger) HasPosition() bool { return l.pos != nil }

// Position returns a copy of the open position.
func (l *Ledger) Position() (Position, bool) {
	if l.pos == nil {
		return Position{}, false
	}
	return *l.pos, true
}

// ClosedTrades returns the realized trades in close order. The returned
// slice is shared; callers must not mutate it.
func (l *Ledger) ClosedTrades() []ClosedTrade { return l.closed }

// Instrument returns the contract metadata the ledger prices with.
func (l *Ledger) Instrument() market.InstrumentMeta { return l.meta }

func clamp(v, lo, hi float64) float64 {
	if lo > 0 && v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
