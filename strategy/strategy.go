// Package strategy defines the decision contract between the backtest
// engine and trading logic, and ships the built-in rule-based and
// model-driven strategies.
//
// A strategy never touches the ledger. It reads a snapshot of account state,
// inspects one bar, and returns an Action; the engine alone applies actions.
// That keeps every decision function pure and testable without an account.
package strategy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/backtester/market"
)

// IndicatorSpec declares one indicator a strategy needs attached to each
// bar before OnBar runs. Kind is one of "rsi", "ema", "sma", "atr", "macd".
type IndicatorSpec struct {
	Kind   string
	Period int

	// MACD only.
	Fast   int
	Slow   int
	Signal int
}

// Context is the read-only account snapshot a strategy decides from.
type Context struct {
	HasPosition bool
	Side        market.Side
	EntryPrice  float64
	Balance     float64
	Equity      float64
}

// Action is what a strategy wants done on this bar: open, close, or
// nothing. The engine applies it to the ledger.
type Action interface{ isAction() }

// Open requests a new position. Size is in lots; StopLoss/TakeProfit are
// absolute price levels (nil for none).
type Open struct {
	Side       market.Side
	Size       float64
	StopLoss   *float64
	TakeProfit *float64
	Comment    string
}

// Close requests closing the open position at the bar's close price.
type Close struct {
	Comment string
}

// Hold requests nothing.
type Hold struct{}

func (Open) isAction()  {}
func (Close) isAction() {}
func (Hold) isAction()  {}

// Strategy is the unit of trading logic one engine replays bars through.
type Strategy interface {
	// Name identifies the strategy in reports and journals.
	Name() string

	// RequiredIndicators declares what the engine must precompute and attach
	// to each bar, keyed by the indicator name the strategy reads back.
	RequiredIndicators() map[string]IndicatorSpec

	// Params returns the configuration for reporting.
	Params() map[string]any

	// OnBar consumes one bar (with indicators attached) and returns the
	// requested action. Errors are routed through the engine's error policy.
	OnBar(ctx Context, bar market.Bar) (Action, error)
}

// Options carries the CLI-facing knobs shared by the built-in strategies.
type Options struct {
	LotSize        float64
	StopLossPips   float64
	TakeProfitPips float64
	PipSize        float64

	EMAPeriod     int
	RSIPeriod     int
	RSIOverbought float64
	RSIOversold   float64
}

// ByName builds one of the built-in strategies from CLI-style options.
func ByName(name string, opts Options) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ema-cross", "emacross", "ema":
		cfg := EMACrossDefaults()
		applyCommon(&cfg.Common, opts)
		if opts.EMAPeriod > 0 {
			cfg.EMAPeriod = opts.EMAPeriod
		}
		return NewEMACross(cfg), nil

	case "rsi-reversal", "rsireversal":
		cfg := RSIReversalDefaults()
		applyCommon(&cfg.Common, opts)
		applyRSI(&cfg.RSIPeriod, &cfg.Overbought, &cfg.Oversold, opts)
		return NewRSIReversal(cfg), nil

	case "rsi-scalping", "rsiscalping", "rsi":
		cfg := RSIScalpingDefaults()
		applyCommon(&cfg.Common, opts)
		applyRSI(&cfg.RSIPeriod, &cfg.Overbought, &cfg.Oversold, opts)
		return NewRSIScalping(cfg), nil

	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: ema-cross, rsi-reversal, rsi-scalping)", name)
	}
}

func applyCommon(c *Common, opts Options) {
	if opts.LotSize > 0 {
		c.LotSize = opts.LotSize
	}
	if opts.StopLossPips > 0 {
		c.StopLossPips = opts.StopLossPips
	}
	if opts.TakeProfitPips > 0 {
		c.TakeProfitPips = opts.TakeProfitPips
	}
	if opts.PipSize > 0 {
		c.PipSize = opts.PipSize
	}
}

func applyRSI(period *int, overbought, oversold *float64, opts Options) {
	if opts.RSIPeriod > 0 {
		*period = opts.RSIPeriod
	}
	if opts.RSIOverbought > 0 {
		*overbought = opts.RSIOverbought
	}
	if opts.RSIOversold > 0 {
		*oversold = opts.RSIOversold
	}
}

// Registry holds named strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds a strategy keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get looks up a strategy by name.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// List returns registered names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Common is the risk configuration shared by the built-in strategies: fixed
// lot size and stop/take distances in pips.
type Common struct {
	LotSize        float64
	StopLossPips   float64
	TakeProfitPips float64
	PipSize        float64
}

func commonDefaults() Common {
	return Common{
		LotSize:        0.1,
		StopLossPips:   50,
		TakeProfitPips: 100,
		PipSize:        0.0001,
	}
}

// stops converts pip distances into absolute SL/TP levels around price.
// A zero distance means no level.
func (c Common) stops(side market.Side, price float64) (sl, tp *float64) {
	if c.StopLossPips > 0 {
		v := price - side.Sign()*c.StopLossPips*c.PipSize
		sl = &v
	}
	if c.TakeProfitPips > 0 {
		v := price + side.Sign()*c.TakeProfitPips*c.PipSize
		tp = &v
	}
	return sl, tp
}
