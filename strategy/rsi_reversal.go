package strategy

import (
	"github.com/rustyeddy/backtester/market"
)

// RSIReversalConfig configures the RSI reversal strategy.
type RSIReversalConfig struct {
	Common
	RSIPeriod  int
	Overbought float64
	Oversold   float64
	Exit       float64 // neutral RSI level that closes the position
}

func RSIReversalDefaults() RSIReversalConfig {
	return RSIReversalConfig{
		Common:     commonDefaults(),
		RSIPeriod:  14,
		Overbought: 70,
		Oversold:   30,
		Exit:       50,
	}
}

// RSIReversal buys when RSI is oversold and turning up, sells when RSI is
// overbought and turning down, and exits when RSI returns to the neutral
// level.
type RSIReversal struct {
	cfg RSIReversalConfig

	prevRSI float64
	primed  bool
}

func NewRSIReversal(cfg RSIReversalConfig) *RSIReversal {
	return &RSIReversal{cfg: cfg}
}

func (s *RSIReversal) Name() string { return "rsi-reversal" }

func (s *RSIReversal) RequiredIndicators() map[string]IndicatorSpec {
	return map[string]IndicatorSpec{
		"rsi": {Kind: "rsi", Period: s.cfg.RSIPeriod},
	}
}

func (s *RSIReversal) Params() map[string]any {
	return map[string]any{
		"rsi_period":       s.cfg.RSIPeriod,
		"rsi_overbought":   s.cfg.Overbought,
		"rsi_oversold":     s.cfg.Oversold,
		"rsi_exit":         s.cfg.Exit,
		"lot_size":         s.cfg.LotSize,
		"stop_loss_pips":   s.cfg.StopLossPips,
		"take_profit_pips": s.cfg.TakeProfitPips,
	}
}

func (s *RSIReversal) OnBar(ctx Context, bar market.Bar) (Action, error) {
	rsi, ok := bar.Indicator("rsi")
	if !ok {
		return Hold{}, nil
	}
	price := bar.Close

	defer func() {
		s.prevRSI = rsi
		s.primed = true
	}()

	if ctx.HasPosition {
		if ctx.Side == market.Buy && rsi >= s.cfg.Exit {
			return Close{Comment: "rsi back to neutral"}, nil
		}
		if ctx.Side == market.Sell && rsi <= s.cfg.Exit {
			return Close{Comment: "rsi back to neutral"}, nil
		}
		return Hold{}, nil
	}

	if !s.primed {
		return Hold{}, nil
	}

	switch {
	// Oversold and rising.
	case s.prevRSI < s.cfg.Oversold && rsi > s.prevRSI:
		sl, tp := s.cfg.stops(market.Buy, price)
		return Open{Side: market.Buy, Size: s.cfg.LotSize, StopLoss: sl, TakeProfit: tp, Comment: "rsi reversal buy"}, nil

	// Overbought and falling.
	case s.prevRSI > s.cfg.Overbought && rsi < s.prevRSI:
		sl, tp := s.cfg.stops(market.Sell, price)
		return Open{Side: market.Sell, Size: s.cfg.LotSize, StopLoss: sl, TakeProfit: tp, Comment: "rsi reversal sell"}, nil
	}

	return Hold{}, nil
}
