package strategy

import (
	"github.com/rustyeddy/backtester/market"
)

// EMACrossConfig configures the price-vs-EMA crossover strategy.
type EMACrossConfig struct {
	Common
	EMAPeriod int
}

// EMACrossDefaults returns the reference configuration: EMA(50), 0.1 lots,
// 50/100 pip stop/take.
func EMACrossDefaults() EMACrossConfig {
	return EMACrossConfig{
		Common:    commonDefaults(),
		EMAPeriod: 50,
	}
}

// EMACross goes long when price crosses above its EMA and short when it
// crosses below, closing on the opposite cross. Crossover detection uses
// one bar of memory; the first bar with an EMA only primes that memory.
type EMACross struct {
	cfg EMACrossConfig

	prevPrice float64
	prevEMA   float64
	primed    bool
}

func NewEMACross(cfg EMACrossConfig) *EMACross {
	return &EMACross{cfg: cfg}
}

func (s *EMACross) Name() string { return "ema-cross" }

func (s *EMACross) RequiredIndicators() map[string]IndicatorSpec {
	return map[string]IndicatorSpec{
		"ema": {Kind: "ema", Period: s.cfg.EMAPeriod},
	}
}

func (s *EMACross) Params() map[string]any {
	return map[string]any{
		"ema_period":       s.cfg.EMAPeriod,
		"lot_size":         s.cfg.LotSize,
		"stop_loss_pips":   s.cfg.StopLossPips,
		"take_profit_pips": s.cfg.TakeProfitPips,
	}
}

func (s *EMACross) OnBar(ctx Context, bar market.Bar) (Action, error) {
	ema, ok := bar.Indicator("ema")
	if !ok {
		return Hold{}, nil
	}
	price := bar.Close

	defer func() {
		s.prevPrice = price
		s.prevEMA = ema
		s.primed = true
	}()

	if ctx.HasPosition {
		// Exit on the opposite side of the EMA.
		if ctx.Side == market.Buy && price < ema {
			return Close{Comment: "ema cross exit"}, nil
		}
		if ctx.Side == market.Sell && price > ema {
			return Close{Comment: "ema cross exit"}, nil
		}
		return Hold{}, nil
	}

	if !s.primed {
		return Hold{}, nil
	}

	switch {
	case s.prevPrice <= s.prevEMA && price > ema:
		sl, tp := s.cfg.stops(market.Buy, price)
		return Open{Side: market.Buy, Size: s.cfg.LotSize, StopLoss: sl, TakeProfit: tp, Comment: "ema cross buy"}, nil

	case s.prevPrice >= s.prevEMA && price < ema:
		sl, tp := s.cfg.stops(market.Sell, price)
		return Open{Side: market.Sell, Size: s.cfg.LotSize, StopLoss: sl, TakeProfit: tp, Comment: "ema cross sell"}, nil
	}

	return Hold{}, nil
}
