package strategy

import (
	"github.com/rustyeddy/backtester/market"
)

// RSIScalpingConfig configures the RSI threshold-crossover scalper.
type RSIScalpingConfig struct {
	Common
	RSIPeriod  int
	Overbought float64
	Oversold   float64
	TargetBuy  float64 // RSI level that takes profit on a long
	TargetSell float64 // RSI level that takes profit on a short
	MaxSpread  int64   // in points; 0 disables the filter
}

func RSIScalpingDefaults() RSIScalpingConfig {
	return RSIScalpingConfig{
		Common:     commonDefaults(),
		RSIPeriod:  14,
		Overbought: 70,
		Oversold:   30,
		TargetBuy:  80,
		TargetSell: 20,
		MaxSpread:  1000,
	}
}

// RSIScalping enters when RSI crosses out of an extreme zone (above
// oversold for longs, below overbought for shorts) and exits when RSI
// reaches the target level. Bars with a spread above MaxSpread are skipped.
type RSIScalping struct {
	cfg RSIScalpingConfig

	prevRSI float64
	primed  bool
}

func NewRSIScalping(cfg RSIScalpingConfig) *RSIScalping {
	return &RSIScalping{cfg: cfg}
}

func (s *RSIScalping) Name() string { return "rsi-scalping" }

func (s *RSIScalping) RequiredIndicators() map[string]IndicatorSpec {
	return map[string]IndicatorSpec{
		"rsi": {Kind: "rsi", Period: s.cfg.RSIPeriod},
	}
}

func (s *RSIScalping) Params() map[string]any {
	return map[string]any{
		"rsi_period":       s.cfg.RSIPeriod,
		"rsi_overbought":   s.cfg.Overbought,
		"rsi_oversold":     s.cfg.Oversold,
		"rsi_target_buy":   s.cfg.TargetBuy,
		"rsi_target_sell":  s.cfg.TargetSell,
		"max_spread":       s.cfg.MaxSpread,
		"lot_size":         s.cfg.LotSize,
		"stop_loss_pips":   s.cfg.StopLossPips,
		"take_profit_pips": s.cfg.TakeProfitPips,
	}
}

func (s *RSIScalping) OnBar(ctx Context, bar market.Bar) (Action, error) {
	rsi, ok := bar.Indicator("rsi")
	if !ok {
		return Hold{}, nil
	}
	price := bar.Close

	if s.cfg.MaxSpread > 0 && bar.Spread > s.cfg.MaxSpread {
		return Hold{}, nil
	}

	defer func() {
		s.prevRSI = rsi
		s.primed = true
	}()

	if ctx.HasPosition {
		if ctx.Side == market.Buy && rsi >= s.cfg.TargetBuy {
			return Close{Comment: "rsi target"}, nil
		}
		if ctx.Side == market.Sell && rsi <= s.cfg.TargetSell {
			return Close{Comment: "rsi target"}, nil
		}
		return Hold{}, nil
	}

	if !s.primed {
		return Hold{}, nil
	}

	switch {
	// Cross up out of the oversold zone.
	case s.prevRSI <= s.cfg.Oversold && rsi > s.cfg.Oversold:
		sl, tp := s.cfg.stops(market.Buy, price)
		return Open{Side: market.Buy, Size: s.cfg.LotSize, StopLoss: sl, TakeProfit: tp, Comment: "rsi scalp buy"}, nil

	// Cross down out of the overbought zone.
	case s.prevRSI >= s.cfg.Overbought && rsi < s.cfg.Overbought:
		sl, tp := s.cfg.stops(market.Sell, price)
		return Open{Side: market.Sell, Size: s.cfg.LotSize, StopLoss: sl, TakeProfit: tp, Comment: "rsi scalp sell"}, nil
	}

	return Hold{}, nil
}
