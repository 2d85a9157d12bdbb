package strategy

import (
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/backtester/market"
)

// PredictionKind declares how a predictor's scalar output is to be read.
// The contract is explicit: magnitude-based guessing about whether a value
// is a percentage or a price is exactly the kind of silent breakage this
// field exists to prevent.
type PredictionKind int

const (
	// PercentChange means the value is a fractional price change
	// (0.001 = +0.1%).
	PercentChange PredictionKind = iota

	// AbsolutePrice means the value is a predicted price level.
	AbsolutePrice
)

// Prediction is one model output.
type Prediction struct {
	Kind  PredictionKind
	Value float64
}

// Predictor is the inference seam for model-driven strategies. One instance
// per backtest unless the implementation is known to be re-entrant.
type Predictor interface {
	// Lookback is the number of trailing bars one prediction consumes.
	Lookback() int

	// Predict consumes a lookback x NumFeatures matrix (oldest bar first)
	// and returns the model's output.
	Predict(features [][]float64) (Prediction, error)
}

// ErrNoPrediction signals the predictor had no usable output for this
// window. The strategy holds; the engine's error policy is not involved.
var ErrNoPrediction = errors.New("strategy: no prediction")

// ModelConfig configures the model-driven strategy.
type ModelConfig struct {
	Common

	// PredictionThreshold is the minimum |predicted change| (fractional)
	// that justifies a trade.
	PredictionThreshold float64

	// MinConfidence is the minimum confidence gate; confidence maps a 1%
	// predicted move to 1.0.
	MinConfidence float64

	// BufferMargin is how many bars beyond the lookback window the buffer
	// retains before evicting the oldest.
	BufferMargin int

	// Scaler normalizes features before inference; nil falls back to
	// per-window standardization.
	Scaler Scaler
}

func ModelDefaults() ModelConfig {
	return ModelConfig{
		Common:              commonDefaults(),
		PredictionThreshold: 0.0001,
		MinConfidence:       0.0,
		BufferMargin:        50,
	}
}

// Model trades on a predictor's forecast of the next price change. It keeps
// a rolling buffer of bars, builds the 13-feature matrix over the lookback
// window, and opens a position only when BOTH gates pass: the predicted
// change clears the threshold and the derived confidence clears the
// minimum. While a position is open the strategy holds and leaves exits to
// the stop/take levels.
type Model struct {
	cfg       ModelConfig
	predictor Predictor

	buffer []market.Bar
}

func NewModel(cfg ModelConfig, p Predictor) (*Model, error) {
	if p == nil {
		return nil, errors.New("strategy: model requires a predictor")
	}
	if p.Lookback() <= 0 {
		return nil, fmt.Errorf("strategy: predictor lookback must be positive, got %d", p.Lookback())
	}
	if cfg.BufferMargin < 0 {
		return nil, fmt.Errorf("strategy: buffer margin must not be negative, got %d", cfg.BufferMargin)
	}
	return &Model{cfg: cfg, predictor: p}, nil
}

func (s *Model) Name() string { return "model" }

func (s *Model) RequiredIndicators() map[string]IndicatorSpec {
	return map[string]IndicatorSpec{
		"rsi": {Kind: "rsi", Period: 14},
		"ema": {Kind: "ema", Period: 50},
		"atr": {Kind: "atr", Period: 14},
	}
}

func (s *Model) Params() map[string]any {
	return map[string]any{
		"lookback":             s.predictor.Lookback(),
		"prediction_threshold": s.cfg.PredictionThreshold,
		"min_confidence":       s.cfg.MinConfidence,
		"lot_size":             s.cfg.LotSize,
		"stop_loss_pips":       s.cfg.StopLossPips,
		"take_profit_pips":     s.cfg.TakeProfitPips,
	}
}

// Warm reports whether the buffer holds a full lookback window.
func (s *Model) Warm() bool {
	return len(s.buffer) >= s.predictor.Lookback()
}

func (s *Model) OnBar(ctx Context, bar market.Bar) (Action, error) {
	lookback := s.predictor.Lookback()

	s.buffer = append(s.buffer, bar)
	if max := lookback + s.cfg.BufferMargin; len(s.buffer) > max {
		s.buffer = s.buffer[len(s.buffer)-max:]
	}

	if !s.Warm() {
		return Hold{}, nil
	}

	// The engine already ran stop/take checks for this bar; with a position
	// open there is nothing to decide.
	if ctx.HasPosition {
		return Hold{}, nil
	}

	changePct, err := s.predictChange(bar.Close)
	if err != nil {
		if errors.Is(err, ErrNoPrediction) {
			return Hold{}, nil
		}
		return Hold{}, err
	}

	confidence := math.Min(math.Abs(changePct)/0.01, 1.0)

	if confidence < s.cfg.MinConfidence {
		return Hold{}, nil
	}
	if math.Abs(changePct) < s.cfg.PredictionThreshold {
		return Hold{}, nil
	}

	switch {
	case changePct > s.cfg.PredictionThreshold:
		sl, tp := s.cfg.stops(market.Buy, bar.Close)
		return Open{Side: market.Buy, Size: s.cfg.LotSize, StopLoss: sl, TakeProfit: tp, Comment: "model buy"}, nil

	case changePct < -s.cfg.PredictionThreshold:
		sl, tp := s.cfg.stops(market.Sell, bar.Close)
		return Open{Side: market.Sell, Size: s.cfg.LotSize, StopLoss: sl, TakeProfit: tp, Comment: "model sell"}, nil
	}

	return Hold{}, nil
}

// predictChange runs inference over the current window and converts the
// output into a fractional price change according to its declared kind.
func (s *Model) predictChange(currentClose float64) (float64, error) {
	window := s.buffer[len(s.buffer)-s.predictor.Lookback():]

	features := BuildFeatures(window)

	scaler := s.cfg.Scaler
	if scaler == nil {
		scaler = windowScaler{}
	}
	scaled, err := scaler.Transform(features)
	if err != nil {
		return 0, fmt.Errorf("strategy: scale features: %w", err)
	}

	pred, err := s.predictor.Predict(scaled)
	if err != nil {
		return 0, fmt.Errorf("strategy: predict: %w", err)
	}
	if math.IsNaN(pred.Value) || math.IsInf(pred.Value, 0) {
		return 0, ErrNoPrediction
	}

	switch pred.Kind {
	case PercentChange:
		return pred.Value, nil

	case AbsolutePrice:
		if pred.Value <= 0 || pred.Value > 10_000 {
			return 0, ErrNoPrediction
		}
		if currentClose <= 0 {
			return 0, ErrNoPrediction
		}
		return (pred.Value - currentClose) / currentClose, nil

	default:
		return 0, fmt.Errorf("strategy: unknown prediction kind %d", pred.Kind)
	}
}
