package indicators

import "fmt"

// Streaming indicators update one close at a time. They exist for strategies
// that keep incremental state instead of precomputed series (the model
// strategy's internal EMA20, the crossover strategies' fast/slow pair).
// Callers must check Ready() before using Value().

// StreamingEMA is an exponential moving average seeded with the SMA of the
// first period values.
type StreamingEMA struct {
	period     int
	multiplier float64
	ema        float64
	count      int
	warmupSum  float64
}

func NewStreamingEMA(period int) *StreamingEMA {
	return &StreamingEMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *StreamingEMA) Name() string { return fmt.Sprintf("EMA(%d)", e.period) }

func (e *StreamingEMA) Warmup() int { return e.period }

func (e *StreamingEMA) Reset() {
	e.ema = 0
	e.count = 0
	e.warmupSum = 0
}

func (e *StreamingEMA) Update(close float64) {
	if e.count < e.period {
		e.warmupSum += close
		e.count++
		if e.count == e.period {
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.ema = (close-e.ema)*e.multiplier + e.ema
}

func (e *StreamingEMA) Ready() bool { return e.count >= e.period }

func (e *StreamingEMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}

// StreamingSMA is a simple moving average over the last period closes.
type StreamingSMA struct {
	period int
	window []float64
}

func NewStreamingSMA(period int) *StreamingSMA {
	return &StreamingSMA{
		period: period,
		window: make([]float64, 0, period),
	}
}

func (m *StreamingSMA) Name() string { return fmt.Sprintf("SMA(%d)", m.period) }

func (m *StreamingSMA) Warmup() int { return m.period }

func (m *StreamingSMA) Reset() { m.window = m.window[:0] }

func (m *StreamingSMA) Update(close float64) {
	m.window = append(m.window, close)
	if len(m.window) > m.period {
		m.window = m.window[1:]
	}
}

func (m *StreamingSMA) Ready() bool { return len(m.window) >= m.period }

func (m *StreamingSMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	sum := 0.0
	for _, c := range m.window {
		sum += c
	}
	return sum / float64(len(m.window))
}
