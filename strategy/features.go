package strategy

import (
	"math"

	"github.com/rustyeddy/backtester/market"
)

// Feature layout for the model-driven strategy. The order and normalization
// must byte-for-byte match what the model was trained on; changing anything
// here silently breaks every prediction with no error signal.
//
//	0  open
//	1  high
//	2  low
//	3  close
//	4  volume / 1e6
//	5  rsi / 100              (50 when not attached)
//	6  (ema20 - close)/close  ema20 computed over the window
//	7  (ema50 - close)/close  ema50 from the attached "ema" indicator
//	8  atr / close            (0 when not attached)
//	9  bar-over-bar close return
//	10 high / low
//	11 volumeMA20 / 1e6       rolling mean, partial windows allowed
//	12 volume / volumeMA20
const NumFeatures = 13

const (
	featureEMASpan     = 20
	volumeMAWindow     = 20
	volumeScale        = 1_000_000.0
	defaultNeutralRSI  = 50.0
	defaultMissingATR  = 0.0
	defaultHighLowFlat = 1.0
)

// BuildFeatures converts a window of bars into the model's feature matrix,
// one row per bar. The caller passes bars oldest-first.
func BuildFeatures(bars []market.Bar) [][]float64 {
	ema20 := windowEMA(bars, featureEMASpan)
	volMA := windowVolumeMA(bars, volumeMAWindow)

	rows := make([][]float64, len(bars))
	for i, b := range bars {
		row := make([]float64, 0, NumFeatures)

		row = append(row, b.Open, b.High, b.Low, b.Close)

		volume := float64(b.Volume)
		row = append(row, volume/volumeScale)

		rsi, ok := b.Indicator("rsi")
		if !ok {
			rsi = defaultNeutralRSI
		}
		row = append(row, rsi/100)

		if b.Close > 0 {
			row = append(row, (ema20[i]-b.Close)/b.Close)
		} else {
			row = append(row, 0)
		}

		ema50, ok := b.Indicator("ema")
		if !ok {
			ema50 = b.Close
		}
		if b.Close > 0 {
			row = append(row, (ema50-b.Close)/b.Close)
		} else {
			row = append(row, 0)
		}

		atr, ok := b.Indicator("atr")
		if !ok {
			atr = defaultMissingATR
		}
		if b.Close > 0 {
			row = append(row, atr/b.Close)
		} else {
			row = append(row, 0)
		}

		change := 0.0
		if i > 0 && bars[i-1].Close > 0 {
			change = (b.Close - bars[i-1].Close) / bars[i-1].Close
		}
		row = append(row, change)

		if b.Low > 0 {
			row = append(row, b.High/b.Low)
		} else {
			row = append(row, defaultHighLowFlat)
		}

		ma := volMA[i]
		row = append(row, ma/volumeScale)
		if ma > 0 {
			row = append(row, volume/math.Max(ma, 1))
		} else {
			row = append(row, 1.0)
		}

		rows[i] = row
	}
	return rows
}

// windowEMA computes an EMA over just the window's closes, seeded at the
// first close (span-style multiplier 2/(span+1)).
func windowEMA(bars []market.Bar, span int) []float64 {
	out := make([]float64, len(bars))
	if len(bars) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	ema := bars[0].Close
	out[0] = ema
	for i := 1; i < len(bars); i++ {
		ema = (bars[i].Close-ema)*alpha + ema
		out[i] = ema
	}
	return out
}

// windowVolumeMA is a rolling mean of volume that tolerates partial windows
// at the start.
func windowVolumeMA(bars []market.Bar, window int) []float64 {
	out := make([]float64, len(bars))
	sum := 0.0
	for i, b := range bars {
		sum += float64(b.Volume)
		n := i + 1
		if n > window {
			sum -= float64(bars[i-window].Volume)
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}
