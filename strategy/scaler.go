package strategy

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Scaler normalizes a feature matrix in place-compatible fashion (it
// returns a new matrix, the input is untouched).
type Scaler interface {
	Transform(rows [][]float64) ([][]float64, error)
}

// StandardScaler applies the per-feature mean/std fitted at training time.
// The JSON file format is {"mean": [...], "std": [...]}, one entry per
// feature column.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// LoadScaler reads a fitted StandardScaler from a JSON file.
func LoadScaler(path string) (*StandardScaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scaler: read %s: %w", path, err)
	}
	var s StandardScaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("scaler: parse %s: %w", path, err)
	}
	if len(s.Mean) == 0 || len(s.Mean) != len(s.Std) {
		return nil, fmt.Errorf("scaler: %s: mean/std length mismatch (%d vs %d)", path, len(s.Mean), len(s.Std))
	}
	return &s, nil
}

// Transform scales each row by the fitted mean/std.
func (s *StandardScaler) Transform(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		if len(row) != len(s.Mean) {
			return nil, fmt.Errorf("scaler: row has %d features, scaler fitted on %d", len(row), len(s.Mean))
		}
		scaled := make([]float64, len(row))
		for j, v := range row {
			std := s.Std[j]
			if std == 0 {
				std = 1e-8
			}
			scaled[j] = (v - s.Mean[j]) / std
		}
		out[i] = scaled
	}
	return out, nil
}

// windowScaler standardizes each feature column over the current window.
// Used when no fitted scaler is available; matches the fallback the
// training pipeline applies.
type windowScaler struct{}

func (windowScaler) Transform(rows [][]float64) ([][]float64, error) {
	if len(rows) == 0 {
		return rows, nil
	}
	n := len(rows)
	cols := len(rows[0])

	mean := make([]float64, cols)
	for _, row := range rows {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}

	std := make([]float64, cols)
	for _, row := range rows {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j]/float64(n)) + 1e-8
	}

	out := make([][]float64, n)
	for i, row := range rows {
		scaled := make([]float64, cols)
		for j, v := range row {
			scaled[j] = (v - mean[j]) / std[j]
		}
		out[i] = scaled
	}
	return out, nil
}
