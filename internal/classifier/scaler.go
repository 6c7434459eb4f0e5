package classifier

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers each column on its mean and divides by its
// standard deviation. Constant columns are only centered.
type StandardScaler struct {
	Mean  []float64 `msgpack:"mean"`
	Scale []float64 `msgpack:"scale"`
}

// Fit learns per-column statistics from rows.
func (s *StandardScaler) Fit(rows [][]float64) error {
	if len(rows) == 0 {
		return ErrNoSamples
	}
	dim := len(rows[0])
	s.Mean = make([]float64, dim)
	s.Scale = make([]float64, dim)

	col := make([]float64, len(rows))
	for j := 0; j < dim; j++ {
		for i, r := range rows {
			if len(r) != dim {
				return fmt.Errorf("row %d has %d columns, want %d: %w", i, len(r), dim, ErrDimension)
			}
			col[i] = r[j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		if len(rows) < 2 || std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return nil
}

// Transform returns standardized copies of rows.
func (s *StandardScaler) Transform(rows [][]float64) ([][]float64, error) {
	if s.Mean == nil {
		return nil, fmt.Errorf("scaler: %w", ErrNotFitted)
	}
	out := make([][]float64, len(rows))
	for i, r := range rows {
		if len(r) != len(s.Mean) {
			return nil, fmt.Errorf("row %d has %d columns, want %d: %w", i, len(r), len(s.Mean), ErrDimension)
		}
		scaled := make([]float64, len(r))
		for j, v := range r {
			scaled[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = scaled
	}
	return out, nil
}

// FitTransform fits on rows and returns them standardized.
func (s *StandardScaler) FitTransform(rows [][]float64) ([][]float64, error) {
	if err := s.Fit(rows); err != nil {
		return nil, err
	}
	return s.Transform(rows)
}
