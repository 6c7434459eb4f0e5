// Package classifier provides the layout classifier used to label text runs.
//
// The rest of the pipeline only depends on the Scaler and Model capabilities;
// StandardScaler and KNN are the implementations trained by the train stage
// and persisted as opaque artifacts.
package classifier

import (
	"errors"
)

var (
	// ErrNoSamples means no training rows survived rare-class filtering.
	ErrNoSamples = errors.New("no samples left after filtering rare classes")

	// ErrNotFitted means a scaler or model was used before Fit.
	ErrNotFitted = errors.New("not fitted")

	// ErrDimension means a row does not have the fitted number of columns.
	ErrDimension = errors.New("feature dimension mismatch")
)

// Scaler rescales feature rows before prediction.
type Scaler interface {
	Transform(rows [][]float64) ([][]float64, error)
}

// Model maps scaled feature rows to labels.
type Model interface {
	Predict(rows [][]float64) ([]string, error)
}

// Pipeline chains a scaler and a model.
type Pipeline struct {
	Scaler Scaler
	Model  Model
}

// Predict scales rows and predicts their labels.
func (p Pipeline) Predict(rows [][]float64) ([]string, error) {
	scaled, err := p.Scaler.Transform(rows)
	if err != nil {
		return nil, err
	}
	return p.Model.Predict(scaled)
}
