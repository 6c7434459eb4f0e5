package classifier

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/dgallion1/pdf2epub/internal/jsonio"
)

const artifactVersion = 1

const (
	kindKNN            = "knn"
	kindStandardScaler = "standard_scaler"
)

type modelArtifact struct {
	Kind    string `msgpack:"kind"`
	Version int    `msgpack:"version"`
	KNN     *KNN   `msgpack:"knn,omitempty"`
}

type scalerArtifact struct {
	Kind    string          `msgpack:"kind"`
	Version int             `msgpack:"version"`
	Scaler  *StandardScaler `msgpack:"scaler,omitempty"`
}

// SaveModel atomically writes a fitted model artifact.
func SaveModel(path string, m *KNN) error {
	data, err := msgpack.Marshal(modelArtifact{Kind: kindKNN, Version: artifactVersion, KNN: m})
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return jsonio.WriteFile(path, data)
}

// LoadModel reads a model artifact written by SaveModel.
func LoadModel(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a modelArtifact
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("model %s: unsupported artifact version %d", path, a.Version)
	}
	switch a.Kind {
	case kindKNN:
		if a.KNN == nil || len(a.KNN.Rows) == 0 {
			return nil, fmt.Errorf("model %s: %w", path, ErrNotFitted)
		}
		return a.KNN, nil
	default:
		return nil, fmt.Errorf("model %s: unknown kind %q", path, a.Kind)
	}
}

// SaveScaler atomically writes a fitted scaler artifact.
func SaveScaler(path string, s *StandardScaler) error {
	data, err := msgpack.Marshal(scalerArtifact{Kind: kindStandardScaler, Version: artifactVersion, Scaler: s})
	if err != nil {
		return fmt.Errorf("encode scaler: %w", err)
	}
	return jsonio.WriteFile(path, data)
}

// LoadScaler reads a scaler artifact written by SaveScaler.
func LoadScaler(path string) (Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a scalerArtifact
	if err := msgpack.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode scaler %s: %w", path, err)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("scaler %s: unsupported artifact version %d", path, a.Version)
	}
	if a.Kind != kindStandardScaler {
		return nil, fmt.Errorf("scaler %s: unknown kind %q", path, a.Kind)
	}
	if a.Scaler == nil || a.Scaler.Mean == nil {
		return nil, fmt.Errorf("scaler %s: %w", path, ErrNotFitted)
	}
	return a.Scaler, nil
}
