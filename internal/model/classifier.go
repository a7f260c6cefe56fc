// Package model provides the pretrained classifier runtime for the two-stage
// ranking cascade: artifact loading, the shared preprocessing bundle, and the
// Stage-1 recall / Stage-2 precision wrappers.
//
// Model artifacts are opaque serialized objects consumed read-only at
// startup. The concrete format is hidden behind the Classifier interface so
// the pipeline only ever sees predict-probability semantics.
package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Classifier is the minimal capability the pipeline needs from a pretrained
// binary classifier: a feature vector in, a probability in [0,1] out.
type Classifier interface {
	// Name identifies the model for logs.
	Name() string

	// PredictProba returns the positive-class probability for one feature
	// vector. The vector must match the trained column order and length.
	PredictProba(features []float64) (float64, error)
}

// LogisticModel is a logistic regression classifier with weights aligned to
// a trained column order: p = sigmoid(bias + w·x).
type LogisticModel struct {
	ModelName string    `json:"name"`
	Bias      float64   `json:"bias"`
	Weights   []float64 `json:"weights"`
}

// LoadLogisticModel reads a logistic regression artifact from a JSON file.
// A missing or corrupt artifact is a fatal startup condition for the caller.
func LoadLogisticModel(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: read artifact %s: %w", path, err)
	}

	var m LogisticModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("model: parse artifact %s: %w", path, err)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("model: artifact %s has no weights", path)
	}
	if m.ModelName == "" {
		m.ModelName = "logistic"
	}
	return &m, nil
}

// Name returns the model name from the artifact.
func (m *LogisticModel) Name() string { return m.ModelName }

// PredictProba computes sigmoid(bias + w·x).
func (m *LogisticModel) PredictProba(features []float64) (float64, error) {
	if len(features) != len(m.Weights) {
		return 0, fmt.Errorf("model %s: feature vector length %d, trained on %d columns",
			m.ModelName, len(features), len(m.Weights))
	}

	z := m.Bias
	for i, w := range m.Weights {
		z += w * features[i]
	}
	return 1 / (1 + math.Exp(-z)), nil
}
