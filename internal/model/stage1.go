package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/helixir/citation-ranker/internal/features"
)

// Stage1Config is the training-time decision configuration for the recall
// stage. The threshold is fixed when the classifier is trained and is never
// recomputed at inference time.
type Stage1Config struct {
	// Threshold is the recall decision boundary on the Stage-1 probability.
	Threshold float64 `json:"threshold"`
}

// LoadStage1Config reads the Stage-1 config artifact from a JSON file.
func LoadStage1Config(path string) (Stage1Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stage1Config{}, fmt.Errorf("model: read stage1 config %s: %w", path, err)
	}

	var cfg Stage1Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Stage1Config{}, fmt.Errorf("model: parse stage1 config %s: %w", path, err)
	}
	if cfg.Threshold < 0 || cfg.Threshold > 1 {
		return Stage1Config{}, fmt.Errorf("model: stage1 threshold %v outside [0,1]", cfg.Threshold)
	}
	return cfg, nil
}

// RecallClassifier is the Stage-1 filter: a cheap pretrained classifier plus
// the shared preprocessing bundle and the trained decision threshold.
type RecallClassifier struct {
	pre       *Preprocessor
	model     Classifier
	threshold float64
}

// NewRecallClassifier assembles the Stage-1 wrapper from loaded artifacts.
func NewRecallClassifier(pre *Preprocessor, model Classifier, cfg Stage1Config) *RecallClassifier {
	return &RecallClassifier{pre: pre, model: model, threshold: cfg.Threshold}
}

// Predict returns the recall probability for one feature vector.
func (c *RecallClassifier) Predict(fv features.FeatureVector) (float64, error) {
	p, err := c.model.PredictProba(c.pre.Transform(fv))
	if err != nil {
		return 0, fmt.Errorf("stage1 predict: %w", err)
	}
	return p, nil
}

// Recalled applies the trained decision rule. The comparison is >=, so a
// probability exactly at the threshold is recalled.
func (c *RecallClassifier) Recalled(prob float64) bool {
	return prob >= c.threshold
}

// Threshold returns the trained decision threshold.
func (c *RecallClassifier) Threshold() float64 {
	return c.threshold
}
