package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/helixir/citation-ranker/internal/domain"
	"github.com/helixir/citation-ranker/internal/features"
)

// Stage2Config is the training-time configuration for the precision stage:
// the citation score/flag key order and the fitted tier encoder.
type Stage2Config struct {
	// ScoreKeys is the trained order of the numeric citation sub-scores.
	ScoreKeys []string `json:"score_keys"`

	// FlagKeys is the trained order of the citation flags.
	FlagKeys []string `json:"flag_keys"`

	// TierCategories is the fitted one-hot vocabulary for the citation tier.
	TierCategories []string `json:"tier_categories"`

	// TierFallback is the bucket unseen tiers map to. It must be a member
	// of TierCategories.
	TierFallback string `json:"tier_fallback"`
}

// LoadStage2Config reads the Stage-2 config artifact from a JSON file.
func LoadStage2Config(path string) (Stage2Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Stage2Config{}, fmt.Errorf("model: read stage2 config %s: %w", path, err)
	}

	var cfg Stage2Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Stage2Config{}, fmt.Errorf("model: parse stage2 config %s: %w", path, err)
	}
	if len(cfg.ScoreKeys) == 0 || len(cfg.FlagKeys) == 0 {
		return Stage2Config{}, fmt.Errorf("model: stage2 config %s missing score or flag keys", path)
	}
	if len(cfg.TierCategories) == 0 {
		return Stage2Config{}, fmt.Errorf("model: stage2 config %s has no tier vocabulary", path)
	}
	if !contains(cfg.TierCategories, cfg.TierFallback) {
		return Stage2Config{}, fmt.Errorf("model: stage2 fallback tier %q not in vocabulary", cfg.TierFallback)
	}
	return cfg, nil
}

// PrecisionClassifier is the Stage-2 scorer for the recalled subset. It
// fuses the offline feature vector with the normalized citation signals:
// preprocessed offline columns, then sub-scores in trained key order, then
// flags in trained key order, then the one-hot tier block.
type PrecisionClassifier struct {
	pre   *Preprocessor
	model Classifier
	cfg   Stage2Config
}

// NewPrecisionClassifier assembles the Stage-2 wrapper from loaded artifacts.
func NewPrecisionClassifier(pre *Preprocessor, model Classifier, cfg Stage2Config) *PrecisionClassifier {
	return &PrecisionClassifier{pre: pre, model: model, cfg: cfg}
}

// Predict returns the final citation-impact probability for one recalled
// paper given its offline features and normalized citation score.
func (c *PrecisionClassifier) Predict(fv features.FeatureVector, cs domain.CitationScore) (float64, error) {
	combined := c.pre.Transform(fv)

	for _, k := range c.cfg.ScoreKeys {
		combined = append(combined, float64(cs.Scores[k]))
	}
	for _, k := range c.cfg.FlagKeys {
		combined = append(combined, float64(cs.Flags[k]))
	}
	combined = append(combined, c.encodeTier(cs.Tier)...)

	p, err := c.model.PredictProba(combined)
	if err != nil {
		return 0, fmt.Errorf("stage2 predict: %w", err)
	}
	return p, nil
}

// encodeTier one-hot encodes the citation tier, mapping values outside the
// fitted vocabulary to the configured fallback bucket.
func (c *PrecisionClassifier) encodeTier(tier domain.Tier) []float64 {
	value := string(tier)
	if !contains(c.cfg.TierCategories, value) {
		value = c.cfg.TierFallback
	}

	oneHot := make([]float64, len(c.cfg.TierCategories))
	for i, t := range c.cfg.TierCategories {
		if t == value {
			oneHot[i] = 1
			break
		}
	}
	return oneHot
}
