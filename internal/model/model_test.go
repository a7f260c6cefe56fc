package model

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-ranker/internal/domain"
	"github.com/helixir/citation-ranker/internal/features"
)

// writeArtifact marshals v to a JSON file under dir.
func writeArtifact(t *testing.T, dir, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// testPreprocessor loads a small two-column preprocessing bundle.
func testPreprocessor(t *testing.T) *Preprocessor {
	t.Helper()
	path := writeArtifact(t, t.TempDir(), PreprocessorFile, map[string]any{
		"numeric_columns":   []string{"title_word_count", "abstract_word_count", "pub_hour_utc"},
		"impute_values":     map[string]float64{"pub_hour_utc": 12},
		"categories":        []string{"cs.LG", "other"},
		"category_fallback": "other",
		"drop_columns":      []string{"abstract_word_count"},
	})
	pre, err := LoadPreprocessor(path, zerolog.Nop())
	require.NoError(t, err)
	return pre
}

func TestLogisticModel_PredictProba(t *testing.T) {
	t.Parallel()

	m := &LogisticModel{ModelName: "test", Bias: 0, Weights: []float64{1, -1}}

	t.Run("zero input yields half", func(t *testing.T) {
		t.Parallel()
		p, err := m.PredictProba([]float64{0, 0})
		require.NoError(t, err)
		assert.InDelta(t, 0.5, p, 1e-9)
	})

	t.Run("sigmoid of weighted sum", func(t *testing.T) {
		t.Parallel()
		p, err := m.PredictProba([]float64{2, 1})
		require.NoError(t, err)
		assert.InDelta(t, 1/(1+math.Exp(-1)), p, 1e-9)
	})

	t.Run("length mismatch is an error", func(t *testing.T) {
		t.Parallel()
		_, err := m.PredictProba([]float64{1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "length")
	})
}

func TestLoadLogisticModel(t *testing.T) {
	t.Parallel()

	t.Run("loads valid artifact", func(t *testing.T) {
		t.Parallel()
		path := writeArtifact(t, t.TempDir(), Stage1ModelFile, LogisticModel{
			ModelName: "stage1_lr", Bias: -0.5, Weights: []float64{0.1, 0.2},
		})
		m, err := LoadLogisticModel(path)
		require.NoError(t, err)
		assert.Equal(t, "stage1_lr", m.Name())
		assert.Len(t, m.Weights, 2)
	})

	t.Run("missing file is fatal", func(t *testing.T) {
		t.Parallel()
		_, err := LoadLogisticModel(filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
	})

	t.Run("empty weights rejected", func(t *testing.T) {
		t.Parallel()
		path := writeArtifact(t, t.TempDir(), Stage1ModelFile, LogisticModel{ModelName: "bad"})
		_, err := LoadLogisticModel(path)
		require.Error(t, err)
	})
}

func TestPreprocessor_Transform(t *testing.T) {
	t.Parallel()

	pre := testPreprocessor(t)

	t.Run("width counts kept columns plus one-hot block", func(t *testing.T) {
		t.Parallel()
		// 3 numeric - 1 dropped + 2 categories.
		assert.Equal(t, 4, pre.Width())
	})

	t.Run("orders columns and encodes known category", func(t *testing.T) {
		t.Parallel()
		out := pre.Transform(features.FeatureVector{
			Numeric: map[string]float64{
				"title_word_count":    8,
				"abstract_word_count": 120, // dropped
				"pub_hour_utc":        14,
			},
			PrimaryCategory: "cs.LG",
		})
		assert.Equal(t, []float64{8, 14, 1, 0}, out)
	})

	t.Run("imputes NaN with trained fill value", func(t *testing.T) {
		t.Parallel()
		out := pre.Transform(features.FeatureVector{
			Numeric: map[string]float64{
				"title_word_count":    8,
				"abstract_word_count": 120,
				"pub_hour_utc":        math.NaN(),
			},
			PrimaryCategory: "cs.LG",
		})
		assert.Equal(t, 12.0, out[1])
	})

	t.Run("NaN without fill value imputes zero", func(t *testing.T) {
		t.Parallel()
		out := pre.Transform(features.FeatureVector{
			Numeric: map[string]float64{
				"title_word_count":    math.NaN(),
				"abstract_word_count": 0,
				"pub_hour_utc":        3,
			},
			PrimaryCategory: "cs.LG",
		})
		assert.Equal(t, 0.0, out[0])
	})

	t.Run("unseen category maps to fallback", func(t *testing.T) {
		t.Parallel()
		out := pre.Transform(features.FeatureVector{
			Numeric: map[string]float64{
				"title_word_count":    1,
				"abstract_word_count": 1,
				"pub_hour_utc":        1,
			},
			PrimaryCategory: "q-bio.NC",
		})
		assert.Equal(t, []float64{0, 1}, out[2:])
	})

	t.Run("missing expected column fills zero", func(t *testing.T) {
		t.Parallel()
		out := pre.Transform(features.FeatureVector{
			Numeric:         map[string]float64{"pub_hour_utc": 5},
			PrimaryCategory: "cs.LG",
		})
		assert.Equal(t, 0.0, out[0])
		assert.Equal(t, 5.0, out[1])
	})
}

func TestLoadPreprocessor_Validation(t *testing.T) {
	t.Parallel()

	t.Run("fallback must be in vocabulary", func(t *testing.T) {
		t.Parallel()
		path := writeArtifact(t, t.TempDir(), PreprocessorFile, map[string]any{
			"numeric_columns":   []string{"x"},
			"categories":        []string{"cs.LG"},
			"category_fallback": "other",
		})
		_, err := LoadPreprocessor(path, zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fallback")
	})

	t.Run("empty column list rejected", func(t *testing.T) {
		t.Parallel()
		path := writeArtifact(t, t.TempDir(), PreprocessorFile, map[string]any{
			"categories":        []string{"other"},
			"category_fallback": "other",
		})
		_, err := LoadPreprocessor(path, zerolog.Nop())
		require.Error(t, err)
	})
}

func TestRecallClassifier(t *testing.T) {
	t.Parallel()

	pre := testPreprocessor(t)
	m := &LogisticModel{ModelName: "stage1", Bias: 0, Weights: make([]float64, pre.Width())}
	c := NewRecallClassifier(pre, m, Stage1Config{Threshold: 0.5})

	t.Run("probability at threshold is recalled", func(t *testing.T) {
		t.Parallel()
		// Zero weights make every probability exactly 0.5.
		prob, err := c.Predict(features.FeatureVector{
			Numeric: map[string]float64{
				"title_word_count":    1,
				"abstract_word_count": 1,
				"pub_hour_utc":        1,
			},
			PrimaryCategory: "cs.LG",
		})
		require.NoError(t, err)
		assert.InDelta(t, 0.5, prob, 1e-9)
		assert.True(t, c.Recalled(prob))
	})

	t.Run("below threshold is not recalled", func(t *testing.T) {
		t.Parallel()
		assert.False(t, c.Recalled(0.4999))
	})

	t.Run("exposes trained threshold", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, 0.5, c.Threshold())
	})
}

func TestLoadStage1Config(t *testing.T) {
	t.Parallel()

	t.Run("rejects threshold outside unit interval", func(t *testing.T) {
		t.Parallel()
		path := writeArtifact(t, t.TempDir(), Stage1ConfigFile, Stage1Config{Threshold: 1.5})
		_, err := LoadStage1Config(path)
		require.Error(t, err)
	})

	t.Run("loads valid threshold", func(t *testing.T) {
		t.Parallel()
		path := writeArtifact(t, t.TempDir(), Stage1ConfigFile, Stage1Config{Threshold: 0.35})
		cfg, err := LoadStage1Config(path)
		require.NoError(t, err)
		assert.Equal(t, 0.35, cfg.Threshold)
	})
}

func TestPrecisionClassifier_Predict(t *testing.T) {
	t.Parallel()

	pre := testPreprocessor(t)
	cfg := Stage2Config{
		ScoreKeys:      domain.ScoreKeys,
		FlagKeys:       domain.FlagKeys,
		TierCategories: []string{"very_high", "high", "medium", "low"},
		TierFallback:   "low",
	}
	width := pre.Width() + len(cfg.ScoreKeys) + len(cfg.FlagKeys) + len(cfg.TierCategories)

	// Weight 1 on citation_potential, zero elsewhere: the output probability
	// is sigmoid of that single sub-score.
	weights := make([]float64, width)
	weights[pre.Width()] = 1
	m := &LogisticModel{ModelName: "stage2", Weights: weights}
	c := NewPrecisionClassifier(pre, m, cfg)

	fv := features.FeatureVector{
		Numeric: map[string]float64{
			"title_word_count":    0,
			"abstract_word_count": 0,
			"pub_hour_utc":        0,
		},
		PrimaryCategory: "other",
	}

	t.Run("fuses citation sub-scores into the vector", func(t *testing.T) {
		t.Parallel()
		cs := domain.ZeroCitationScore()
		cs.Scores["citation_potential"] = 3

		prob, err := c.Predict(fv, cs)
		require.NoError(t, err)
		assert.InDelta(t, 1/(1+math.Exp(-3)), prob, 1e-9)
	})

	t.Run("zero default yields half", func(t *testing.T) {
		t.Parallel()
		prob, err := c.Predict(fv, domain.ZeroCitationScore())
		require.NoError(t, err)
		// The one-hot "other" bucket and tier block carry zero weight here.
		assert.InDelta(t, 0.5, prob, 1e-9)
	})

	t.Run("unknown tier encodes as fallback without error", func(t *testing.T) {
		t.Parallel()
		cs := domain.ZeroCitationScore()
		cs.Tier = domain.Tier("mystery")

		_, err := c.Predict(fv, cs)
		require.NoError(t, err)
	})
}

func TestLoadBundle(t *testing.T) {
	t.Parallel()

	writeBundleDir := func(t *testing.T) string {
		t.Helper()
		dir := t.TempDir()
		writeArtifact(t, dir, PreprocessorFile, map[string]any{
			"numeric_columns":   []string{"title_word_count"},
			"categories":        []string{"other"},
			"category_fallback": "other",
		})
		writeArtifact(t, dir, Stage1ModelFile, LogisticModel{ModelName: "s1", Weights: []float64{0, 0}})
		writeArtifact(t, dir, Stage1ConfigFile, Stage1Config{Threshold: 0.5})
		writeArtifact(t, dir, Stage2ModelFile, LogisticModel{
			ModelName: "s2",
			Weights:   make([]float64, 2+len(domain.ScoreKeys)+len(domain.FlagKeys)+4),
		})
		writeArtifact(t, dir, Stage2ConfigFile, Stage2Config{
			ScoreKeys:      domain.ScoreKeys,
			FlagKeys:       domain.FlagKeys,
			TierCategories: []string{"very_high", "high", "medium", "low"},
			TierFallback:   "low",
		})
		return dir
	}

	t.Run("loads complete artifact set", func(t *testing.T) {
		t.Parallel()
		bundle, err := LoadBundle(writeBundleDir(t), zerolog.Nop())
		require.NoError(t, err)
		require.NotNil(t, bundle.Recall)
		require.NotNil(t, bundle.Precision)
		assert.Equal(t, 0.5, bundle.Recall.Threshold())
	})

	t.Run("any missing artifact aborts loading", func(t *testing.T) {
		t.Parallel()
		dir := writeBundleDir(t)
		require.NoError(t, os.Remove(filepath.Join(dir, Stage2ConfigFile)))

		_, err := LoadBundle(dir, zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "stage2 config")
	})
}
