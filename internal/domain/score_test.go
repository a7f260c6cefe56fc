package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	t.Parallel()

	t.Run("accepts all valid tiers", func(t *testing.T) {
		t.Parallel()
		for _, tier := range Tiers {
			assert.Equal(t, tier, ParseTier(string(tier)))
		}
	})

	t.Run("normalizes case and whitespace", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TierVeryHigh, ParseTier("  VERY_HIGH "))
		assert.Equal(t, TierMedium, ParseTier("Medium"))
	})

	t.Run("unknown values fall back to low", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, TierLow, ParseTier("extreme"))
		assert.Equal(t, TierLow, ParseTier(""))
		assert.Equal(t, TierLow, ParseTier("very high"))
	})
}

func TestZeroCitationScore(t *testing.T) {
	t.Parallel()

	zero := ZeroCitationScore()
	assert.Equal(t, TierLow, zero.Tier)
	require.Len(t, zero.Scores, len(ScoreKeys))
	require.Len(t, zero.Flags, len(FlagKeys))
	for _, k := range ScoreKeys {
		assert.Equal(t, 0, zero.Scores[k])
	}
	for _, k := range FlagKeys {
		assert.Equal(t, 0, zero.Flags[k])
	}
}

func TestCitationScore_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	t.Run("clamps scores into range", func(t *testing.T) {
		t.Parallel()
		var cs CitationScore
		err := json.Unmarshal([]byte(`{"citation_potential": 15, "reusability": -3, "practical_utility": 7}`), &cs)
		require.NoError(t, err)

		assert.Equal(t, 10, cs.Scores["citation_potential"])
		assert.Equal(t, 0, cs.Scores["reusability"])
		assert.Equal(t, 7, cs.Scores["practical_utility"])
	})

	t.Run("coerces flags to zero or one", func(t *testing.T) {
		t.Parallel()
		var cs CitationScore
		err := json.Unmarshal([]byte(`{"introduces_framework": 2, "cross_disciplinary": 0, "comprehensive_survey": -1}`), &cs)
		require.NoError(t, err)

		assert.Equal(t, 1, cs.Flags["introduces_framework"])
		assert.Equal(t, 0, cs.Flags["cross_disciplinary"])
		assert.Equal(t, 1, cs.Flags["comprehensive_survey"])
	})

	t.Run("truncates fractional values", func(t *testing.T) {
		t.Parallel()
		var cs CitationScore
		err := json.Unmarshal([]byte(`{"topic_trendiness": 7.9}`), &cs)
		require.NoError(t, err)
		assert.Equal(t, 7, cs.Scores["topic_trendiness"])
	})

	t.Run("missing fields degrade to zero", func(t *testing.T) {
		t.Parallel()
		var cs CitationScore
		err := json.Unmarshal([]byte(`{"citation_tier": "high"}`), &cs)
		require.NoError(t, err)

		assert.Equal(t, TierHigh, cs.Tier)
		for _, k := range ScoreKeys {
			assert.Equal(t, 0, cs.Scores[k], k)
		}
	})

	t.Run("invalid tier falls back to low", func(t *testing.T) {
		t.Parallel()
		var cs CitationScore
		err := json.Unmarshal([]byte(`{"citation_tier": "astronomical"}`), &cs)
		require.NoError(t, err)
		assert.Equal(t, TierLow, cs.Tier)
	})

	t.Run("non-numeric score degrades to zero", func(t *testing.T) {
		t.Parallel()
		var cs CitationScore
		err := json.Unmarshal([]byte(`{"citation_potential": "nine"}`), &cs)
		require.NoError(t, err)
		assert.Equal(t, 0, cs.Scores["citation_potential"])
	})
}

func TestCitationScore_MarshalJSON(t *testing.T) {
	t.Parallel()

	cs := ZeroCitationScore()
	cs.Scores["citation_potential"] = 8
	cs.Flags["introduces_framework"] = 1
	cs.Tier = TierVeryHigh

	data, err := json.Marshal(cs)
	require.NoError(t, err)

	// The wire layout is flat: no nested "scores"/"flags" groups.
	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.NotContains(t, flat, "scores")
	assert.NotContains(t, flat, "flags")
	assert.Equal(t, float64(8), flat["citation_potential"])
	assert.Equal(t, float64(1), flat["introduces_framework"])
	assert.Equal(t, "very_high", flat["citation_tier"])

	var back CitationScore
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, cs, back)
}
