package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-ranker/internal/domain"
)

func testPaper() domain.PaperRecord {
	published := time.Date(2025, time.March, 15, 14, 30, 0, 0, time.UTC) // Saturday
	return domain.PaperRecord{
		ExternalID:      "2503.01234",
		Title:           "A Novel Transformer Framework for Multimodal Learning",
		Abstract:        "We introduce a new framework for multimodal learning. Our experiments show state-of-the-art results on three benchmarks. Code is available at https://github.com/example/repo.",
		PrimaryCategory: "cs.LG",
		Categories:      []string{"cs.LG", "cs.CV", "stat.ML"},
		Authors: []domain.Author{
			{Name: "Alice Chen"},
			{Name: "Bob Martinez"},
			{Name: "Carol Okafor"},
		},
		PublishedAt: &published,
	}
}

func TestExtract_Deterministic(t *testing.T) {
	t.Parallel()

	batch := []domain.PaperRecord{testPaper(), {}, testPaper()}
	first := Extract(batch)
	second := Extract(batch)

	require.Len(t, first, len(batch))
	for i := range first {
		assert.Equal(t, first[i].PrimaryCategory, second[i].PrimaryCategory)
		for _, name := range FeatureNames() {
			a, b := first[i].Numeric[name], second[i].Numeric[name]
			if math.IsNaN(a) {
				assert.True(t, math.IsNaN(b), "paper %d column %s", i, name)
				continue
			}
			assert.Equal(t, a, b, "paper %d column %s", i, name)
		}
	}
}

func TestExtract_FullColumnSet(t *testing.T) {
	t.Parallel()

	fvs := Extract([]domain.PaperRecord{testPaper(), {}})
	for i, fv := range fvs {
		for _, name := range FeatureNames() {
			_, ok := fv.Numeric[name]
			assert.True(t, ok, "paper %d missing column %s", i, name)
		}
	}
}

func TestExtract_TemporalFeatures(t *testing.T) {
	t.Parallel()

	t.Run("weekend publication", func(t *testing.T) {
		t.Parallel()
		fv := Extract([]domain.PaperRecord{testPaper()})[0]

		assert.Equal(t, 14.0, fv.Numeric["pub_hour_utc"])
		assert.Equal(t, 5.0, fv.Numeric["pub_dow"]) // Saturday, Monday=0
		assert.Equal(t, 3.0, fv.Numeric["pub_month"])
		assert.Equal(t, 1.0, fv.Numeric["is_weekend"])
	})

	t.Run("monday maps to zero", func(t *testing.T) {
		t.Parallel()
		monday := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
		fv := Extract([]domain.PaperRecord{{PublishedAt: &monday}})[0]

		assert.Equal(t, 0.0, fv.Numeric["pub_dow"])
		assert.Equal(t, 0.0, fv.Numeric["is_weekend"])
	})

	t.Run("missing timestamp yields NaN sentinels", func(t *testing.T) {
		t.Parallel()
		fv := Extract([]domain.PaperRecord{{Title: "x"}})[0]

		for _, col := range []string{"pub_hour_utc", "pub_dow", "pub_month", "is_weekend"} {
			assert.True(t, math.IsNaN(fv.Numeric[col]), col)
		}
	})
}

func TestExtract_CategoryFeatures(t *testing.T) {
	t.Parallel()

	fv := Extract([]domain.PaperRecord{testPaper()})[0]

	assert.Equal(t, 3.0, fv.Numeric["num_categories"])
	assert.Equal(t, 1.0, fv.Numeric["is_cross_listed"])
	assert.Equal(t, 1.0, fv.Numeric["has_cs"])
	assert.Equal(t, 1.0, fv.Numeric["has_stat"])
	assert.Equal(t, 0.0, fv.Numeric["has_math"])
	assert.Equal(t, 1.0, fv.Numeric["primary_is_cs"])
	assert.Equal(t, 0.0, fv.Numeric["primary_is_stat"])
	assert.Equal(t, "cs.LG", fv.PrimaryCategory)
}

func TestExtract_AuthorFeatures(t *testing.T) {
	t.Parallel()

	t.Run("counts and name lengths", func(t *testing.T) {
		t.Parallel()
		fv := Extract([]domain.PaperRecord{testPaper()})[0]

		assert.Equal(t, 3.0, fv.Numeric["num_authors_offline"])
		assert.Equal(t, 0.0, fv.Numeric["has_many_authors_ge5"])
		assert.Equal(t, 0.0, fv.Numeric["has_many_authors_ge10"])
		// "Alice Chen"=10, "Bob Martinez"=12, "Carol Okafor"=12.
		assert.InDelta(t, 34.0/3.0, fv.Numeric["author_name_len_mean"], 1e-9)
		assert.Equal(t, 12.0, fv.Numeric["author_name_len_max"])
		assert.InDelta(t, math.Log1p(3), fv.Numeric["log_num_authors"], 1e-9)
	})

	t.Run("no authors degrades to NaN lengths", func(t *testing.T) {
		t.Parallel()
		fv := Extract([]domain.PaperRecord{{Title: "x"}})[0]

		assert.Equal(t, 0.0, fv.Numeric["num_authors_offline"])
		assert.True(t, math.IsNaN(fv.Numeric["author_name_len_mean"]))
		assert.True(t, math.IsNaN(fv.Numeric["author_name_len_max"]))
		assert.Equal(t, 0.0, fv.Numeric["log_num_authors"])
	})
}

func TestExtract_KeywordFlags(t *testing.T) {
	t.Parallel()

	fv := Extract([]domain.PaperRecord{testPaper()})[0]

	assert.Equal(t, 1.0, fv.Numeric["mentions_transformer"])
	assert.Equal(t, 1.0, fv.Numeric["mentions_multimodal"])
	assert.Equal(t, 1.0, fv.Numeric["is_system_paper"]) // "framework"
	assert.Equal(t, 1.0, fv.Numeric["claims_novel"])
	assert.Equal(t, 1.0, fv.Numeric["claims_sota"]) // "state-of-the-art"
	assert.Equal(t, 1.0, fv.Numeric["mentions_experiments"])
	assert.Equal(t, 1.0, fv.Numeric["mentions_open_source"]) // "code is available"
	assert.Equal(t, 0.0, fv.Numeric["mentions_diffusion"])
	assert.Equal(t, 0.0, fv.Numeric["is_survey"])
	assert.Equal(t, 0.0, fv.Numeric["has_theory"])

	assert.Equal(t, 1.0, fv.Numeric["mentions_github"])
	assert.Equal(t, 1.0, fv.Numeric["mentions_benchmark"])
	assert.Equal(t, 0.0, fv.Numeric["mentions_doi"])
	assert.Equal(t, 1.0, fv.Numeric["abstract_has_url"])
	assert.Equal(t, 0.0, fv.Numeric["abstract_has_email"])
}

func TestExtract_TextFeatures(t *testing.T) {
	t.Parallel()

	t.Run("empty text degrades without failing", func(t *testing.T) {
		t.Parallel()
		fv := Extract([]domain.PaperRecord{{}})[0]

		assert.Equal(t, 0.0, fv.Numeric["title_char_len"])
		assert.Equal(t, 0.0, fv.Numeric["abstract_word_count"])
		assert.Equal(t, 0.0, fv.Numeric["abstract_sentence_count"])
		assert.True(t, math.IsNaN(fv.Numeric["title_avg_word_len"]))
		assert.True(t, math.IsNaN(fv.Numeric["abstract_avg_words_per_sentence"]))
		assert.True(t, math.IsNaN(fv.Numeric["abstract_ttr"]))
		assert.Equal(t, 0.0, fv.Numeric["title_digit_ratio"])
		assert.Equal(t, 0.0, fv.Numeric["log_abstract_word_count"])
	})

	t.Run("sentence counting", func(t *testing.T) {
		t.Parallel()
		fv := Extract([]domain.PaperRecord{{
			Abstract: "First sentence. Second sentence! Third one? No trailing split",
		}})[0]
		assert.Equal(t, 4.0, fv.Numeric["abstract_sentence_count"])
	})

	t.Run("type token ratio", func(t *testing.T) {
		t.Parallel()
		fv := Extract([]domain.PaperRecord{{Abstract: "model model Model data"}})[0]
		// 2 distinct lowercase words over 4 tokens.
		assert.InDelta(t, 0.5, fv.Numeric["abstract_ttr"], 1e-9)
	})

	t.Run("digit ratio", func(t *testing.T) {
		t.Parallel()
		fv := Extract([]domain.PaperRecord{{Title: "GPT-4 2025"}})[0]
		// 5 digit runes out of 10.
		assert.InDelta(t, 0.5, fv.Numeric["title_digit_ratio"], 1e-9)
	})
}
