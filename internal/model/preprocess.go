package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-ranker/internal/features"
)

// Preprocessor is the shared preprocessing bundle fit at training time. It
// turns a raw FeatureVector into the dense numeric vector the classifiers
// were trained against: impute missing numerics, one-hot encode the primary
// category, order columns, drop near-duplicate columns.
type Preprocessor struct {
	// NumericColumns is the trained numeric column list, in trained order.
	NumericColumns []string `json:"numeric_columns"`

	// ImputeValues maps numeric columns to their training-time fill values
	// (median or most-frequent, chosen at training time). Columns without
	// an entry impute to zero.
	ImputeValues map[string]float64 `json:"impute_values"`

	// Categories is the fitted one-hot vocabulary for the primary category.
	Categories []string `json:"categories"`

	// CategoryFallback is the bucket unseen categories map to. It must be
	// a member of Categories.
	CategoryFallback string `json:"category_fallback"`

	// DropColumns are columns flagged as duplicates or near-duplicates at
	// training time; they are removed after encoding.
	DropColumns []string `json:"drop_columns"`

	logger zerolog.Logger

	// warnedMissing tracks columns already reported, so an absent expected
	// column logs one warning per pass, not one per paper.
	warnMu        sync.Mutex
	warnedMissing map[string]struct{}

	dropSet map[string]struct{}
}

// LoadPreprocessor reads the preprocessing bundle artifact from a JSON file.
func LoadPreprocessor(path string, logger zerolog.Logger) (*Preprocessor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: read preprocessor artifact %s: %w", path, err)
	}

	var p Preprocessor
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("model: parse preprocessor artifact %s: %w", path, err)
	}
	if len(p.NumericColumns) == 0 {
		return nil, fmt.Errorf("model: preprocessor artifact %s has no numeric columns", path)
	}
	if len(p.Categories) == 0 {
		return nil, fmt.Errorf("model: preprocessor artifact %s has no category vocabulary", path)
	}
	if !contains(p.Categories, p.CategoryFallback) {
		return nil, fmt.Errorf("model: preprocessor fallback category %q not in vocabulary", p.CategoryFallback)
	}

	p.logger = logger
	p.warnedMissing = make(map[string]struct{})
	p.dropSet = make(map[string]struct{}, len(p.DropColumns))
	for _, c := range p.DropColumns {
		p.dropSet[c] = struct{}{}
	}
	return &p, nil
}

// Width returns the length of the transformed vector: kept numeric columns
// plus the one-hot category block.
func (p *Preprocessor) Width() int {
	kept := 0
	for _, c := range p.NumericColumns {
		if _, dropped := p.dropSet[c]; !dropped {
			kept++
		}
	}
	return kept + len(p.Categories)
}

// Transform converts one FeatureVector into the trained dense layout:
// imputed numeric columns in trained order (minus the drop set) followed by
// the one-hot primary-category block. Expected columns missing from the
// input fill with zero and log a warning once; extraction bugs must never
// abort a batch.
func (p *Preprocessor) Transform(fv features.FeatureVector) []float64 {
	out := make([]float64, 0, p.Width())

	for _, col := range p.NumericColumns {
		if _, dropped := p.dropSet[col]; dropped {
			continue
		}

		v, ok := fv.Numeric[col]
		if !ok {
			p.warnMissingOnce(col)
			out = append(out, 0)
			continue
		}
		if math.IsNaN(v) {
			out = append(out, p.ImputeValues[col])
			continue
		}
		out = append(out, v)
	}

	out = append(out, p.encodeCategory(fv.PrimaryCategory)...)
	return out
}

// encodeCategory one-hot encodes the primary category, mapping unseen or
// empty values to the configured fallback bucket.
func (p *Preprocessor) encodeCategory(category string) []float64 {
	if !contains(p.Categories, category) {
		category = p.CategoryFallback
	}

	oneHot := make([]float64, len(p.Categories))
	for i, c := range p.Categories {
		if c == category {
			oneHot[i] = 1
			break
		}
	}
	return oneHot
}

func (p *Preprocessor) warnMissingOnce(col string) {
	p.warnMu.Lock()
	defer p.warnMu.Unlock()
	if _, done := p.warnedMissing[col]; done {
		return
	}
	p.warnedMissing[col] = struct{}{}
	p.logger.Warn().Str("column", col).Msg("expected feature column missing, filling with zero")
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
