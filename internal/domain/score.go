package domain

import (
	"encoding/json"
	"strings"
)

// Tier is the coarse categorical bucket summarizing predicted citation impact.
type Tier string

// Valid citation tiers, ordered from highest to lowest predicted impact.
const (
	TierVeryHigh Tier = "very_high"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
)

// Tiers lists all valid tiers in canonical order.
var Tiers = []Tier{TierVeryHigh, TierHigh, TierMedium, TierLow}

// ParseTier normalizes a raw tier string (lowercased, trimmed) and validates
// it against the fixed enumeration. Unrecognized or empty values fall back
// to TierLow.
func ParseTier(raw string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(raw)))
	for _, valid := range Tiers {
		if t == valid {
			return t
		}
	}
	return TierLow
}

// ScoreKeys are the named numeric citation sub-scores in trained order.
// Each value is an integer in [0, 10].
var ScoreKeys = []string{
	"citation_potential",
	"methodological_novelty",
	"practical_utility",
	"topic_trendiness",
	"reusability",
	"community_breadth",
	"writing_accessibility",
}

// FlagKeys are the named boolean citation flags in trained order.
// Each value is 0 or 1.
var FlagKeys = []string{
	"introduces_framework",
	"new_dataset_or_benchmark",
	"comprehensive_survey",
	"addresses_open_problem",
	"strong_empirical_results",
	"cross_disciplinary",
	"provides_theoretical_insight",
}

// CitationScore is the normalized multi-dimensional citation impact estimate
// for one paper: seven sub-scores in [0,10], seven 0/1 flags, and a tier.
//
// The wire format (cache entries and provider responses) is a flat JSON
// object keyed by ScoreKeys, FlagKeys and "citation_tier"; Marshal/Unmarshal
// implement that layout.
type CitationScore struct {
	Scores map[string]int
	Flags  map[string]int
	Tier   Tier
}

// ZeroCitationScore returns the fail-soft default: all sub-scores and flags
// zero, tier "low". It is substituted when the scorer exhausts its retry
// budget for an item.
func ZeroCitationScore() CitationScore {
	s := CitationScore{
		Scores: make(map[string]int, len(ScoreKeys)),
		Flags:  make(map[string]int, len(FlagKeys)),
		Tier:   TierLow,
	}
	for _, k := range ScoreKeys {
		s.Scores[k] = 0
	}
	for _, k := range FlagKeys {
		s.Flags[k] = 0
	}
	return s
}

// MarshalJSON writes the flat cache layout: sub-scores and flags at the top
// level plus a "citation_tier" string.
func (c CitationScore) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(ScoreKeys)+len(FlagKeys)+1)
	for _, k := range ScoreKeys {
		flat[k] = c.Scores[k]
	}
	for _, k := range FlagKeys {
		flat[k] = c.Flags[k]
	}
	flat["citation_tier"] = string(c.Tier)
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat cache layout, clamping sub-scores into [0,10],
// coercing flags to {0,1}, and validating the tier with a "low" fallback.
// Missing or non-numeric fields degrade to zero.
func (c *CitationScore) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	*c = ZeroCitationScore()
	for _, k := range ScoreKeys {
		c.Scores[k] = clampScore(intField(flat[k]))
	}
	for _, k := range FlagKeys {
		c.Flags[k] = coerceFlag(intField(flat[k]))
	}

	var tier string
	if raw, ok := flat["citation_tier"]; ok {
		// Ignore malformed tier values; ParseTier handles the empty string.
		_ = json.Unmarshal(raw, &tier)
	}
	c.Tier = ParseTier(tier)
	return nil
}

// intField decodes a raw JSON value as an integer, truncating floats and
// treating missing/non-numeric values as zero.
func intField(raw json.RawMessage) int {
	if raw == nil {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0
	}
	return int(f)
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

func coerceFlag(v int) int {
	if v != 0 {
		return 1
	}
	return 0
}

// ScoreResult is the per-paper outcome of one ranking invocation.
//
// Invariants:
//   - Recalled == (Stage1Prob >= threshold)
//   - Stage2Prob and Citation are non-nil iff Recalled
//   - FinalScore equals *Stage2Prob when recalled, 0 otherwise
//   - Rank is non-nil for exactly the top min(K, recalled) papers by
//     FinalScore descending, forming a dense 1..m permutation
type ScoreResult struct {
	// ExternalID identifies the paper this result belongs to.
	ExternalID string `json:"external_id"`

	// Stage1Prob is the recall classifier probability, always set.
	Stage1Prob float64 `json:"stage1_prob"`

	// Recalled reports whether the paper passed the Stage-1 threshold.
	Recalled bool `json:"recalled"`

	// Stage2Prob is the precision classifier probability, recalled only.
	Stage2Prob *float64 `json:"stage2_prob,omitempty"`

	// FinalScore is Stage2Prob for recalled papers and 0 otherwise.
	FinalScore float64 `json:"final_score"`

	// Citation holds the normalized citation scores, recalled only.
	Citation *CitationScore `json:"citation,omitempty"`

	// Rank is the dense 1-based rank, assigned to ranked papers only.
	Rank *int `json:"rank,omitempty"`
}
