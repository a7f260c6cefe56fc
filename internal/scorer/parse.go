package scorer

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/helixir/citation-ranker/internal/domain"
)

var (
	jsonFenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	jsonObjRE   = regexp.MustCompile(`(?s)(\{.*\})`)
)

// ParseResponse extracts and normalizes a CitationScore from a raw provider
// completion. It tries, in order: a direct JSON parse, a fenced code block
// containing a JSON object, and the first balanced-looking {...} span. Both
// nested ({"scores": {...}, "flags": {...}}) and flat response layouts are
// accepted; sub-scores clamp into [0,10], flags coerce to {0,1}, and the
// tier falls back to "low" when absent or unrecognized.
//
// A response with no parseable JSON object returns an error, which the
// scorer treats as a soft failure against the retry budget.
func ParseResponse(raw string) (domain.CitationScore, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return domain.CitationScore{}, err
	}

	var score domain.CitationScore
	if err := json.Unmarshal(flatten(obj), &score); err != nil {
		return domain.CitationScore{}, &parseError{reason: err.Error()}
	}
	return score, nil
}

// extractJSONObject locates the JSON object payload in a possibly fenced or
// garbage-wrapped completion.
func extractJSONObject(raw string) (map[string]json.RawMessage, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, &parseError{reason: "empty response"}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return obj, nil
	}

	if m := jsonFenceRE.FindStringSubmatch(s); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &obj); err == nil {
			return obj, nil
		}
	}

	if m := jsonObjRE.FindStringSubmatch(s); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &obj); err == nil {
			return obj, nil
		}
	}

	return nil, &parseError{reason: "no JSON object found"}
}

// flatten folds the nested {"scores": {...}, "flags": {...}} layout into the
// flat layout CitationScore unmarshals. Providers have been observed to emit
// either shape for the same prompt, so both must normalize identically.
func flatten(obj map[string]json.RawMessage) []byte {
	flat := make(map[string]json.RawMessage, len(domain.ScoreKeys)+len(domain.FlagKeys)+1)

	for k, v := range obj {
		flat[k] = v
	}
	for _, group := range []string{"scores", "flags"} {
		raw, ok := obj[group]
		if !ok {
			continue
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err != nil {
			continue
		}
		for k, v := range nested {
			flat[k] = v
		}
	}
	delete(flat, "scores")
	delete(flat, "flags")

	// Marshaling a map of RawMessage cannot fail.
	data, _ := json.Marshal(flat)
	return data
}
