package scorer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// MaxTextChars is the default character budget for scoring input. Title and
// abstract beyond this length add little signal and inflate token cost.
const MaxTextChars = 2000

// BuildText assembles and truncates the scoring input for one paper.
func BuildText(title, abstract string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = MaxTextChars
	}
	text := "Title: " + title + "\nAbstract: " + abstract
	runes := []rune(text)
	if len(runes) > maxChars {
		return string(runes[:maxChars])
	}
	return text
}

// ContentHash returns the deterministic cache key for a truncated scoring
// text: the hex SHA-256 of its UTF-8 bytes. Identical text always maps to
// the same key across runs and processes.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// BuildPrompt wraps the scoring text in the structured citation-impact
// prompt. The contract demands strict JSON with an exact schema; the parser
// still tolerates fenced or garbage-wrapped responses.
func BuildPrompt(text string) string {
	var sb strings.Builder

	sb.WriteString("Return STRICT JSON ONLY (no markdown, no backticks, no explanation).\n\n")
	sb.WriteString("You are an expert AI researcher. Given a paper's title and abstract,\n")
	sb.WriteString("predict its CITATION IMPACT - how likely it is to be widely cited.\n\n")
	sb.WriteString("Think about: Does it introduce something others will build on?\n")
	sb.WriteString("Is the topic trending? Would many communities reference this?\n\n")

	sb.WriteString("Schema (exact keys, no extras):\n")
	sb.WriteString("{\n")
	sb.WriteString("  \"scores\": {\n")
	sb.WriteString("    \"citation_potential\": 0-10,\n")
	sb.WriteString("    \"methodological_novelty\": 0-10,\n")
	sb.WriteString("    \"practical_utility\": 0-10,\n")
	sb.WriteString("    \"topic_trendiness\": 0-10,\n")
	sb.WriteString("    \"reusability\": 0-10,\n")
	sb.WriteString("    \"community_breadth\": 0-10,\n")
	sb.WriteString("    \"writing_accessibility\": 0-10\n")
	sb.WriteString("  },\n")
	sb.WriteString("  \"flags\": {\n")
	sb.WriteString("    \"introduces_framework\": 0|1,\n")
	sb.WriteString("    \"new_dataset_or_benchmark\": 0|1,\n")
	sb.WriteString("    \"comprehensive_survey\": 0|1,\n")
	sb.WriteString("    \"addresses_open_problem\": 0|1,\n")
	sb.WriteString("    \"strong_empirical_results\": 0|1,\n")
	sb.WriteString("    \"cross_disciplinary\": 0|1,\n")
	sb.WriteString("    \"provides_theoretical_insight\": 0|1\n")
	sb.WriteString("  },\n")
	sb.WriteString("  \"citation_tier\": \"very_high|high|medium|low\"\n")
	sb.WriteString("}\n\n")

	sb.WriteString("Scoring guide: 0-2 very low, 3-4 below avg, 5-6 average, 7-8 strong, 9-10 exceptional.\n\n")
	sb.WriteString("Text:\n")
	sb.WriteString(text)

	return sb.String()
}

// parseError marks an unparseable provider response. Parse failures count
// toward the retry budget like other soft errors.
type parseError struct {
	reason string
}

func (e *parseError) Error() string {
	return fmt.Sprintf("scorer: unparseable provider response: %s", e.reason)
}
