package ranking

import (
	"sort"

	"github.com/helixir/citation-ranker/internal/domain"
)

// DefaultTopK is the number of recalled papers that receive a rank when the
// caller does not specify one.
const DefaultTopK = 20

// assignRanks gives dense ranks 1..min(topK, recalled) to the recalled
// results, ordered by FinalScore descending. The sort is stable over input
// order, so equal scores keep their original relative position; there is no
// nondeterministic tie-break. Non-recalled results keep a nil rank. It
// returns the number of ranks assigned.
func assignRanks(results []domain.ScoreResult, topK int) int {
	if topK <= 0 {
		topK = DefaultTopK
	}

	recalled := make([]int, 0, len(results))
	for i := range results {
		if results[i].Recalled {
			recalled = append(recalled, i)
		}
	}

	sort.SliceStable(recalled, func(a, b int) bool {
		return results[recalled[a]].FinalScore > results[recalled[b]].FinalScore
	})

	ranked := len(recalled)
	if ranked > topK {
		ranked = topK
	}
	for pos := 0; pos < ranked; pos++ {
		rank := pos + 1
		results[recalled[pos]].Rank = &rank
	}
	return ranked
}
