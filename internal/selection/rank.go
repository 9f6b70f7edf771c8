package selection

import (
	"sort"

	"github.com/temirov/reposum/internal/types"
)

// Selector combines a Filter and a Scorer.
type Selector struct {
	filter Filter
	scorer Scorer
}

// NewSelector builds a Selector from ruleSet.
func NewSelector(ruleSet RuleSet) Selector {
	return Selector{filter: NewFilter(ruleSet), scorer: NewScorer(ruleSet)}
}

// Filter returns the selector's path filter.
func (selector Selector) Filter() Filter {
	return selector.filter
}

// Rank returns one candidate per eligible file ordered by descending score, then
// ascending depth, then ascending path. The first occurrence of a duplicated path wins.
func (selector Selector) Rank(entries []types.TreeEntry) []types.ScoredCandidate {
	seen := make(map[string]struct{}, len(entries))
	candidates := make([]types.ScoredCandidate, 0, len(entries))
	for _, entry := range entries {
		if entry.Kind != types.EntryKindFile || !selector.filter.Eligible(entry) {
			continue
		}
		if _, duplicate := seen[entry.Path]; duplicate {
			continue
		}
		seen[entry.Path] = struct{}{}
		depth := Depth(entry.Path)
		candidates = append(candidates, types.ScoredCandidate{
			Path:  entry.Path,
			Size:  entry.Size,
			Score: selector.scorer.Score(entry.Path, depth, entry.Size),
			Depth: depth,
		})
	}
	SortCandidates(candidates)
	return candidates
}

// SortCandidates orders candidates by the deterministic ranking rule.
func SortCandidates(candidates []types.ScoredCandidate) {
	sort.SliceStable(candidates, func(left, right int) bool {
		if candidates[left].Score != candidates[right].Score {
			return candidates[left].Score > candidates[right].Score
		}
		if candidates[left].Depth != candidates[right].Depth {
			return candidates[left].Depth < candidates[right].Depth
		}
		return candidates[left].Path < candidates[right].Path
	})
}
