package selection

import (
	"path"
	"regexp"
	"strings"
)

// Scorer assigns the ranking key of a candidate from additive signals.
type Scorer struct {
	readme           *regexp.Regexp
	highPriority     []pathPattern
	mediumPriority   []pathPattern
	entryPointStems  map[string]struct{}
	configExtensions map[string]struct{}
	sourceExtensions map[string]struct{}
	testMarkers      []string
	weights          Weights
}

// NewScorer compiles the priority tables of ruleSet.
func NewScorer(ruleSet RuleSet) Scorer {
	return Scorer{
		readme:           compileReadmePattern(ruleSet.ReadmePattern),
		highPriority:     compilePatterns(ruleSet.HighPriority, true),
		mediumPriority:   compilePatterns(ruleSet.MediumPriority, true),
		entryPointStems:  lowerSet(ruleSet.EntryPointStems),
		configExtensions: lowerSet(ruleSet.ConfigExtensions),
		sourceExtensions: lowerSet(ruleSet.SourceExtensions),
		testMarkers:      lowerList(ruleSet.TestMarkers),
		weights:          ruleSet.Weights,
	}
}

// Score returns the priority of a file. Higher is better; the value is never negative.
func (scorer Scorer) Score(filePath string, depth int, size int64) float64 {
	lowerPath := strings.ToLower(strings.Trim(filePath, pathSeparator))
	if lowerPath == "" {
		return 0
	}
	segments := strings.Split(lowerPath, pathSeparator)
	baseName := segments[len(segments)-1]
	extension := path.Ext(baseName)
	stem := strings.TrimSuffix(baseName, extension)
	weights := scorer.weights

	score := 0.0
	if scorer.readme.MatchString(baseName) {
		score += weights.Readme
	}
	if depth <= weights.HighPriorityMaxDepth && anyPatternMatches(scorer.highPriority, segments) {
		score += weights.HighPriority
	}
	if anyPatternMatches(scorer.mediumPriority, segments) {
		score += weights.MediumPriority
	}
	if _, isEntryPoint := scorer.entryPointStems[stem]; isEntryPoint {
		score += weights.EntryPoint
	}
	score += scorer.extensionBonus(extension)
	if scorer.looksLikeTest(baseName) {
		score += weights.Test
	}

	score -= scorer.depthPenalty(depth)
	score -= scorer.sizePenalty(size)
	if score < 0 {
		return 0
	}
	return score
}

func (scorer Scorer) extensionBonus(extension string) float64 {
	if _, isConfig := scorer.configExtensions[extension]; isConfig {
		return scorer.weights.ConfigExtension
	}
	if _, isSource := scorer.sourceExtensions[extension]; isSource {
		return scorer.weights.SourceExtension
	}
	return scorer.weights.OtherExtension
}

func (scorer Scorer) looksLikeTest(baseName string) bool {
	for _, marker := range scorer.testMarkers {
		if strings.Contains(baseName, marker) {
			return true
		}
	}
	return false
}

func (scorer Scorer) depthPenalty(depth int) float64 {
	if depth <= 0 {
		return 0
	}
	penalty := float64(depth) * scorer.weights.DepthPenaltyPerLevel
	if penalty > scorer.weights.DepthPenaltyMax {
		return scorer.weights.DepthPenaltyMax
	}
	return penalty
}

// sizePenalty grows continuously from zero at the threshold toward SizePenaltyMax.
func (scorer Scorer) sizePenalty(size int64) float64 {
	threshold := scorer.weights.SizePenaltyThreshold
	if size <= threshold || size <= 0 {
		return 0
	}
	return scorer.weights.SizePenaltyMax * (1 - float64(threshold)/float64(size))
}
