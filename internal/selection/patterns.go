package selection

import (
	"path"
	"regexp"
	"strings"
)

const pathSeparator = "/"

// pathPattern is a compiled rule-table entry.
type pathPattern struct {
	segments    []string
	directory   bool
	matchesBase bool
}

func compilePatterns(patterns []string, foldCase bool) []pathPattern {
	compiled := make([]pathPattern, 0, len(patterns))
	for _, rawPattern := range patterns {
		normalized := strings.TrimSpace(strings.ReplaceAll(rawPattern, "\\", pathSeparator))
		if foldCase {
			normalized = strings.ToLower(normalized)
		}
		if normalized == "" {
			continue
		}
		isDirectory := strings.HasSuffix(normalized, pathSeparator)
		trimmed := strings.Trim(normalized, pathSeparator)
		if trimmed == "" {
			continue
		}
		compiled = append(compiled, pathPattern{
			segments:    strings.Split(trimmed, pathSeparator),
			directory:   isDirectory,
			matchesBase: !isDirectory && !strings.Contains(trimmed, pathSeparator),
		})
	}
	return compiled
}

// matches reports whether the pattern selects the path given as segments.
func (pattern pathPattern) matches(pathSegments []string) bool {
	if len(pathSegments) == 0 {
		return false
	}
	if pattern.matchesBase {
		return segmentMatches(pattern.segments[0], pathSegments[len(pathSegments)-1])
	}
	if pattern.directory {
		// The final segment is the file itself, so a directory prefix needs at least one more.
		if len(pathSegments) <= len(pattern.segments) {
			return false
		}
		return segmentsMatch(pathSegments[:len(pattern.segments)], pattern.segments)
	}
	return len(pathSegments) == len(pattern.segments) && segmentsMatch(pathSegments, pattern.segments)
}

func anyPatternMatches(patterns []pathPattern, pathSegments []string) bool {
	for _, pattern := range patterns {
		if pattern.matches(pathSegments) {
			return true
		}
	}
	return false
}

// segmentsMatch reports whether each pattern segment matches the corresponding path segment.
func segmentsMatch(pathSegments, patternSegments []string) bool {
	for segmentIndex, patternSegment := range patternSegments {
		if !segmentMatches(patternSegment, pathSegments[segmentIndex]) {
			return false
		}
	}
	return true
}

func segmentMatches(patternSegment string, pathSegment string) bool {
	if patternSegment == pathSegment {
		return true
	}
	isMatched, matchError := path.Match(patternSegment, pathSegment)
	return matchError == nil && isMatched
}

func lowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		set[normalized] = struct{}{}
	}
	return set
}

func lowerList(values []string) []string {
	list := make([]string, 0, len(values))
	for _, value := range values {
		normalized := strings.ToLower(strings.TrimSpace(value))
		if normalized == "" {
			continue
		}
		list = append(list, normalized)
	}
	return list
}

func compileReadmePattern(expression string) *regexp.Regexp {
	if strings.TrimSpace(expression) == "" {
		expression = defaultReadmePattern
	}
	compiled, compileErr := regexp.Compile(expression)
	if compileErr != nil {
		return regexp.MustCompile(defaultReadmePattern)
	}
	return compiled
}

// splitPath returns the segments of a slash-separated repository path and whether the
// path is well formed: relative, non-empty, free of NUL bytes, empty segments and dot segments.
func splitPath(rawPath string) ([]string, bool) {
	if rawPath == "" || strings.HasPrefix(rawPath, pathSeparator) || strings.ContainsRune(rawPath, 0) {
		return nil, false
	}
	segments := strings.Split(rawPath, pathSeparator)
	for _, segment := range segments {
		if segment == "" || segment == "." || segment == ".." {
			return nil, false
		}
	}
	return segments, true
}

// Depth returns how many directories enclose path: README.md is 0, docs/a.md is 1.
func Depth(rawPath string) int {
	trimmed := strings.Trim(rawPath, pathSeparator)
	if trimmed == "" {
		return 0
	}
	return strings.Count(trimmed, pathSeparator)
}
