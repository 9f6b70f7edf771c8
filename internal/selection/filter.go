package selection

import (
	"path"
	"strings"

	"github.com/temirov/reposum/internal/types"
)

// Filter decides which tree entries are eligible. It performs no I/O and never panics.
type Filter struct {
	excludedDirectories []pathPattern
	binaryExtensions    map[string]struct{}
	lockFiles           map[string]struct{}
	maxFileSize         int64
}

// NewFilter compiles the filter tables of ruleSet.
func NewFilter(ruleSet RuleSet) Filter {
	maxFileSize := ruleSet.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return Filter{
		excludedDirectories: compilePatterns(ruleSet.ExcludedDirectories, false),
		binaryExtensions:    lowerSet(ruleSet.BinaryExtensions),
		lockFiles:           lowerSet(ruleSet.LockFiles),
		maxFileSize:         maxFileSize,
	}
}

// Eligible applies the rules in order: excluded directory, binary extension, lock file,
// oversize. Directory entries are judged by the directory rule alone.
func (filter Filter) Eligible(entry types.TreeEntry) bool {
	segments, wellFormed := splitPath(entry.Path)
	if !wellFormed {
		return false
	}

	directorySegments := segments
	if entry.Kind != types.EntryKindDirectory {
		directorySegments = segments[:len(segments)-1]
	}
	if filter.underExcludedDirectory(directorySegments) {
		return false
	}
	switch entry.Kind {
	case types.EntryKindDirectory:
		return true
	case types.EntryKindFile:
	default:
		return false
	}

	baseName := strings.ToLower(segments[len(segments)-1])
	if _, isBinary := filter.binaryExtensions[path.Ext(baseName)]; isBinary {
		return false
	}
	if _, isLockFile := filter.lockFiles[baseName]; isLockFile {
		return false
	}
	if entry.Size < 0 || entry.Size > filter.maxFileSize {
		return false
	}
	return true
}

// EligibleEntries returns the eligible files and directories of entries in listing order.
func (filter Filter) EligibleEntries(entries []types.TreeEntry) []types.TreeEntry {
	eligible := make([]types.TreeEntry, 0, len(entries))
	for _, entry := range entries {
		if filter.Eligible(entry) {
			eligible = append(eligible, entry)
		}
	}
	return eligible
}

func (filter Filter) underExcludedDirectory(directorySegments []string) bool {
	for _, segment := range directorySegments {
		for _, pattern := range filter.excludedDirectories {
			if len(pattern.segments) == 1 && segmentMatches(pattern.segments[0], segment) {
				return true
			}
		}
	}
	for _, pattern := range filter.excludedDirectories {
		if len(pattern.segments) > 1 && len(directorySegments) >= len(pattern.segments) &&
			segmentsMatch(directorySegments[:len(pattern.segments)], pattern.segments) {
			return true
		}
	}
	return false
}
