package repocontext

import (
	"github.com/temirov/reposum/internal/types"
	"github.com/temirov/reposum/internal/utils"
)

// TruncationMarker ends every file section whose content was shortened.
// It counts toward the section's content length.
const TruncationMarker = "\n... [truncated]"

// Assembler builds a bounded Context from a rendered tree and fetched files.
type Assembler struct {
	perFileCap int
	minSlice   int
}

// NewAssembler returns an Assembler. Non-positive arguments select the defaults.
func NewAssembler(perFileCap int, minSlice int) Assembler {
	if perFileCap <= 0 {
		perFileCap = DefaultPerFileCap
	}
	if minSlice <= 0 {
		minSlice = DefaultMinSlice
	}
	return Assembler{perFileCap: perFileCap, minSlice: minSlice}
}

// Assemble places treeText first and then the fetched files in the order given,
// which must be rank order. Each file is re-validated against the budget left
// at the moment it is considered, using its actual content length: failed fetches
// and empty files are skipped, a file that fits whole is included whole, and a
// file that does not is cut to min(perFileCap, remaining) when that leaves at
// least the minimum slice, otherwise skipped. The result never exceeds budget.
func (assembler Assembler) Assemble(treeText string, fetched []types.FetchedFile, budget int) types.Context {
	if budget < 0 {
		budget = 0
	}
	treeSection, _ := utils.TruncateCharacters(treeText, budget)
	assembled := types.Context{TreeSection: treeSection}
	remaining := budget - utils.CharacterCount(treeSection)

	for _, file := range fetched {
		if file.FetchFailed || file.Content == "" {
			continue
		}
		available := remaining - types.FileSectionOverhead(file.Path)
		if available <= 0 {
			continue
		}
		limit := minInt(assembler.perFileCap, available)
		contentLength := utils.CharacterCount(file.Content)
		content, truncated := file.Content, false
		if contentLength > limit {
			if limit < assembler.minSlice && available < contentLength {
				continue
			}
			content, truncated = truncateWithMarker(file.Content, limit)
		}
		assembled.Files = append(assembled.Files, types.ContextFile{Path: file.Path, Content: content, Truncated: truncated})
		remaining -= types.FileSectionOverhead(file.Path) + utils.CharacterCount(content)
	}
	return assembled
}

func truncateWithMarker(content string, limit int) (string, bool) {
	markerLength := utils.CharacterCount(TruncationMarker)
	if limit <= markerLength {
		return utils.TruncateCharacters(content, limit)
	}
	prefix, truncated := utils.TruncateCharacters(content, limit-markerLength)
	if !truncated {
		return prefix, false
	}
	return prefix + TruncationMarker, true
}
