// Package output renders repository trees, assembled contexts, and summaries as text.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/temirov/reposum/internal/types"
	"github.com/temirov/reposum/internal/utils"
)

const (
	indentPrefix = ""
	indentSpacer = "  "

	// DirectoryStructureHeading opens the tree section of every context.
	DirectoryStructureHeading = "## Directory Structure"
	// TruncationNotice is emitted when the source host truncated the listing.
	TruncationNotice = "[Notice: the repository listing was truncated by the source host; the tree below is incomplete.]"
	// DefaultTreeFullThreshold is the file count above which the tree is summarized.
	DefaultTreeFullThreshold = 300

	summarizedNoticeFormat = "(%d %s in total; showing top-level entries only)"
	directorySuffix        = "/"

	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "
)

type treeNode struct {
	name      string
	directory bool
	files     int
	children  map[string]*treeNode
}

func newDirectoryNode(name string) *treeNode {
	return &treeNode{name: name, directory: true, children: map[string]*treeNode{}}
}

// RenderTree renders the directory structure section for the supplied entries.
// Listings holding more than threshold files are reduced to their top level with
// aggregate file counts per directory. A non-positive threshold always renders
// the full hierarchy.
func RenderTree(entries []types.TreeEntry, truncated bool, threshold int) string {
	root := buildTree(entries)

	var builder strings.Builder
	builder.WriteString(DirectoryStructureHeading)
	builder.WriteString("\n\n")
	if truncated {
		builder.WriteString(TruncationNotice)
		builder.WriteString("\n")
	}
	if threshold > 0 && root.files > threshold {
		fmt.Fprintf(&builder, summarizedNoticeFormat+"\n", root.files, utils.Pluralize(root.files, "file", "files"))
		writeChildren(&builder, root, "", false)
	} else {
		writeChildren(&builder, root, "", true)
	}
	return builder.String()
}

func buildTree(entries []types.TreeEntry) *treeNode {
	root := newDirectoryNode("")
	for _, entry := range entries {
		segments := strings.Split(strings.Trim(entry.Path, "/"), "/")
		if len(segments) == 0 || segments[0] == "" {
			continue
		}
		current := root
		lastIndex := len(segments) - 1
		for index, segment := range segments {
			if index == lastIndex && entry.Kind == types.EntryKindFile {
				if _, exists := current.children[segment]; !exists {
					current.children[segment] = &treeNode{name: segment}
				}
				break
			}
			child, exists := current.children[segment]
			if !exists || !child.directory {
				child = newDirectoryNode(segment)
				current.children[segment] = child
			}
			current = child
		}
	}
	countFiles(root)
	return root
}

func countFiles(node *treeNode) int {
	if !node.directory {
		node.files = 1
		return 1
	}
	total := 0
	for _, child := range node.children {
		total += countFiles(child)
	}
	node.files = total
	return total
}

func orderedChildren(node *treeNode) []*treeNode {
	children := make([]*treeNode, 0, len(node.children))
	for _, child := range node.children {
		children = append(children, child)
	}
	sort.Slice(children, func(left, right int) bool {
		if children[left].directory != children[right].directory {
			return children[left].directory
		}
		return children[left].name < children[right].name
	})
	return children
}

func writeChildren(builder *strings.Builder, node *treeNode, prefix string, recursive bool) {
	children := orderedChildren(node)
	for index, child := range children {
		connector, childPrefix := treeBranchConnector, prefix+treeBranchPadding
		if index == len(children)-1 {
			connector, childPrefix = treeLastConnector, prefix+treeLastPadding
		}
		builder.WriteString(prefix)
		builder.WriteString(connector)
		builder.WriteString(child.name)
		if child.directory {
			builder.WriteString(directorySuffix)
			if !recursive {
				fmt.Fprintf(builder, " (%d %s)", child.files, utils.Pluralize(child.files, "file", "files"))
			}
		}
		builder.WriteString("\n")
		if child.directory && recursive {
			writeChildren(builder, child, childPrefix, true)
		}
	}
}

// WriteContextRaw writes an assembled context followed by its summary line.
func WriteContextRaw(writer io.Writer, assembled types.Context, summary *types.OutputSummary) {
	fmt.Fprint(writer, assembled.Text())
	if summary != nil {
		fmt.Fprintln(writer)
		fmt.Fprintln(writer, FormatSummaryLine(summary))
	}
}

// RenderSummaryRaw formats a generated summary for terminal output.
func RenderSummaryRaw(repository string, summary types.Summary) string {
	var builder strings.Builder
	builder.WriteString("Repository: " + repository + "\n\n")
	builder.WriteString("Summary:\n" + strings.TrimSpace(summary.Summary) + "\n\n")
	builder.WriteString("Technologies:\n")
	if len(summary.Technologies) == 0 {
		builder.WriteString("  (none)\n")
	}
	for _, technology := range summary.Technologies {
		builder.WriteString(" " + technology + "\n")
	}
	builder.WriteString("\nStructure:\n" + strings.TrimSpace(summary.Structure) + "\n")
	return builder.String()
}

// RenderSummaryJSON marshals a generated summary as indented JSON.
func RenderSummaryJSON(summary types.Summary) (string, error) {
	if summary.Technologies == nil {
		summary.Technologies = []string{}
	}
	encoded, jsonEncodeError := json.MarshalIndent(summary, indentPrefix, indentSpacer)
	return string(encoded), jsonEncodeError
}

// FormatSummaryLine formats an OutputSummary into the raw summary line.
func FormatSummaryLine(summary *types.OutputSummary) string {
	if summary == nil {
		summary = &types.OutputSummary{}
	}
	label := utils.Pluralize(summary.TotalFiles, "file", "files")
	extra := ""
	if summary.TotalTokens > 0 {
		extra = fmt.Sprintf(", %d tokens", summary.TotalTokens)
	}
	modelSuffix := ""
	if summary.Model != "" {
		modelSuffix = fmt.Sprintf(" (model: %s)", summary.Model)
	}
	return fmt.Sprintf("Summary: %d %s, %s%s%s", summary.TotalFiles, label, summary.TotalSize, extra, modelSuffix)
}
