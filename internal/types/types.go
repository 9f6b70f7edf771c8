// Package types defines every cross-package data structure used by reposum.
package types

import (
	"strings"
)

const (
	NodeTypeFile      = "file"
	NodeTypeDirectory = "directory"

	FormatRaw  = "raw"
	FormatJSON = "json"
)

// EntryKind distinguishes files from directories in a tree listing.
type EntryKind string

const (
	EntryKindFile      EntryKind = NodeTypeFile
	EntryKindDirectory EntryKind = NodeTypeDirectory
)

// RepositoryReference identifies a repository on the source host.
// Ref is optional; an empty Ref means the default branch.
type RepositoryReference struct {
	Owner string
	Name  string
	Ref   string
}

// String renders the reference as owner/name.
func (reference RepositoryReference) String() string {
	return reference.Owner + "/" + reference.Name
}

// TreeEntry is a single path in a recursive repository listing.
type TreeEntry struct {
	Path string
	Kind EntryKind
	Size int64
}

// IsFile reports whether the entry is a file.
func (entry TreeEntry) IsFile() bool {
	return entry.Kind == EntryKindFile
}

// Listing is the flat result of a tree fetch. Truncated is set when the source host
// omitted entries from its response.
type Listing struct {
	Reference RepositoryReference
	Entries   []TreeEntry
	Truncated bool
}

// FileCount returns the number of file entries in the listing.
func (listing Listing) FileCount() int {
	count := 0
	for _, entry := range listing.Entries {
		if entry.IsFile() {
			count++
		}
	}
	return count
}

// ScoredCandidate is an eligible file with its ranking key.
// Size is always the listed size, never the length of fetched content.
type ScoredCandidate struct {
	Path  string
	Size  int64
	Score float64
	Depth int
}

// FetchedFile is the outcome of fetching one candidate. Content is the full
// text returned by the source host; truncation happens at assembly.
type FetchedFile struct {
	Path        string
	Content     string
	FetchFailed bool
	Failure     string
}

// ContextFile is one file section of an assembled context.
type ContextFile struct {
	Path      string `json:"path"`
	Content   string `json:"-"`
	Truncated bool   `json:"truncated"`
}

// Context is the bounded text handed to a summarizer.
type Context struct {
	TreeSection string
	Files       []ContextFile
}

// Text concatenates the tree section and every file section.
func (assembled Context) Text() string {
	var builder strings.Builder
	builder.WriteString(assembled.TreeSection)
	for _, file := range assembled.Files {
		builder.WriteString(FormatFileSection(file.Path, file.Content))
	}
	return builder.String()
}

const (
	fileSectionHeaderPrefix = "\n### File: "
	fileSectionHeaderSuffix = "\n"
	fileSectionTrailer      = "\n"
)

// FileSectionHeader returns the header written before a file's content.
func FileSectionHeader(path string) string {
	return fileSectionHeaderPrefix + path + fileSectionHeaderSuffix
}

// FileSectionOverhead returns the characters a file section adds besides its content.
func FileSectionOverhead(path string) int {
	return len([]rune(FileSectionHeader(path))) + len([]rune(fileSectionTrailer))
}

// FormatFileSection renders one file section.
func FormatFileSection(path string, content string) string {
	return FileSectionHeader(path) + content + fileSectionTrailer
}

// Summary is the structured answer produced by the summarizer.
type Summary struct {
	Summary      string   `json:"summary"`
	Technologies []string `json:"technologies"`
	Structure    string   `json:"structure"`
}

// Length returns the character count of Text.
func (assembled Context) Length() int {
	return len([]rune(assembled.Text()))
}

// OutputSummary aggregates the totals printed after an assembled context.
type OutputSummary struct {
	TotalFiles  int    `json:"totalFiles"`
	TotalSize   string `json:"totalSize"`
	TotalTokens int    `json:"totalTokens,omitempty"`
	Model       string `json:"model,omitempty"`
}
