package repocontext

import (
	"github.com/temirov/reposum/internal/types"
)

const (
	DefaultTotalBudget = 80000
	DefaultPerFileCap  = 15000
	DefaultMinSlice    = 200
)

// Allocator decides which ranked candidates are worth fetching.
type Allocator struct {
	perFileCap int
	minSlice   int
}

// NewAllocator returns an Allocator. Non-positive arguments select the defaults.
func NewAllocator(perFileCap int, minSlice int) Allocator {
	if perFileCap <= 0 {
		perFileCap = DefaultPerFileCap
	}
	if minSlice <= 0 {
		minSlice = DefaultMinSlice
	}
	return Allocator{perFileCap: perFileCap, minSlice: minSlice}
}

// Plan walks candidates in rank order and reserves, for each one, its section
// header plus min(perFileCap, listed size, what is left after the header).
// Dispatch stops once the remaining characters no longer exceed the minimum
// slice. Candidates listed as empty are never requested.
// The plan depends only on the candidates and available, never on fetch results.
func (allocator Allocator) Plan(candidates []types.ScoredCandidate, available int) []FetchRequest {
	return allocator.PlanFrom(candidates, 0, available)
}

// PlanFrom is Plan restricted to the candidates ranked at start or later.
// Request ranks stay positions in the full candidate list.
func (allocator Allocator) PlanFrom(candidates []types.ScoredCandidate, start int, available int) []FetchRequest {
	remaining := available
	var requests []FetchRequest
	for rank := start; rank < len(candidates); rank++ {
		candidate := candidates[rank]
		if remaining <= allocator.minSlice {
			break
		}
		if candidate.Size <= 0 {
			continue
		}
		header := types.FileSectionOverhead(candidate.Path)
		if remaining <= allocator.minSlice+header {
			continue
		}
		reserved := minInt(allocator.perFileCap, remaining-header)
		if candidate.Size < int64(reserved) {
			reserved = int(candidate.Size)
		}
		requests = append(requests, FetchRequest{Rank: rank, Candidate: candidate, Reserved: reserved})
		remaining -= header + reserved
	}
	return requests
}

func minInt(left int, right int) int {
	if left < right {
		return left
	}
	return right
}
