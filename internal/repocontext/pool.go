package repocontext

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/temirov/reposum/internal/types"
)

// DefaultConcurrency is the number of content fetches allowed in flight at once.
const DefaultConcurrency = 8

// TreeFetcher lists a repository.
type TreeFetcher interface {
	ListTree(ctx context.Context, reference types.RepositoryReference) (types.Listing, error)
}

// ContentFetcher downloads one file of a repository.
type ContentFetcher interface {
	FetchContent(ctx context.Context, reference types.RepositoryReference, filePath string) (string, error)
}

// FetchRequest is one dispatched candidate. Rank is its position in the ranked
// candidate list and Reserved the content characters set aside for it.
type FetchRequest struct {
	Rank      int
	Candidate types.ScoredCandidate
	Reserved  int
}

// Completion is the outcome of one FetchRequest.
type Completion struct {
	Request FetchRequest
	Content string
	Err     error
}

// FetchPool bounds the number of in-flight content fetches. A single pool is
// meant to be shared by every request a process serves.
type FetchPool struct {
	fetcher ContentFetcher
	permits *semaphore.Weighted
	logger  *zap.Logger
}

// NewFetchPool wraps fetcher with a pool of concurrency permits.
func NewFetchPool(fetcher ContentFetcher, concurrency int, logger *zap.Logger) *FetchPool {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FetchPool{
		fetcher: fetcher,
		permits: semaphore.NewWeighted(int64(concurrency)),
		logger:  logger,
	}
}

// FetchMany starts every request and returns a channel delivering exactly one
// Completion per request, in completion order. The channel is closed once all
// completions have been delivered. Requests that cannot obtain a permit before
// ctx is done complete with the context error.
func (pool *FetchPool) FetchMany(ctx context.Context, reference types.RepositoryReference, requests []FetchRequest) <-chan Completion {
	completions := make(chan Completion, len(requests))
	go func() {
		var workers sync.WaitGroup
		for _, request := range requests {
			if acquireErr := pool.permits.Acquire(ctx, 1); acquireErr != nil {
				pool.logger.Debug("fetch not started", zap.String("path", request.Candidate.Path), zap.Error(acquireErr))
				completions <- Completion{Request: request, Err: acquireErr}
				continue
			}
			workers.Add(1)
			go func(request FetchRequest) {
				defer workers.Done()
				defer pool.permits.Release(1)
				content, fetchErr := pool.fetcher.FetchContent(ctx, reference, request.Candidate.Path)
				completions <- Completion{Request: request, Content: content, Err: fetchErr}
			}(request)
		}
		workers.Wait()
		close(completions)
	}()
	return completions
}
