// Package repocontext turns a repository listing into a bounded context: it ranks
// candidates, plans fetches against the character budget, fetches concurrently,
// and assembles the result deterministically in rank order.
package repocontext

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/reposum/internal/output"
	"github.com/temirov/reposum/internal/selection"
	"github.com/temirov/reposum/internal/types"
)

// ErrEmptyRepository reports a listing that resolved but holds no files.
var ErrEmptyRepository = errors.New("repository appears to be empty")

// FetchObserver is notified of every completed fetch.
type FetchObserver interface {
	ObserveFetch(outcome string)
}

// FailureClassifier maps a fetch error to a short outcome label.
type FailureClassifier func(err error) string

// Options sizes a Collector. Zero values select the defaults.
type Options struct {
	TotalBudget       int
	PerFileCap        int
	MinSlice          int
	TreeFullThreshold int
}

// Report describes how a context was built.
type Report struct {
	Reference        types.RepositoryReference
	Listed           int
	Eligible         int
	Requested        int
	Included         int
	Failed           int
	TruncatedListing bool
	// Waves counts dispatch rounds; each round is planned against the
	// characters actually left after assembling the previous rounds.
	Waves      int
	Characters int
	Duration   time.Duration
}

// Collector runs the whole per-request pipeline. It holds no per-request state
// and may be shared by concurrent requests.
type Collector struct {
	trees             TreeFetcher
	pool              *FetchPool
	selector          selection.Selector
	allocator         Allocator
	assembler         Assembler
	totalBudget       int
	treeFullThreshold int
	observer          FetchObserver
	classify          FailureClassifier
	logger            *zap.Logger
}

// NewCollector wires a Collector.
func NewCollector(trees TreeFetcher, pool *FetchPool, selector selection.Selector, options Options, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	totalBudget := options.TotalBudget
	if totalBudget <= 0 {
		totalBudget = DefaultTotalBudget
	}
	treeFullThreshold := options.TreeFullThreshold
	if treeFullThreshold <= 0 {
		treeFullThreshold = output.DefaultTreeFullThreshold
	}
	return &Collector{
		trees:             trees,
		pool:              pool,
		selector:          selector,
		allocator:         NewAllocator(options.PerFileCap, options.MinSlice),
		assembler:         NewAssembler(options.PerFileCap, options.MinSlice),
		totalBudget:       totalBudget,
		treeFullThreshold: treeFullThreshold,
		classify:          defaultFailureClassifier,
		logger:            logger,
	}
}

// WithFetchObserver registers an observer for fetch outcomes.
func (collector *Collector) WithFetchObserver(observer FetchObserver) *Collector {
	collector.observer = observer
	return collector
}

// WithFailureClassifier sets how fetch errors are labelled for logs and observers.
func (collector *Collector) WithFailureClassifier(classify FailureClassifier) *Collector {
	if classify != nil {
		collector.classify = classify
	}
	return collector
}

// Budget returns the configured total character budget.
func (collector *Collector) Budget() int {
	return collector.totalBudget
}

// Collect builds the context for reference using the configured budget.
func (collector *Collector) Collect(ctx context.Context, reference types.RepositoryReference) (types.Context, Report, error) {
	return collector.CollectWithBudget(ctx, reference, collector.totalBudget)
}

// CollectWithBudget builds the context for reference under budget characters.
// Listing failures are returned as errors; per-file fetch failures only shrink
// the result. Fetches are dispatched in waves: each wave is planned from listed
// sizes, and the next one against the budget left after assembling the files
// actually received, so characters a reservation did not use go to the next
// ranked candidates.
func (collector *Collector) CollectWithBudget(ctx context.Context, reference types.RepositoryReference, budget int) (types.Context, Report, error) {
	started := time.Now()
	listing, listErr := collector.trees.ListTree(ctx, reference)
	if listErr != nil {
		return types.Context{}, Report{}, fmt.Errorf("list %s: %w", reference, listErr)
	}
	report := Report{
		Reference:        listing.Reference,
		Listed:           listing.FileCount(),
		TruncatedListing: listing.Truncated,
	}
	if report.Listed == 0 {
		return types.Context{}, report, fmt.Errorf("%s: %w", reference, ErrEmptyRepository)
	}

	eligibleEntries := collector.selector.Filter().EligibleEntries(listing.Entries)
	candidates := collector.selector.Rank(listing.Entries)
	report.Eligible = len(candidates)

	treeText := output.RenderTree(eligibleEntries, listing.Truncated, collector.treeFullThreshold)
	assembled := collector.assembler.Assemble(treeText, nil, budget)
	var fetched []types.FetchedFile
	next := 0
	for next < len(candidates) {
		remaining := budget - assembled.Length()
		requests := collector.allocator.PlanFrom(candidates, next, remaining)
		if len(requests) == 0 {
			break
		}
		report.Requested += len(requests)
		wave, failed := collector.coordinate(ctx, listing.Reference, requests)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.Context{}, report, fmt.Errorf("collect %s: %w", reference, ctxErr)
		}
		report.Failed += failed
		fetched = append(fetched, wave...)
		assembled = collector.assembler.Assemble(treeText, fetched, budget)
		next = requests[len(requests)-1].Rank + 1
		report.Waves++
	}
	report.Included = len(assembled.Files)
	report.Characters = assembled.Length()
	report.Duration = time.Since(started)

	collector.logger.Info("assembled repository context",
		zap.String("repository", listing.Reference.String()),
		zap.String("ref", listing.Reference.Ref),
		zap.Int("listed", report.Listed),
		zap.Int("eligible", report.Eligible),
		zap.Int("requested", report.Requested),
		zap.Int("included", report.Included),
		zap.Int("failed", report.Failed),
		zap.Int("waves", report.Waves),
		zap.Int("characters", report.Characters),
		zap.Bool("truncated_listing", report.TruncatedListing),
		zap.Duration("duration", report.Duration),
	)
	return assembled, report, nil
}

// coordinate is the single consumer of completion events. It slots every result
// by rank so that the order fetches finish in never reaches assembly.
func (collector *Collector) coordinate(ctx context.Context, reference types.RepositoryReference, requests []FetchRequest) ([]types.FetchedFile, int) {
	if len(requests) == 0 {
		return nil, 0
	}
	slots := make([]types.FetchedFile, len(requests))
	slotByRank := make(map[int]int, len(requests))
	for index, request := range requests {
		slotByRank[request.Rank] = index
	}

	failed := 0
	for completion := range collector.pool.FetchMany(ctx, reference, requests) {
		fetchedFile := types.FetchedFile{Path: completion.Request.Candidate.Path}
		outcome := collector.classify(completion.Err)
		if completion.Err != nil {
			failed++
			fetchedFile.FetchFailed = true
			fetchedFile.Failure = outcome
			collector.logger.Debug("content fetch failed",
				zap.String("path", fetchedFile.Path),
				zap.String("kind", outcome),
				zap.Error(completion.Err),
			)
		} else {
			fetchedFile.Content = completion.Content
		}
		if collector.observer != nil {
			collector.observer.ObserveFetch(outcome)
		}
		slots[slotByRank[completion.Request.Rank]] = fetchedFile
	}
	return slots, failed
}

func defaultFailureClassifier(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failed"
	}
}
