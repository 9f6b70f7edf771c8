package repocontext_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/temirov/reposum/internal/types"
)

var errFakeNotFound = errors.New("fake: not found")

type fakeTreeFetcher struct {
	listing types.Listing
	err     error
}

func (fetcher fakeTreeFetcher) ListTree(_ context.Context, reference types.RepositoryReference) (types.Listing, error) {
	if fetcher.err != nil {
		return types.Listing{}, fetcher.err
	}
	listing := fetcher.listing
	listing.Reference = reference
	if listing.Reference.Ref == "" {
		listing.Reference.Ref = "main"
	}
	return listing, nil
}

type fakeContentFetcher struct {
	contents map[string]string
	failures map[string]error
	delays   func(path string) time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	mutex       sync.Mutex
	requested   []string
}

func (fetcher *fakeContentFetcher) FetchContent(ctx context.Context, _ types.RepositoryReference, filePath string) (string, error) {
	current := fetcher.inFlight.Add(1)
	defer fetcher.inFlight.Add(-1)
	for {
		observed := fetcher.maxInFlight.Load()
		if current <= observed || fetcher.maxInFlight.CompareAndSwap(observed, current) {
			break
		}
	}
	fetcher.mutex.Lock()
	fetcher.requested = append(fetcher.requested, filePath)
	fetcher.mutex.Unlock()

	if fetcher.delays != nil {
		select {
		case <-time.After(fetcher.delays(filePath)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err, failed := fetcher.failures[filePath]; failed {
		return "", err
	}
	content, found := fetcher.contents[filePath]
	if !found {
		return "", errFakeNotFound
	}
	return content, nil
}

func randomDelays(seed int64) func(string) time.Duration {
	var mutex sync.Mutex
	generator := rand.New(rand.NewSource(seed))
	return func(string) time.Duration {
		mutex.Lock()
		defer mutex.Unlock()
		return time.Duration(generator.Intn(3000)) * time.Microsecond
	}
}

func fileEntry(path string, size int) types.TreeEntry {
	return types.TreeEntry{Path: path, Kind: types.EntryKindFile, Size: int64(size)}
}
