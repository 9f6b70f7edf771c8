package github_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/temirov/reposum/internal/github"
	"github.com/temirov/reposum/internal/types"
)

const (
	testOwner      = "acme"
	testRepository = "widget"
)

func newTestClient(t *testing.T, server *httptest.Server, token string, maxFileSize int64) *github.Client {
	t.Helper()
	client, err := github.NewClient(github.Options{
		Token:             token,
		APIBaseURL:        server.URL + "/api",
		RawBaseURL:        server.URL + "/raw",
		RequestsPerSecond: 1000,
		Burst:             100,
		MaxFileSize:       maxFileSize,
	}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func writeJSON(writer http.ResponseWriter, statusCode int, body string) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(statusCode)
	_, _ = writer.Write([]byte(body))
}

func TestListTreeResolvesDefaultBranch(t *testing.T) {
	t.Parallel()

	var treeRequests atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/repos/acme/widget", func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, http.StatusOK, `{"name":"widget","default_branch":"trunk"}`)
	})
	mux.HandleFunc("/api/repos/acme/widget/git/trees/trunk", func(writer http.ResponseWriter, request *http.Request) {
		treeRequests.Add(1)
		if request.URL.Query().Get("recursive") != "1" {
			t.Errorf("expected recursive listing, got %q", request.URL.RawQuery)
		}
		writeJSON(writer, http.StatusOK, `{
			"sha": "abc",
			"truncated": true,
			"tree": [
				{"path": "README.md", "type": "blob", "size": 2000},
				{"path": "src", "type": "tree"},
				{"path": "src/main.go", "type": "blob", "size": 120},
				{"path": "third_party/lib", "type": "commit"}
			]
		}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, "", 0)
	listing, err := client.ListTree(context.Background(), types.RepositoryReference{Owner: testOwner, Name: testRepository})
	if err != nil {
		t.Fatalf("ListTree error: %v", err)
	}
	if listing.Reference.Ref != "trunk" {
		t.Fatalf("expected resolved ref trunk, got %q", listing.Reference.Ref)
	}
	if !listing.Truncated {
		t.Fatalf("expected truncated listing")
	}
	expected := []types.TreeEntry{
		{Path: "README.md", Kind: types.EntryKindFile, Size: 2000},
		{Path: "src", Kind: types.EntryKindDirectory},
		{Path: "src/main.go", Kind: types.EntryKindFile, Size: 120},
	}
	if len(listing.Entries) != len(expected) {
		t.Fatalf("expected %d entries, got %+v", len(expected), listing.Entries)
	}
	for index, entry := range expected {
		if listing.Entries[index] != entry {
			t.Fatalf("entry %d: expected %+v, got %+v", index, entry, listing.Entries[index])
		}
	}
	if treeRequests.Load() != 1 {
		t.Fatalf("expected one tree request, got %d", treeRequests.Load())
	}
}

func TestListTreeErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		handler       http.HandlerFunc
		expectedError error
		expectEmpty   bool
	}{
		{
			name: "missing repository",
			handler: func(writer http.ResponseWriter, request *http.Request) {
				writeJSON(writer, http.StatusNotFound, `{"message":"Not Found"}`)
			},
			expectedError: github.ErrNotFound,
		},
		{
			name: "primary rate limit",
			handler: func(writer http.ResponseWriter, request *http.Request) {
				writer.Header().Set("X-RateLimit-Limit", "60")
				writer.Header().Set("X-RateLimit-Remaining", "0")
				writer.Header().Set("X-RateLimit-Reset", "4102444800")
				writeJSON(writer, http.StatusForbidden, `{"message":"API rate limit exceeded"}`)
			},
			expectedError: github.ErrRateLimited,
		},
		{
			name: "server fault",
			handler: func(writer http.ResponseWriter, request *http.Request) {
				writeJSON(writer, http.StatusBadGateway, `{"message":"upstream"}`)
			},
			expectedError: github.ErrTransient,
		},
		{
			name: "repository without commits",
			handler: func(writer http.ResponseWriter, request *http.Request) {
				writeJSON(writer, http.StatusConflict, `{"message":"Git Repository is empty."}`)
			},
			expectEmpty: true,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(testCase.handler)
			defer server.Close()

			client := newTestClient(t, server, "", 0)
			listing, err := client.ListTree(context.Background(), types.RepositoryReference{Owner: testOwner, Name: testRepository, Ref: "main"})
			if testCase.expectEmpty {
				if err != nil {
					t.Fatalf("expected empty listing, got error %v", err)
				}
				if len(listing.Entries) != 0 || listing.Reference.Ref != "main" {
					t.Fatalf("unexpected listing %+v", listing)
				}
				return
			}
			if !errors.Is(err, testCase.expectedError) {
				t.Fatalf("expected %v, got %v", testCase.expectedError, err)
			}
		})
	}
}

func TestFetchContent(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/raw/acme/widget/feature/", func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.EscapedPath() != "/raw/acme/widget/feature/x/docs/read%20me.md" {
			http.NotFound(writer, request)
			return
		}
		_, _ = writer.Write([]byte("# Widget\n"))
	})
	mux.HandleFunc("/raw/acme/widget/main/", func(writer http.ResponseWriter, request *http.Request) {
		switch strings.TrimPrefix(request.URL.Path, "/raw/acme/widget/main/") {
		case "README.md":
			if request.Header.Get("Authorization") != "token secret" {
				writer.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = writer.Write([]byte("hello"))
		case "logo.dat":
			_, _ = writer.Write([]byte{0x89, 'P', 'N', 'G', 0x00, 0x01})
		case "big.txt":
			_, _ = writer.Write([]byte(strings.Repeat("a", 65)))
		case "limit.txt":
			_, _ = writer.Write([]byte(strings.Repeat("a", 64)))
		case "throttled.go":
			writer.WriteHeader(http.StatusTooManyRequests)
		case "forbidden.go":
			writer.WriteHeader(http.StatusForbidden)
		case "broken.go":
			writer.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(writer, request)
		}
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newTestClient(t, server, "secret", 64)
	reference := types.RepositoryReference{Owner: testOwner, Name: testRepository, Ref: "main"}

	testCases := []struct {
		name            string
		reference       types.RepositoryReference
		path            string
		expectedContent string
		expectedError   error
	}{
		{name: "authorized text", reference: reference, path: "README.md", expectedContent: "hello"},
		{name: "escaped path and slashed ref", reference: types.RepositoryReference{Owner: testOwner, Name: testRepository, Ref: "feature/x"}, path: "docs/read me.md", expectedContent: "# Widget\n"},
		{name: "exact size limit", reference: reference, path: "limit.txt", expectedContent: strings.Repeat("a", 64)},
		{name: "binary", reference: reference, path: "logo.dat", expectedError: github.ErrBinary},
		{name: "too large", reference: reference, path: "big.txt", expectedError: github.ErrTooLarge},
		{name: "missing", reference: reference, path: "gone.go", expectedError: github.ErrNotFound},
		{name: "throttled", reference: reference, path: "throttled.go", expectedError: github.ErrRateLimited},
		{name: "forbidden", reference: reference, path: "forbidden.go", expectedError: github.ErrRateLimited},
		{name: "server fault", reference: reference, path: "broken.go", expectedError: github.ErrTransient},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			content, err := client.FetchContent(context.Background(), testCase.reference, testCase.path)
			if testCase.expectedError != nil {
				if !errors.Is(err, testCase.expectedError) {
					t.Fatalf("expected %v, got %v", testCase.expectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FetchContent error: %v", err)
			}
			if content != testCase.expectedContent {
				t.Fatalf("expected %q, got %q", testCase.expectedContent, content)
			}
		})
	}
}

func TestFetchContentHonoursCancellation(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		_, _ = writer.Write([]byte("late"))
	}))
	defer server.Close()

	client := newTestClient(t, server, "", 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.FetchContent(ctx, types.RepositoryReference{Owner: testOwner, Name: testRepository, Ref: "main"}, "a.go")
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if kind := github.FailureKind(err); kind != "canceled" {
		t.Fatalf("expected canceled failure kind, got %s", kind)
	}
}

func TestFailureKind(t *testing.T) {
	t.Parallel()

	testCases := map[string]error{
		"ok":           nil,
		"not_found":    fmt.Errorf("fetch: %w", github.ErrNotFound),
		"rate_limited": fmt.Errorf("fetch: %w", github.ErrRateLimited),
		"binary":       github.ErrBinary,
		"too_large":    github.ErrTooLarge,
		"transient":    errors.New("boom"),
	}
	for expected, err := range testCases {
		if actual := github.FailureKind(err); actual != expected {
			t.Errorf("FailureKind(%v) = %s, want %s", err, actual, expected)
		}
	}
}
