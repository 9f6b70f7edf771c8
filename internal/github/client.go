// Package github lists repository trees and downloads file contents from GitHub.
package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/temirov/reposum/internal/types"
	"github.com/temirov/reposum/internal/utils"
)

const (
	DefaultAPIBaseURL        = "https://api.github.com/"
	DefaultRawBaseURL        = "https://raw.githubusercontent.com"
	DefaultTimeout           = 30 * time.Second
	DefaultRequestsPerSecond = 10.0
	DefaultBurst             = 10
	defaultUserAgent         = "reposum-fetcher"
	treeEntryTypeBlob        = "blob"
	treeEntryTypeTree        = "tree"
	authorizationBearer      = "Bearer"
	authorizationToken       = "token"
	errorBodyLimit           = 8 * 1024
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	Token             string
	APIBaseURL        string
	RawBaseURL        string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxFileSize       int64
}

// Client talks to the GitHub API for listings and to the raw host for contents.
// One limiter throttles every outbound request the client makes, whichever
// request it belongs to.
type Client struct {
	api         *gogithub.Client
	httpClient  *http.Client
	limiter     *rate.Limiter
	rawBase     string
	userAgent   string
	maxFileSize int64
	logger      *zap.Logger
}

// NewClient builds a Client from options.
func NewClient(options Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	requestsPerSecond := options.RequestsPerSecond
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRequestsPerSecond
	}
	burst := options.Burst
	if burst <= 0 {
		burst = DefaultBurst
	}
	userAgent := options.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	httpClient := &http.Client{}
	if tokenSource := newTokenSource(options.Token); tokenSource != nil {
		httpClient = oauth2.NewClient(context.Background(), tokenSource)
	}
	httpClient.Timeout = timeout

	api := gogithub.NewClient(httpClient)
	api.UserAgent = userAgent
	apiBase := options.APIBaseURL
	if apiBase == "" {
		apiBase = DefaultAPIBaseURL
	}
	parsedBase, parseErr := url.Parse(strings.TrimRight(apiBase, "/") + "/")
	if parseErr != nil {
		return nil, fmt.Errorf("parse GitHub API base URL %q: %w", apiBase, parseErr)
	}
	api.BaseURL = parsedBase

	rawBase := options.RawBaseURL
	if rawBase == "" {
		rawBase = DefaultRawBaseURL
	}
	if _, rawParseErr := url.Parse(rawBase); rawParseErr != nil {
		return nil, fmt.Errorf("parse GitHub raw base URL %q: %w", rawBase, rawParseErr)
	}

	return &Client{
		api:         api,
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		rawBase:     strings.TrimRight(rawBase, "/"),
		userAgent:   userAgent,
		maxFileSize: options.MaxFileSize,
		logger:      logger,
	}, nil
}

// ListTree returns the recursive listing of the repository. An empty Ref is
// resolved to the default branch and the resolved Ref is recorded on the listing.
func (client *Client) ListTree(ctx context.Context, reference types.RepositoryReference) (types.Listing, error) {
	if reference.Owner == "" {
		return types.Listing{}, errMissingOwner
	}
	if reference.Name == "" {
		return types.Listing{}, errMissingRepository
	}
	resolved := reference
	if resolved.Ref == "" {
		branch, branchErr := client.defaultBranch(ctx, reference)
		if branchErr != nil {
			return types.Listing{}, branchErr
		}
		resolved.Ref = branch
	}

	if waitErr := client.limiter.Wait(ctx); waitErr != nil {
		return types.Listing{}, fmt.Errorf("list tree for %s: %w: %w", resolved, ErrTransient, waitErr)
	}
	tree, _, treeErr := client.api.Git.GetTree(ctx, resolved.Owner, resolved.Name, resolved.Ref, true)
	if treeErr != nil {
		if isEmptyRepositoryError(treeErr) {
			client.logger.Debug("repository has no commits", zap.String("repository", resolved.String()))
			return types.Listing{Reference: resolved}, nil
		}
		return types.Listing{}, classifyAPIError("list tree for "+resolved.String(), treeErr)
	}

	entries := make([]types.TreeEntry, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		switch entry.GetType() {
		case treeEntryTypeBlob:
			entries = append(entries, types.TreeEntry{Path: entry.GetPath(), Kind: types.EntryKindFile, Size: int64(entry.GetSize())})
		case treeEntryTypeTree:
			entries = append(entries, types.TreeEntry{Path: entry.GetPath(), Kind: types.EntryKindDirectory})
		}
	}
	listing := types.Listing{Reference: resolved, Entries: entries, Truncated: tree.GetTruncated()}
	if listing.Truncated {
		client.logger.Warn("repository listing truncated by source host",
			zap.String("repository", resolved.String()),
			zap.Int("entries", len(entries)),
		)
	}
	return listing, nil
}

func (client *Client) defaultBranch(ctx context.Context, reference types.RepositoryReference) (string, error) {
	if waitErr := client.limiter.Wait(ctx); waitErr != nil {
		return "", fmt.Errorf("resolve %s: %w: %w", reference, ErrTransient, waitErr)
	}
	repository, _, repositoryErr := client.api.Repositories.Get(ctx, reference.Owner, reference.Name)
	if repositoryErr != nil {
		return "", classifyAPIError("resolve "+reference.String(), repositoryErr)
	}
	branch := repository.GetDefaultBranch()
	if branch == "" {
		return "", fmt.Errorf("resolve %s: %w: no default branch", reference, ErrNotFound)
	}
	return branch, nil
}

// FetchContent downloads a single file at the listing's resolved reference.
// It makes exactly one attempt.
func (client *Client) FetchContent(ctx context.Context, reference types.RepositoryReference, filePath string) (string, error) {
	if reference.Ref == "" {
		return "", errMissingReference
	}
	rawURL := client.buildRawURL(reference, filePath)
	if waitErr := client.limiter.Wait(ctx); waitErr != nil {
		return "", fmt.Errorf("fetch %s: %w: %w", filePath, ErrTransient, waitErr)
	}
	return client.downloadFile(ctx, rawURL, filePath)
}

func (client *Client) downloadFile(ctx context.Context, downloadURL string, filePath string) (string, error) {
	request, requestErr := client.buildRequest(ctx, downloadURL)
	if requestErr != nil {
		return "", requestErr
	}
	response, responseErr := client.httpClient.Do(request)
	if responseErr != nil {
		return "", fmt.Errorf("fetch %s: %w: %w", filePath, ErrTransient, responseErr)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, errorBodyLimit))
		return "", fmt.Errorf("fetch %s: %w: unexpected status %d: %s", filePath, classifyStatus(response.StatusCode, response.StatusCode == http.StatusForbidden), response.StatusCode, strings.TrimSpace(string(body)))
	}

	reader := io.Reader(response.Body)
	if client.maxFileSize > 0 {
		reader = io.LimitReader(response.Body, client.maxFileSize+1)
	}
	contentBytes, readErr := io.ReadAll(reader)
	if readErr != nil {
		return "", fmt.Errorf("fetch %s: %w: %w", filePath, ErrTransient, readErr)
	}
	if client.maxFileSize > 0 && int64(len(contentBytes)) > client.maxFileSize {
		return "", fmt.Errorf("fetch %s: %w", filePath, ErrTooLarge)
	}
	if utils.IsBinary(contentBytes) {
		return "", fmt.Errorf("fetch %s: %w", filePath, ErrBinary)
	}
	return string(contentBytes), nil
}

func (client *Client) buildRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if requestErr != nil {
		return nil, requestErr
	}
	if client.userAgent != "" {
		request.Header.Set("User-Agent", client.userAgent)
	}
	return request, nil
}

func (client *Client) buildRawURL(reference types.RepositoryReference, filePath string) string {
	var builder strings.Builder
	builder.WriteString(client.rawBase)
	writeEscapedSegments(&builder, reference.Owner)
	writeEscapedSegments(&builder, reference.Name)
	writeEscapedSegments(&builder, reference.Ref)
	writeEscapedSegments(&builder, filePath)
	return builder.String()
}

func writeEscapedSegments(builder *strings.Builder, value string) {
	for _, segment := range strings.Split(strings.Trim(value, "/"), "/") {
		if segment == "" {
			continue
		}
		builder.WriteByte('/')
		builder.WriteString(url.PathEscape(segment))
	}
}

// newTokenSource picks the authorization scheme GitHub expects for the token:
// Bearer for JWT-shaped tokens, token for personal access tokens, or the scheme
// already present on the value.
func newTokenSource(rawToken string) oauth2.TokenSource {
	trimmed := strings.TrimSpace(rawToken)
	if trimmed == "" {
		return nil
	}
	scheme, credential := authorizationToken, trimmed
	if prefix, rest, found := strings.Cut(trimmed, " "); found {
		switch strings.ToLower(prefix) {
		case strings.ToLower(authorizationBearer):
			scheme, credential = authorizationBearer, strings.TrimSpace(rest)
		case authorizationToken:
			scheme, credential = authorizationToken, strings.TrimSpace(rest)
		}
	} else if strings.Contains(trimmed, ".") {
		scheme = authorizationBearer
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: credential, TokenType: scheme})
}
