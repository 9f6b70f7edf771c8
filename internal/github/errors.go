package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gogithub "github.com/google/go-github/v57/github"
)

var (
	// ErrNotFound reports that the repository, revision, or file does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited reports that the source host refused the request because of rate limiting.
	ErrRateLimited = errors.New("rate limited by source host")
	// ErrTransient covers server faults, network faults, and any other upstream failure.
	ErrTransient = errors.New("source host unavailable")
	// ErrBinary reports a file whose content turned out to be binary.
	ErrBinary = errors.New("binary content")
	// ErrTooLarge reports a file whose content exceeds the configured maximum size.
	ErrTooLarge = errors.New("content exceeds maximum file size")
)

var (
	errMissingOwner      = errors.New("repository owner is required")
	errMissingRepository = errors.New("repository name is required")
	errMissingReference  = errors.New("resolved reference is required for content fetches")
)

const (
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRetryAfter         = "Retry-After"
)

// FailureKind names the class of a fetch failure for logs and metrics.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrBinary):
		return "binary"
	case errors.Is(err, ErrTooLarge):
		return "too_large"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "transient"
	}
}

func classifyAPIError(operation string, err error) error {
	var rateLimitError *gogithub.RateLimitError
	var abuseRateLimitError *gogithub.AbuseRateLimitError
	var responseError *gogithub.ErrorResponse
	switch {
	case errors.As(err, &rateLimitError), errors.As(err, &abuseRateLimitError):
		return fmt.Errorf("%s: %w: %w", operation, ErrRateLimited, err)
	case errors.As(err, &responseError) && responseError.Response != nil:
		rateLimitEvidence := responseError.Response.Header.Get(headerRateLimitRemaining) == "0" ||
			responseError.Response.Header.Get(headerRetryAfter) != ""
		return fmt.Errorf("%s: %w: %w", operation, classifyStatus(responseError.Response.StatusCode, rateLimitEvidence), err)
	}
	return fmt.Errorf("%s: %w: %w", operation, ErrTransient, err)
}

func classifyStatus(statusCode int, rateLimitEvidence bool) error {
	switch {
	case statusCode == http.StatusNotFound:
		return ErrNotFound
	case statusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case statusCode == http.StatusForbidden && rateLimitEvidence:
		return ErrRateLimited
	default:
		return ErrTransient
	}
}

func isEmptyRepositoryError(err error) bool {
	var responseError *gogithub.ErrorResponse
	return errors.As(err, &responseError) &&
		responseError.Response != nil &&
		responseError.Response.StatusCode == http.StatusConflict
}
