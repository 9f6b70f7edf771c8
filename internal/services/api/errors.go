package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/temirov/reposum/internal/github"
	"github.com/temirov/reposum/internal/reference"
	"github.com/temirov/reposum/internal/repocontext"
	"github.com/temirov/reposum/internal/summarizer"
	"github.com/temirov/reposum/internal/types"
)

const (
	messageMissingAPIKey   = "NEBIUS_API_KEY is not set. Set it in your environment (or .env), restart/reload the server, then retry."
	messageModelAuth       = "LLM provider authentication failed. Check NEBIUS_API_KEY and restart/reload the server if .env was changed."
	messageModelFailure    = "LLM processing failed. Check server logs for details."
	messageEmptyRepository = "Repository appears to be empty."
	messageTimedOut        = "Request timed out."
	messageInvalidPayload  = "Invalid request payload."
	messageMissingURL      = "Field github_url is required and must be a string."
)

// StatusError is a failure accompanied by the HTTP status reported to the client.
type StatusError struct {
	statusCode int
	message    string
	err        error
}

// Error returns the client-facing message.
func (statusError StatusError) Error() string {
	return statusError.message
}

// Unwrap exposes the underlying cause.
func (statusError StatusError) Unwrap() error {
	return statusError.err
}

// StatusCode reports the associated HTTP status code.
func (statusError StatusError) StatusCode() int {
	return statusError.statusCode
}

// NewStatusError creates a StatusError with message shown to the client.
func NewStatusError(statusCode int, message string, cause error) error {
	return StatusError{statusCode: statusCode, message: message, err: cause}
}

func inputError(err error) error {
	return NewStatusError(http.StatusUnprocessableEntity, err.Error(), err)
}

// collectionError maps a failure of the context pipeline to a client status.
func collectionError(repository types.RepositoryReference, err error) error {
	switch {
	case errors.Is(err, repocontext.ErrEmptyRepository):
		return NewStatusError(http.StatusBadRequest, messageEmptyRepository, err)
	case errors.Is(err, github.ErrNotFound):
		return NewStatusError(http.StatusNotFound, fmt.Sprintf("Repository %s not found or not accessible.", repository), err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewStatusError(http.StatusGatewayTimeout, messageTimedOut, err)
	case errors.Is(err, reference.ErrInvalidReference):
		return inputError(err)
	default:
		return NewStatusError(http.StatusBadGateway, fmt.Sprintf("Failed to fetch repository data: %v", err), err)
	}
}

// summaryError maps a summarizer failure to a client status.
func summaryError(err error) error {
	switch {
	case errors.Is(err, summarizer.ErrMissingAPIKey):
		return NewStatusError(http.StatusInternalServerError, messageMissingAPIKey, err)
	case summarizer.IsAuthenticationError(err):
		return NewStatusError(http.StatusInternalServerError, messageModelAuth, err)
	case errors.Is(err, context.DeadlineExceeded):
		return NewStatusError(http.StatusGatewayTimeout, messageTimedOut, err)
	default:
		return NewStatusError(http.StatusBadGateway, messageModelFailure, err)
	}
}
