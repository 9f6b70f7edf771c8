package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/temirov/reposum/internal/reference"
	"github.com/temirov/reposum/internal/summarizer"
	"github.com/temirov/reposum/internal/tokenizer"
	"github.com/temirov/reposum/internal/types"
)

// RepositoryRequest is the body accepted by /summarize and /context.
type RepositoryRequest struct {
	GitHubURL *string `json:"github_url"`
}

// HealthResponse is the body returned by /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ContextResponse is the body returned by /context.
type ContextResponse struct {
	Context          string              `json:"context"`
	Tokens           int                 `json:"tokens"`
	Files            []types.ContextFile `json:"files"`
	TruncatedListing bool                `json:"truncated_listing"`
}

func (server *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: statusOK})
}

func (server *Server) handleSummarize(c echo.Context) error {
	repository, parseErr := bindRepository(c)
	if parseErr != nil {
		return parseErr
	}
	if server.config.Summarizer == nil {
		return summaryError(summarizer.ErrMissingAPIKey)
	}
	server.logger.Info("summarizing repository", zap.String("repository", repository.String()))

	ctx, cancel := context.WithTimeout(c.Request().Context(), server.config.RequestTimeout)
	defer cancel()

	assembled, report, collectErr := server.config.Collector.Collect(ctx, repository)
	if collectErr != nil {
		server.logger.Warn("context collection failed", zap.String("repository", repository.String()), zap.Error(collectErr))
		return collectionError(repository, collectErr)
	}
	server.config.Metrics.ObserveContext(report.Characters)

	summary, summarizeErr := server.config.Summarizer.Summarize(ctx, repository, assembled.Text())
	if summarizeErr != nil {
		server.logger.Error("summarization failed", zap.String("repository", repository.String()), zap.Error(summarizeErr))
		return summaryError(summarizeErr)
	}
	if summary.Technologies == nil {
		summary.Technologies = []string{}
	}
	return c.JSON(http.StatusOK, summary)
}

func (server *Server) handleContext(c echo.Context) error {
	repository, parseErr := bindRepository(c)
	if parseErr != nil {
		return parseErr
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), server.config.RequestTimeout)
	defer cancel()

	assembled, report, collectErr := server.config.Collector.Collect(ctx, repository)
	if collectErr != nil {
		server.logger.Warn("context collection failed", zap.String("repository", repository.String()), zap.Error(collectErr))
		return collectionError(repository, collectErr)
	}
	server.config.Metrics.ObserveContext(report.Characters)

	tokens := 0
	if server.config.TokenCounter != nil {
		counted, countErr := tokenizer.CountContext(server.config.TokenCounter, assembled)
		if countErr != nil {
			server.logger.Warn("token count failed", zap.Error(countErr))
		} else {
			tokens = counted
		}
	}
	files := assembled.Files
	if files == nil {
		files = []types.ContextFile{}
	}
	return c.JSON(http.StatusOK, ContextResponse{
		Context:          assembled.Text(),
		Tokens:           tokens,
		Files:            files,
		TruncatedListing: report.TruncatedListing,
	})
}

func bindRepository(c echo.Context) (types.RepositoryReference, error) {
	var request RepositoryRequest
	if bindErr := c.Bind(&request); bindErr != nil {
		return types.RepositoryReference{}, NewStatusError(http.StatusUnprocessableEntity, messageInvalidPayload, bindErr)
	}
	if request.GitHubURL == nil {
		return types.RepositoryReference{}, NewStatusError(http.StatusUnprocessableEntity, messageMissingURL, errors.New("github_url missing"))
	}
	repository, parseErr := reference.Parse(*request.GitHubURL)
	if parseErr != nil {
		return types.RepositoryReference{}, inputError(parseErr)
	}
	return repository, nil
}
