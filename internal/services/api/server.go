// Package api exposes repository summaries and contexts over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/reposum/internal/metrics"
	"github.com/temirov/reposum/internal/repocontext"
	"github.com/temirov/reposum/internal/tokenizer"
	"github.com/temirov/reposum/internal/types"
)

const (
	defaultListenAddress    = "127.0.0.1:0"
	defaultShutdownDuration = 5 * time.Second
	defaultRequestTimeout   = 120 * time.Second

	summarizePath = "/summarize"
	contextPath   = "/context"
	healthPath    = "/health"
	metricsPath   = "/metrics"

	statusError = "error"
	statusOK    = "ok"
)

// ContextCollector builds the bounded context for a repository.
type ContextCollector interface {
	Collect(ctx context.Context, reference types.RepositoryReference) (types.Context, repocontext.Report, error)
}

// Summarizer turns an assembled context into a structured summary.
type Summarizer interface {
	Summarize(ctx context.Context, reference types.RepositoryReference, contextText string) (types.Summary, error)
}

// Config defines runtime options for the server.
type Config struct {
	Address         string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	Collector       ContextCollector
	// Summarizer is nil when no model API key is configured; /summarize then
	// fails before any repository access.
	Summarizer Summarizer
	// TokenCounter is optional; without it /context reports zero tokens.
	TokenCounter tokenizer.Counter
	Metrics      *metrics.Metrics
	// MetricsHandler serves /metrics. Defaults to the default Prometheus registry.
	MetricsHandler http.Handler
}

// Server serves the HTTP API.
type Server struct {
	config Config
	echo   *echo.Echo
	logger *zap.Logger
}

// NewServer creates a Server with defaults applied and routes registered.
func NewServer(config Config, logger *zap.Logger) (*Server, error) {
	if config.Collector == nil {
		return nil, errors.New("context collector is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	normalized := config
	if normalized.Address == "" {
		normalized.Address = defaultListenAddress
	}
	if normalized.ShutdownTimeout <= 0 {
		normalized.ShutdownTimeout = defaultShutdownDuration
	}
	if normalized.RequestTimeout <= 0 {
		normalized.RequestTimeout = defaultRequestTimeout
	}
	if normalized.MetricsHandler == nil {
		normalized.MetricsHandler = promhttp.Handler()
	}

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.HTTPErrorHandler = writeError

	server := &Server{config: normalized, echo: router, logger: logger}
	router.Use(middleware.Recover())
	router.Use(middleware.RequestID())
	router.Use(server.observeRequests)
	server.registerRoutes()
	return server, nil
}

func (server *Server) registerRoutes() {
	server.echo.GET(healthPath, server.handleHealth)
	server.echo.GET(metricsPath, echo.WrapHandler(server.config.MetricsHandler))
	server.echo.POST(summarizePath, server.handleSummarize)
	server.echo.POST(contextPath, server.handleContext)
}

// ServeHTTP lets the server be mounted or exercised without a listener.
func (server *Server) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	server.echo.ServeHTTP(writer, request)
}

// Run starts the server and blocks until the provided context is canceled.
// The notify callback receives the bound address once the listener is active.
func (server *Server) Run(ctx context.Context, notify func(string)) error {
	listener, listenErr := net.Listen("tcp", server.config.Address)
	if listenErr != nil {
		return fmt.Errorf("listen on %s: %w", server.config.Address, listenErr)
	}
	actualAddress := listener.Addr().String()

	httpServer := &http.Server{Handler: server.echo}
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		serveErr := httpServer.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return fmt.Errorf("serve API: %w", serveErr)
		}
		return nil
	})

	server.logger.Info("api server listening", zap.String("address", actualAddress))
	if notify != nil {
		notify(actualAddress)
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.config.ShutdownTimeout)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownCtx)
		if shutdownErr != nil && !errors.Is(shutdownErr, context.Canceled) && !errors.Is(shutdownErr, http.ErrServerClosed) {
			return fmt.Errorf("shutdown API: %w", shutdownErr)
		}
		server.logger.Info("api server stopped")
		return nil
	})

	return group.Wait()
}

// observeRequests logs and measures every request after its error has been rendered.
func (server *Server) observeRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}
		duration := time.Since(start)
		status := c.Response().Status
		server.logger.Info("http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
		if c.Path() != metricsPath {
			server.config.Metrics.ObserveRequest(c.Path(), strconv.Itoa(status), duration)
		}
		return nil
	}
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	statusCode := http.StatusInternalServerError
	message := err.Error()
	var statusErr StatusError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &statusErr):
		statusCode = statusErr.StatusCode()
	case errors.As(err, &httpErr):
		statusCode = httpErr.Code
		message = fmt.Sprint(httpErr.Message)
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(statusCode)
		return
	}
	_ = c.JSON(statusCode, errorResponse{Status: statusError, Message: message})
}
