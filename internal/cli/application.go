package cli

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/reposum/internal/config"
	"github.com/temirov/reposum/internal/github"
	"github.com/temirov/reposum/internal/metrics"
	"github.com/temirov/reposum/internal/repocontext"
	"github.com/temirov/reposum/internal/selection"
	"github.com/temirov/reposum/internal/summarizer"
	"github.com/temirov/reposum/internal/utils"
)

// commandState is shared by every subcommand of one root command.
type commandState struct {
	environment       runtimeEnvironment
	configurationPath string
}

// application holds the components built from configuration for one command run.
type application struct {
	configuration config.ApplicationConfiguration
	logger        *zap.Logger
	metrics       *metrics.Metrics
	collector     *repocontext.Collector
	// summarizer is nil when no model API key is configured.
	summarizer *summarizer.Client
}

func (state *commandState) loadConfiguration() (config.ApplicationConfiguration, error) {
	options := state.environment.loadOptions
	options.ExplicitFilePath = state.configurationPath
	return config.LoadApplicationConfiguration(options)
}

// buildApplication loads configuration and wires the pipeline. Metrics are only
// registered when requested because the default registry is process-wide.
func (state *commandState) buildApplication(withMetrics bool) (*application, error) {
	configuration, configurationErr := state.loadConfiguration()
	if configurationErr != nil {
		return nil, configurationErr
	}
	logger, loggerErr := utils.NewApplicationLogger(configuration.Logging.Level)
	if loggerErr != nil {
		return nil, loggerErr
	}

	ruleSet, ruleSetErr := configuration.Selection.RuleSet()
	if ruleSetErr != nil {
		return nil, fmt.Errorf("load selection rules: %w", ruleSetErr)
	}
	sourceHost, clientErr := github.NewClient(github.Options{
		Token:             configuration.GitHub.Token,
		APIBaseURL:        configuration.GitHub.APIBaseURL,
		RawBaseURL:        configuration.GitHub.RawBaseURL,
		Timeout:           configuration.GitHub.Timeout,
		RequestsPerSecond: configuration.GitHub.RequestsPerSecond,
		Burst:             configuration.GitHub.Burst,
		MaxFileSize:       configuration.Selection.MaxFileSize,
		UserAgent:         rootUse + "/" + utils.GetApplicationVersion(),
	}, logger)
	if clientErr != nil {
		return nil, clientErr
	}

	var collectorMetrics *metrics.Metrics
	if withMetrics {
		collectorMetrics = metrics.NewMetrics()
	}
	pool := repocontext.NewFetchPool(sourceHost, configuration.Selection.Concurrency, logger)
	collector := repocontext.NewCollector(sourceHost, pool, selection.NewSelector(ruleSet), repocontext.Options{
		TotalBudget:       configuration.Selection.TotalBudget,
		PerFileCap:        configuration.Selection.PerFileCap,
		MinSlice:          configuration.Selection.MinSlice,
		TreeFullThreshold: configuration.Selection.TreeFullThreshold,
	}, logger).WithFailureClassifier(github.FailureKind)
	if collectorMetrics != nil {
		collector.WithFetchObserver(collectorMetrics)
	}

	built := &application{
		configuration: configuration,
		logger:        logger,
		metrics:       collectorMetrics,
		collector:     collector,
	}
	modelClient, modelErr := summarizer.NewClient(summarizer.Options{
		APIKey:      configuration.Summarizer.APIKey,
		BaseURL:     configuration.Summarizer.BaseURL,
		Model:       configuration.Summarizer.Model,
		Temperature: configuration.Summarizer.Temperature,
		MaxTokens:   configuration.Summarizer.MaxTokens,
		MaxAttempts: configuration.Summarizer.MaxAttempts,
	}, logger)
	switch {
	case modelErr == nil:
		built.summarizer = modelClient
	case errors.Is(modelErr, summarizer.ErrMissingAPIKey):
		logger.Warn("model API key is not configured; summaries are unavailable")
	default:
		return nil, modelErr
	}
	return built, nil
}
