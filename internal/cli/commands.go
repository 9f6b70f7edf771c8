package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/temirov/reposum/internal/config"
	"github.com/temirov/reposum/internal/output"
	"github.com/temirov/reposum/internal/reference"
	"github.com/temirov/reposum/internal/services/api"
	"github.com/temirov/reposum/internal/summarizer"
	"github.com/temirov/reposum/internal/tokenizer"
	"github.com/temirov/reposum/internal/types"
	"github.com/temirov/reposum/internal/utils"
)

const (
	addressFlagName   = "address"
	budgetFlagName    = "budget"
	clipboardFlagName = "clipboard"
	tokensFlagName    = "tokens"
	formatFlagName    = "format"
	globalFlagName    = "global"
	forceFlagName     = "force"

	serveUse                = "serve"
	serveShortDescription   = "run the HTTP API"
	serveLongDescription    = `Serve POST /summarize, POST /context, GET /health and GET /metrics until interrupted.`
	contextUse              = "context <github-url>"
	contextAlias            = "c"
	contextShortDescription = "print the assembled context for a repository (" + contextAlias + ")"
	contextLongDescription  = `Select the most informative files of a repository and print the bounded context
that would be sent to the model, followed by a summary line.`
	contextUsageExample = `  # Print the context of a repository
  reposum context https://github.com/psf/requests

  # Use a smaller budget and copy the result to the clipboard
  reposum context --budget 20000 --clipboard github.com/psf/requests`
	summarizeUse              = "summarize <github-url>"
	summarizeAlias            = "s"
	summarizeShortDescription = "summarize a repository (" + summarizeAlias + ")"
	summarizeLongDescription  = `Assemble the context of a repository and ask the configured model for a summary.
Use --format to select raw or json output.`
	summarizeUsageExample = `  # Summarize as JSON
  reposum summarize --format json https://github.com/psf/requests`
	configUse                  = "config"
	configShortDescription     = "manage configuration"
	configInitUse              = "init"
	configInitShortDescription = "write a default configuration file"

	addressFlagDescription   = "listen address (overrides server.address)"
	budgetFlagDescription    = "total character budget (overrides selection.total_budget)"
	clipboardFlagDescription = "copy the context to the clipboard"
	tokensFlagDescription    = "include a token estimate in the summary line"
	formatFlagDescription    = "output format (raw or json)"
	globalFlagDescription    = "write the global configuration under the home directory"
	forceFlagDescription     = "overwrite an existing configuration file"

	invalidFormatMessage     = "invalid format value '%s'"
	invalidBudgetMessage     = "budget must be positive, got %d"
	warningClipboardFormat   = "Warning: failed to copy context to clipboard: %v\n"
	warningTokenCountFormat  = "Warning: failed to count tokens: %v\n"
	configurationWrittenText = "Configuration written to %s\n"
)

func isSupportedFormat(format string) bool {
	switch format {
	case types.FormatRaw, types.FormatJSON:
		return true
	default:
		return false
	}
}

func createServeCommand(state *commandState) *cobra.Command {
	var address string

	serveCommand := &cobra.Command{
		Use:   serveUse,
		Short: serveShortDescription,
		Long:  serveLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			app, buildErr := state.buildApplication(true)
			if buildErr != nil {
				return buildErr
			}
			defer func() { _ = app.logger.Sync() }()

			serverConfig := api.Config{
				Address:         app.configuration.Server.Address,
				RequestTimeout:  app.configuration.Server.RequestTimeout,
				ShutdownTimeout: app.configuration.Server.ShutdownTimeout,
				Collector:       app.collector,
				Metrics:         app.metrics,
			}
			if address != "" {
				serverConfig.Address = address
			}
			if app.summarizer != nil {
				serverConfig.Summarizer = app.summarizer
			}
			serverConfig.TokenCounter = tokenizer.NewLazyCounter(tokenizer.Config{Model: app.configuration.Summarizer.Model})
			server, serverErr := api.NewServer(serverConfig, app.logger)
			if serverErr != nil {
				return serverErr
			}

			ctx, stop := signal.NotifyContext(contextOf(command), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, state.environment.notifyAddress)
		},
	}
	serveCommand.Flags().StringVar(&address, addressFlagName, "", addressFlagDescription)
	return serveCommand
}

func createContextCommand(state *commandState) *cobra.Command {
	var budget int
	var copyToClipboard bool
	var includeTokens bool

	contextCommand := &cobra.Command{
		Use:     contextUse,
		Aliases: []string{contextAlias},
		Short:   contextShortDescription,
		Long:    contextLongDescription,
		Example: contextUsageExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			repository, parseErr := reference.Parse(arguments[0])
			if parseErr != nil {
				return parseErr
			}
			app, buildErr := state.buildApplication(false)
			if buildErr != nil {
				return buildErr
			}
			defer func() { _ = app.logger.Sync() }()

			effectiveBudget := app.collector.Budget()
			if command.Flags().Changed(budgetFlagName) {
				if budget <= 0 {
					return fmt.Errorf(invalidBudgetMessage, budget)
				}
				effectiveBudget = budget
			}
			assembled, _, collectErr := app.collector.CollectWithBudget(contextOf(command), repository, effectiveBudget)
			if collectErr != nil {
				return collectErr
			}

			summary := &types.OutputSummary{
				TotalFiles: len(assembled.Files),
				TotalSize:  utils.FormatFileSize(int64(len(assembled.Text()))),
			}
			if includeTokens {
				counter, model, counterErr := tokenizer.NewCounter(tokenizer.Config{Model: app.configuration.Summarizer.Model})
				if counterErr == nil {
					tokens, countErr := tokenizer.CountContext(counter, assembled)
					counterErr = countErr
					summary.TotalTokens = tokens
					summary.Model = model
				}
				if counterErr != nil {
					fmt.Fprintf(command.ErrOrStderr(), warningTokenCountFormat, counterErr)
				}
			}
			output.WriteContextRaw(command.OutOrStdout(), assembled, summary)

			if copyToClipboard && state.environment.copier != nil {
				if copyErr := state.environment.copier.Copy(assembled.Text()); copyErr != nil {
					fmt.Fprintf(command.ErrOrStderr(), warningClipboardFormat, copyErr)
				}
			}
			return nil
		},
	}
	contextCommand.Flags().IntVar(&budget, budgetFlagName, 0, budgetFlagDescription)
	registerBooleanFlag(contextCommand.Flags(), &copyToClipboard, clipboardFlagName, false, clipboardFlagDescription)
	registerBooleanFlag(contextCommand.Flags(), &includeTokens, tokensFlagName, false, tokensFlagDescription)
	return contextCommand
}

func createSummarizeCommand(state *commandState) *cobra.Command {
	var outputFormat string = types.FormatRaw

	summarizeCommand := &cobra.Command{
		Use:     summarizeUse,
		Aliases: []string{summarizeAlias},
		Short:   summarizeShortDescription,
		Long:    summarizeLongDescription,
		Example: summarizeUsageExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			outputFormatLower := strings.ToLower(outputFormat)
			if !isSupportedFormat(outputFormatLower) {
				return fmt.Errorf(invalidFormatMessage, outputFormatLower)
			}
			repository, parseErr := reference.Parse(arguments[0])
			if parseErr != nil {
				return parseErr
			}
			app, buildErr := state.buildApplication(false)
			if buildErr != nil {
				return buildErr
			}
			defer func() { _ = app.logger.Sync() }()
			if app.summarizer == nil {
				return summarizer.ErrMissingAPIKey
			}

			ctx := contextOf(command)
			assembled, _, collectErr := app.collector.Collect(ctx, repository)
			if collectErr != nil {
				return collectErr
			}
			summary, summarizeErr := app.summarizer.Summarize(ctx, repository, assembled.Text())
			if summarizeErr != nil {
				return summarizeErr
			}

			if outputFormatLower == types.FormatJSON {
				rendered, renderErr := output.RenderSummaryJSON(summary)
				if renderErr != nil {
					return renderErr
				}
				fmt.Fprintln(command.OutOrStdout(), rendered)
				return nil
			}
			fmt.Fprint(command.OutOrStdout(), output.RenderSummaryRaw(repository.String(), summary))
			return nil
		},
	}
	summarizeCommand.Flags().StringVar(&outputFormat, formatFlagName, types.FormatRaw, formatFlagDescription)
	return summarizeCommand
}

func createConfigCommand(state *commandState) *cobra.Command {
	var global bool
	var force bool

	configCommand := &cobra.Command{
		Use:   configUse,
		Short: configShortDescription,
	}
	initCommand := &cobra.Command{
		Use:   configInitUse,
		Short: configInitShortDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			path, initErr := config.InitializeConfiguration(config.InitOptions{
				Target:           target,
				Force:            force,
				WorkingDirectory: state.environment.loadOptions.WorkingDirectory,
				HomeDirectory:    state.environment.loadOptions.HomeDirectory,
			})
			if initErr != nil {
				return initErr
			}
			fmt.Fprintf(command.OutOrStdout(), configurationWrittenText, path)
			return nil
		},
	}
	registerBooleanFlag(initCommand.Flags(), &global, globalFlagName, false, globalFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &force, forceFlagName, false, forceFlagDescription)
	configCommand.AddCommand(initCommand)
	return configCommand
}

func contextOf(command *cobra.Command) context.Context {
	if ctx := command.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
