// Package cli provides the command line interface.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/temirov/reposum/internal/config"
	"github.com/temirov/reposum/internal/services/clipboard"
	"github.com/temirov/reposum/internal/utils"
)

const (
	versionFlagName      = "version"
	configFlagName       = "config"
	versionTemplate      = "reposum version: %s\n"
	rootUse              = "reposum"
	rootShortDescription = "reposum command line interface"
	rootLongDescription  = `reposum summarizes public GitHub repositories.
It selects the most informative files under a character budget, assembles them into a
bounded context, and asks a language model for a structured summary.
Use serve to run the HTTP API, context to print the assembled context, and summarize
to print a summary. Use --config to select a configuration file and --version to print
the application version.`
	versionFlagDescription = "display application version"
	configFlagDescription  = "configuration file (defaults to ./" + config.LocalConfigFileName + ")"
)

// runtimeEnvironment carries the process-level collaborators commands depend on.
type runtimeEnvironment struct {
	loadOptions config.LoadOptions
	copier      clipboard.Copier
	stdout      io.Writer
	// notifyAddress receives the bound address of the serve command.
	notifyAddress func(string)
}

// Execute runs the reposum application.
func Execute() error {
	environment := runtimeEnvironment{
		copier: clipboard.NewService(),
		stdout: os.Stdout,
	}
	rootCommand := createRootCommand(environment)
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, os.Args[1:]))
	return rootCommand.Execute()
}

// createRootCommand builds the root Cobra command.
func createRootCommand(environment runtimeEnvironment) *cobra.Command {
	var showVersion bool
	var configurationPath string
	state := &commandState{environment: environment}

	rootCommand := &cobra.Command{
		Use:          rootUse,
		Short:        rootShortDescription,
		Long:         rootLongDescription,
		SilenceUsage: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			return command.Help()
		},
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if showVersion {
				fmt.Fprintf(command.OutOrStdout(), versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
			state.configurationPath = configurationPath
			return nil
		},
	}
	if environment.stdout != nil {
		rootCommand.SetOut(environment.stdout)
	}
	rootCommand.PersistentFlags().BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)
	rootCommand.PersistentFlags().StringVar(&configurationPath, configFlagName, "", configFlagDescription)
	rootCommand.AddCommand(
		createServeCommand(state),
		createContextCommand(state),
		createSummarizeCommand(state),
		createConfigCommand(state),
	)
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}
