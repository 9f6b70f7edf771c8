package main

import (
	"fmt"
	"os"

	"github.com/temirov/reposum/internal/cli"
	"github.com/temirov/reposum/internal/utils"
)

// main is the entry point for the reposum command.
func main() {
	loggerInstance, loggerInitializationError := utils.NewApplicationLogger(utils.DefaultLogLevel)
	if loggerInitializationError != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", loggerInitializationError)
		os.Exit(1)
	}
	defer func() { _ = loggerInstance.Sync() }()
	if applicationExecutionError := cli.Execute(); applicationExecutionError != nil {
		loggerInstance.Fatal("application execution failed: " + applicationExecutionError.Error())
	}
}
