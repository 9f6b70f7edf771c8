package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func environment(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		value, found := values[name]
		return value, found
	}
}

func TestLoadApplicationConfigurationDefaults(t *testing.T) {
	t.Parallel()

	configuration, err := LoadApplicationConfiguration(LoadOptions{
		WorkingDirectory:  t.TempDir(),
		HomeDirectory:     t.TempDir(),
		LookupEnvironment: environment(nil),
	})
	if err != nil {
		t.Fatalf("LoadApplicationConfiguration error: %v", err)
	}
	selectionSettings := configuration.Selection
	if selectionSettings.TotalBudget != 80000 || selectionSettings.PerFileCap != 15000 || selectionSettings.MaxFileSize != 500000 ||
		selectionSettings.TreeFullThreshold != 300 || selectionSettings.Concurrency != 8 || selectionSettings.MinSlice != 200 {
		t.Fatalf("unexpected selection defaults %+v", selectionSettings)
	}
	if configuration.Server.Address != DefaultServerAddress || configuration.Server.RequestTimeout != 120*time.Second {
		t.Fatalf("unexpected server defaults %+v", configuration.Server)
	}
	if configuration.Summarizer.Temperature != 0.2 || configuration.Summarizer.APIKey != "" {
		t.Fatalf("unexpected summarizer defaults %+v", configuration.Summarizer)
	}
	if configuration.GitHub.Timeout != 30*time.Second || configuration.Logging.Level != "info" {
		t.Fatalf("unexpected defaults %+v", configuration)
	}
}

func TestLoadApplicationConfigurationPrecedence(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name            string
		globalContent   string
		localContent    string
		explicitPath    string
		dotEnvContent   string
		environment     map[string]string
		expectBudget    int
		expectModel     string
		expectAPIKey    string
		expectToken     string
		expectAddress   string
		expectRequestTO time.Duration
	}{
		{
			name:            "local overrides global",
			globalContent:   "selection:\n  total_budget: 1000\nsummarizer:\n  model: global-model\n",
			localContent:    "selection:\n  total_budget: 2000\n",
			expectBudget:    2000,
			expectModel:     "global-model",
			expectAddress:   DefaultServerAddress,
			expectRequestTO: DefaultRequestTimeout,
		},
		{
			name:            "explicit path replaces local lookup",
			localContent:    "selection:\n  total_budget: 2000\n",
			explicitPath:    "custom.yaml",
			expectBudget:    3000,
			expectModel:     "explicit-model",
			expectAddress:   "0.0.0.0:9000",
			expectRequestTO: 45 * time.Second,
		},
		{
			name:            "dotenv supplies secrets",
			localContent:    "selection:\n  total_budget: 2000\n",
			dotEnvContent:   "NEBIUS_API_KEY=from-dotenv\nGITHUB_TOKEN=gh-dotenv\nREPOSUM_SELECTION_TOTAL_BUDGET=4000\n",
			expectBudget:    4000,
			expectAPIKey:    "from-dotenv",
			expectToken:     "gh-dotenv",
			expectAddress:   DefaultServerAddress,
			expectRequestTO: DefaultRequestTimeout,
		},
		{
			name:          "environment beats dotenv and files",
			localContent:  "selection:\n  total_budget: 2000\nserver:\n  address: 10.0.0.1:1\n",
			dotEnvContent: "NEBIUS_API_KEY=from-dotenv\nNEBIUS_MODEL=dotenv-model\n",
			environment: map[string]string{
				"NEBIUS_API_KEY":                 "from-environment",
				"REPOSUM_SELECTION_TOTAL_BUDGET": "5000",
				"REPOSUM_SERVER_ADDRESS":         "127.0.0.1:7000",
				"REPOSUM_SERVER_REQUEST_TIMEOUT": "30s",
			},
			expectBudget:    5000,
			expectModel:     "dotenv-model",
			expectAPIKey:    "from-environment",
			expectAddress:   "127.0.0.1:7000",
			expectRequestTO: 30 * time.Second,
		},
		{
			name:            "prefixed name wins over alias",
			environment:     map[string]string{"NEBIUS_API_KEY": "alias", "REPOSUM_SUMMARIZER_API_KEY": "prefixed"},
			expectBudget:    80000,
			expectAPIKey:    "prefixed",
			expectAddress:   DefaultServerAddress,
			expectRequestTO: DefaultRequestTimeout,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			homeDirectory := t.TempDir()
			workingDirectory := t.TempDir()
			if testCase.globalContent != "" {
				writeFile(t, filepath.Join(homeDirectory, GlobalConfigDirectoryName, GlobalConfigFileName), testCase.globalContent)
			}
			if testCase.localContent != "" {
				writeFile(t, filepath.Join(workingDirectory, LocalConfigFileName), testCase.localContent)
			}
			if testCase.explicitPath != "" {
				writeFile(t, filepath.Join(workingDirectory, testCase.explicitPath), "selection:\n  total_budget: 3000\nsummarizer:\n  model: explicit-model\nserver:\n  address: 0.0.0.0:9000\n  request_timeout: 45s\n")
			}
			if testCase.dotEnvContent != "" {
				writeFile(t, filepath.Join(workingDirectory, DotEnvFileName), testCase.dotEnvContent)
			}

			configuration, err := LoadApplicationConfiguration(LoadOptions{
				WorkingDirectory:  workingDirectory,
				HomeDirectory:     homeDirectory,
				ExplicitFilePath:  testCase.explicitPath,
				LookupEnvironment: environment(testCase.environment),
			})
			if err != nil {
				t.Fatalf("LoadApplicationConfiguration error: %v", err)
			}
			if configuration.Selection.TotalBudget != testCase.expectBudget {
				t.Fatalf("expected budget %d, got %d", testCase.expectBudget, configuration.Selection.TotalBudget)
			}
			if testCase.expectModel != "" && configuration.Summarizer.Model != testCase.expectModel {
				t.Fatalf("expected model %q, got %q", testCase.expectModel, configuration.Summarizer.Model)
			}
			if configuration.Summarizer.APIKey != testCase.expectAPIKey {
				t.Fatalf("expected api key %q, got %q", testCase.expectAPIKey, configuration.Summarizer.APIKey)
			}
			if configuration.GitHub.Token != testCase.expectToken {
				t.Fatalf("expected token %q, got %q", testCase.expectToken, configuration.GitHub.Token)
			}
			if configuration.Server.Address != testCase.expectAddress {
				t.Fatalf("expected address %q, got %q", testCase.expectAddress, configuration.Server.Address)
			}
			if configuration.Server.RequestTimeout != testCase.expectRequestTO {
				t.Fatalf("expected request timeout %s, got %s", testCase.expectRequestTO, configuration.Server.RequestTimeout)
			}
		})
	}
}

func TestLoadApplicationConfigurationErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		localContent string
		explicitPath string
		errorPart    string
	}{
		{name: "missing explicit file", explicitPath: "absent.yaml", errorPart: "absent.yaml"},
		{name: "invalid budget", localContent: "selection:\n  total_budget: 0\n", errorPart: "total_budget"},
		{name: "min slice above cap", localContent: "selection:\n  per_file_cap: 100\n  min_slice: 200\n", errorPart: "min_slice"},
		{name: "malformed yaml", localContent: "selection: [", errorPart: LocalConfigFileName},
	}
	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			workingDirectory := t.TempDir()
			if testCase.localContent != "" {
				writeFile(t, filepath.Join(workingDirectory, LocalConfigFileName), testCase.localContent)
			}
			_, err := LoadApplicationConfiguration(LoadOptions{
				WorkingDirectory:  workingDirectory,
				HomeDirectory:     t.TempDir(),
				ExplicitFilePath:  testCase.explicitPath,
				LookupEnvironment: environment(nil),
			})
			if err == nil || !strings.Contains(err.Error(), testCase.errorPart) {
				t.Fatalf("expected error mentioning %q, got %v", testCase.errorPart, err)
			}
		})
	}
}

func TestSelectionRuleSet(t *testing.T) {
	t.Parallel()

	rulesPath := filepath.Join(t.TempDir(), "rules.yaml")
	writeFile(t, rulesPath, "lock_files:\n  - custom.lock\n")

	ruleSet, err := SelectionConfiguration{MaxFileSize: 1234, RulesFile: rulesPath}.RuleSet()
	if err != nil {
		t.Fatalf("RuleSet error: %v", err)
	}
	if ruleSet.MaxFileSize != 1234 || len(ruleSet.LockFiles) != 1 {
		t.Fatalf("unexpected rule set %+v", ruleSet)
	}
}
