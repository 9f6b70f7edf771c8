// Package config loads reposum configuration from defaults, YAML files, a .env
// file, and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/temirov/reposum/internal/github"
	"github.com/temirov/reposum/internal/output"
	"github.com/temirov/reposum/internal/repocontext"
	"github.com/temirov/reposum/internal/selection"
	"github.com/temirov/reposum/internal/summarizer"
	"github.com/temirov/reposum/internal/utils"
)

const (
	// GlobalConfigDirectoryName is the directory under the home directory holding the global file.
	GlobalConfigDirectoryName = ".reposum"
	// GlobalConfigFileName is the global configuration file name.
	GlobalConfigFileName = "config.yaml"
	// LocalConfigFileName is the configuration file looked up in the working directory.
	LocalConfigFileName = ".reposum.yaml"
	// DotEnvFileName is the environment file looked up in the working directory.
	DotEnvFileName = ".env"

	environmentPrefix = "REPOSUM_"

	DefaultServerAddress   = "127.0.0.1:8000"
	DefaultRequestTimeout  = 120 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
	HomeDirectory    string
	// LookupEnvironment reads process environment variables. Defaults to os.LookupEnv.
	LookupEnvironment func(name string) (string, bool)
}

// ApplicationConfiguration holds every setting of the application.
type ApplicationConfiguration struct {
	Selection  SelectionConfiguration  `mapstructure:"selection"`
	Server     ServerConfiguration     `mapstructure:"server"`
	GitHub     GitHubConfiguration     `mapstructure:"github"`
	Summarizer SummarizerConfiguration `mapstructure:"summarizer"`
	Logging    LoggingConfiguration    `mapstructure:"logging"`
}

// SelectionConfiguration sizes context assembly.
type SelectionConfiguration struct {
	TotalBudget       int    `mapstructure:"total_budget"`
	PerFileCap        int    `mapstructure:"per_file_cap"`
	MaxFileSize       int64  `mapstructure:"max_file_size"`
	TreeFullThreshold int    `mapstructure:"tree_full_threshold"`
	Concurrency       int    `mapstructure:"concurrency"`
	MinSlice          int    `mapstructure:"min_slice"`
	RulesFile         string `mapstructure:"rules_file"`
}

// ServerConfiguration configures the HTTP service.
type ServerConfiguration struct {
	Address         string        `mapstructure:"address"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GitHubConfiguration configures access to the source host.
type GitHubConfiguration struct {
	Token             string        `mapstructure:"token"`
	APIBaseURL        string        `mapstructure:"api_base_url"`
	RawBaseURL        string        `mapstructure:"raw_base_url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// SummarizerConfiguration configures the model endpoint.
type SummarizerConfiguration struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	MaxAttempts int     `mapstructure:"max_attempts"`
}

// LoggingConfiguration configures the application logger.
type LoggingConfiguration struct {
	Level string `mapstructure:"level"`
}

type environmentBinding struct {
	key     string
	aliases []string
}

var environmentBindings = []environmentBinding{
	{key: "selection.total_budget"},
	{key: "selection.per_file_cap"},
	{key: "selection.max_file_size"},
	{key: "selection.tree_full_threshold"},
	{key: "selection.concurrency"},
	{key: "selection.min_slice"},
	{key: "selection.rules_file"},
	{key: "server.address"},
	{key: "server.request_timeout"},
	{key: "server.shutdown_timeout"},
	{key: "github.token", aliases: []string{"GITHUB_TOKEN"}},
	{key: "github.api_base_url"},
	{key: "github.raw_base_url"},
	{key: "github.requests_per_second"},
	{key: "github.burst"},
	{key: "github.timeout"},
	{key: "summarizer.api_key", aliases: []string{"NEBIUS_API_KEY"}},
	{key: "summarizer.base_url", aliases: []string{"NEBIUS_API_BASE"}},
	{key: "summarizer.model", aliases: []string{"NEBIUS_MODEL"}},
	{key: "summarizer.temperature"},
	{key: "summarizer.max_tokens"},
	{key: "summarizer.max_attempts"},
	{key: "logging.level"},
}

func applyDefaults(reader *viper.Viper) {
	reader.SetDefault("selection.total_budget", repocontext.DefaultTotalBudget)
	reader.SetDefault("selection.per_file_cap", repocontext.DefaultPerFileCap)
	reader.SetDefault("selection.max_file_size", selection.DefaultMaxFileSize)
	reader.SetDefault("selection.tree_full_threshold", output.DefaultTreeFullThreshold)
	reader.SetDefault("selection.concurrency", repocontext.DefaultConcurrency)
	reader.SetDefault("selection.min_slice", repocontext.DefaultMinSlice)
	reader.SetDefault("selection.rules_file", "")
	reader.SetDefault("server.address", DefaultServerAddress)
	reader.SetDefault("server.request_timeout", DefaultRequestTimeout)
	reader.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)
	reader.SetDefault("github.token", "")
	reader.SetDefault("github.api_base_url", github.DefaultAPIBaseURL)
	reader.SetDefault("github.raw_base_url", github.DefaultRawBaseURL)
	reader.SetDefault("github.requests_per_second", github.DefaultRequestsPerSecond)
	reader.SetDefault("github.burst", github.DefaultBurst)
	reader.SetDefault("github.timeout", github.DefaultTimeout)
	reader.SetDefault("summarizer.api_key", "")
	reader.SetDefault("summarizer.base_url", summarizer.DefaultBaseURL)
	reader.SetDefault("summarizer.model", summarizer.DefaultModel)
	reader.SetDefault("summarizer.temperature", summarizer.DefaultTemperature)
	reader.SetDefault("summarizer.max_tokens", summarizer.DefaultMaxTokens)
	reader.SetDefault("summarizer.max_attempts", summarizer.DefaultMaxAttempts)
	reader.SetDefault("logging.level", utils.DefaultLogLevel)
}

// LoadApplicationConfiguration loads configuration from every source.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}
	lookupEnvironment := options.LookupEnvironment
	if lookupEnvironment == nil {
		lookupEnvironment = os.LookupEnv
	}

	reader := viper.New()
	applyDefaults(reader)

	homeDirectory := options.HomeDirectory
	if homeDirectory == "" {
		if resolvedHome, err := os.UserHomeDir(); err == nil {
			homeDirectory = resolvedHome
		}
	}
	if homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, GlobalConfigDirectoryName, GlobalConfigFileName)
		if err := mergeConfigurationFromPath(reader, globalPath, false); err != nil {
			return ApplicationConfiguration{}, err
		}
	}

	localPath := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if err := mergeConfigurationFromPath(reader, localPath, options.ExplicitFilePath != ""); err != nil {
		return ApplicationConfiguration{}, err
	}

	dotEnvValues, dotEnvErr := loadDotEnv(filepath.Join(workingDirectory, DotEnvFileName))
	if dotEnvErr != nil {
		return ApplicationConfiguration{}, dotEnvErr
	}
	for _, binding := range environmentBindings {
		if value, found := lookupBinding(binding, lookupEnvironment, dotEnvValues); found {
			reader.Set(binding.key, value)
		}
	}

	var configuration ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&configuration); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration: %w", decodeErr)
	}
	if validationErr := configuration.Validate(); validationErr != nil {
		return ApplicationConfiguration{}, validationErr
	}
	return configuration, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) string {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath
		}
		return filepath.Join(workingDirectory, explicitPath)
	}
	return filepath.Join(workingDirectory, LocalConfigFileName)
}

func mergeConfigurationFromPath(reader *viper.Viper, path string, required bool) error {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) && !required {
			return nil
		}
		return fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return fmt.Errorf("configuration path %s is a directory", path)
	}
	reader.SetConfigFile(path)
	if mergeErr := reader.MergeInConfig(); mergeErr != nil {
		return fmt.Errorf("read configuration from %s: %w", path, mergeErr)
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if _, statErr := os.Stat(path); statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat %s: %w", path, statErr)
	}
	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("env")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return nil, fmt.Errorf("read %s: %w", path, readErr)
	}
	values := make(map[string]string)
	for _, key := range reader.AllKeys() {
		values[strings.ToUpper(key)] = reader.GetString(key)
	}
	return values, nil
}

// lookupBinding returns the value for binding from the environment first and the
// .env file second. REPOSUM_ names win over aliases within each source.
func lookupBinding(binding environmentBinding, lookupEnvironment func(string) (string, bool), dotEnvValues map[string]string) (string, bool) {
	names := append([]string{environmentName(binding.key)}, binding.aliases...)
	for _, name := range names {
		if value, found := lookupEnvironment(name); found && value != "" {
			return value, true
		}
	}
	for _, name := range names {
		if value, found := dotEnvValues[name]; found && value != "" {
			return value, true
		}
	}
	return "", false
}

func environmentName(key string) string {
	return environmentPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Validate rejects settings no component can work with.
func (configuration ApplicationConfiguration) Validate() error {
	var problems []error
	selectionSettings := configuration.Selection
	if selectionSettings.TotalBudget <= 0 {
		problems = append(problems, errors.New("selection.total_budget must be positive"))
	}
	if selectionSettings.PerFileCap <= 0 {
		problems = append(problems, errors.New("selection.per_file_cap must be positive"))
	}
	if selectionSettings.MinSlice < 0 || selectionSettings.MinSlice > selectionSettings.PerFileCap {
		problems = append(problems, errors.New("selection.min_slice must be between 0 and selection.per_file_cap"))
	}
	if selectionSettings.MaxFileSize <= 0 {
		problems = append(problems, errors.New("selection.max_file_size must be positive"))
	}
	if selectionSettings.Concurrency <= 0 {
		problems = append(problems, errors.New("selection.concurrency must be positive"))
	}
	if configuration.Server.RequestTimeout <= 0 || configuration.Server.ShutdownTimeout <= 0 {
		problems = append(problems, errors.New("server timeouts must be positive"))
	}
	if configuration.Summarizer.MaxAttempts <= 0 {
		problems = append(problems, errors.New("summarizer.max_attempts must be positive"))
	}
	return errors.Join(problems...)
}

// RuleSet returns the selection rules: the built-in tables, the configured size
// limit, and the optional rules file on top.
func (selectionSettings SelectionConfiguration) RuleSet() (selection.RuleSet, error) {
	base := selection.DefaultRuleSet()
	if selectionSettings.MaxFileSize > 0 {
		base.MaxFileSize = selectionSettings.MaxFileSize
	}
	return selection.LoadRuleSet(selectionSettings.RulesFile, base)
}
