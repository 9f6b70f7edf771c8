// Package selection decides which repository files are worth reading and in what order.
// Every list and weight it uses lives in a RuleSet so new ecosystems can be added
// without touching the filter or the scorer.
package selection

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultMaxFileSize is the listed size in bytes above which a file is never considered.
const DefaultMaxFileSize int64 = 500000

const defaultReadmePattern = `(?i)^readme(\.[a-z0-9]+)?$`

// Weights are the additive scoring signals. Only their relative order is meaningful.
type Weights struct {
	Readme               float64 `yaml:"readme"`
	HighPriority         float64 `yaml:"high_priority"`
	HighPriorityMaxDepth int     `yaml:"high_priority_max_depth"`
	MediumPriority       float64 `yaml:"medium_priority"`
	EntryPoint           float64 `yaml:"entry_point"`
	ConfigExtension      float64 `yaml:"config_extension"`
	SourceExtension      float64 `yaml:"source_extension"`
	OtherExtension       float64 `yaml:"other_extension"`
	Test                 float64 `yaml:"test"`
	DepthPenaltyPerLevel float64 `yaml:"depth_penalty_per_level"`
	DepthPenaltyMax      float64 `yaml:"depth_penalty_max"`
	SizePenaltyThreshold int64   `yaml:"size_penalty_threshold"`
	SizePenaltyMax       float64 `yaml:"size_penalty_max"`
}

// DefaultWeights returns the tuned default weights.
func DefaultWeights() Weights {
	return Weights{
		Readme:               1000,
		HighPriority:         500,
		HighPriorityMaxDepth: 1,
		MediumPriority:       200,
		EntryPoint:           150,
		ConfigExtension:      60,
		SourceExtension:      40,
		OtherExtension:       5,
		Test:                 20,
		DepthPenaltyPerLevel: 3,
		DepthPenaltyMax:      15,
		SizePenaltyThreshold: 20000,
		SizePenaltyMax:       4,
	}
}

var (
	errReadmeNotDominant = errors.New("readme weight must exceed every other bonus combined")
	errPenaltyTooLarge   = errors.New("depth and size penalties combined must stay below the smallest gap between bonus tiers")
	errNegativeWeight    = errors.New("weights must not be negative")
)

// Validate checks the ordering guarantees the scorer relies on.
func (weights Weights) Validate() error {
	values := []float64{
		weights.Readme, weights.HighPriority, weights.MediumPriority, weights.EntryPoint,
		weights.ConfigExtension, weights.SourceExtension, weights.OtherExtension, weights.Test,
		weights.DepthPenaltyPerLevel, weights.DepthPenaltyMax, weights.SizePenaltyMax,
	}
	for _, value := range values {
		if value < 0 {
			return errNegativeWeight
		}
	}
	if weights.SizePenaltyThreshold < 0 || weights.HighPriorityMaxDepth < 0 {
		return errNegativeWeight
	}

	strongestExtension := weights.ConfigExtension
	if weights.SourceExtension > strongestExtension {
		strongestExtension = weights.SourceExtension
	}
	if weights.OtherExtension > strongestExtension {
		strongestExtension = weights.OtherExtension
	}
	others := weights.HighPriority + weights.MediumPriority + weights.EntryPoint + strongestExtension + weights.Test
	if weights.Readme <= others {
		return errReadmeNotDominant
	}

	tiers := []float64{
		weights.Readme, weights.HighPriority, weights.MediumPriority, weights.EntryPoint,
		weights.ConfigExtension, weights.SourceExtension, weights.OtherExtension,
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(tiers)))
	smallestGap := -1.0
	for index := 1; index < len(tiers); index++ {
		gap := tiers[index-1] - tiers[index]
		if gap <= 0 {
			continue
		}
		if smallestGap < 0 || gap < smallestGap {
			smallestGap = gap
		}
	}
	if smallestGap > 0 && weights.DepthPenaltyMax+weights.SizePenaltyMax >= smallestGap {
		return errPenaltyTooLarge
	}
	return nil
}

// RuleSet holds the filter and priority tables.
// Patterns containing a slash are matched against the whole path segment by segment and
// a trailing slash matches everything beneath that directory; other patterns match the
// base name. Glob syntax follows path.Match and priority matching is case-insensitive.
type RuleSet struct {
	ExcludedDirectories []string
	BinaryExtensions    []string
	LockFiles           []string
	MaxFileSize         int64
	ReadmePattern       string
	HighPriority        []string
	MediumPriority      []string
	EntryPointStems     []string
	ConfigExtensions    []string
	SourceExtensions    []string
	TestMarkers         []string
	Weights             Weights
}

// DefaultRuleSet returns the built-in tables.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		ExcludedDirectories: []string{
			".git", ".hg", ".svn", "node_modules", "bower_components", "jspm_packages", "vendor",
			"__pycache__", ".venv", "venv", "env", ".tox", ".nox", ".mypy_cache", ".pytest_cache",
			".ruff_cache", "*.egg-info", ".eggs", "site-packages", "dist", "build", "target", "obj", ".next", ".nuxt", ".svelte-kit", ".turbo", ".parcel-cache", ".cache",
			"coverage", ".nyc_output", ".gradle", ".idea", ".vscode", ".vs", ".terraform",
			"Pods", "DerivedData", ".dart_tool", "_build", ".stack-work", "elm-stuff",
		},
		BinaryExtensions: []string{
			".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".icns", ".svg", ".webp", ".tif", ".tiff", ".psd", ".ai",
			".woff", ".woff2", ".ttf", ".otf", ".eot",
			".zip", ".tar", ".gz", ".tgz", ".bz2", ".xz", ".7z", ".rar", ".zst", ".jar", ".war", ".ear", ".whl", ".nupkg",
			".exe", ".dll", ".so", ".dylib", ".a", ".lib", ".o", ".obj", ".class", ".pyc", ".pyo", ".pyd", ".wasm", ".bin", ".dat",
			".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".odt", ".ods", ".odp", ".epub",
			".mp3", ".mp4", ".wav", ".avi", ".mov", ".mkv", ".flac", ".ogg", ".webm", ".m4a", ".aac",
			".db", ".sqlite", ".sqlite3", ".pkl", ".npy", ".npz", ".h5", ".onnx", ".pt", ".ckpt", ".parquet",
			".map", ".lockb",
		},
		LockFiles: []string{
			"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "npm-shrinkwrap.json", "bun.lockb",
			"poetry.lock", "pipfile.lock", "uv.lock", "pdm.lock", "cargo.lock", "composer.lock",
			"gemfile.lock", "go.sum", "mix.lock", "flake.lock", "podfile.lock", "pubspec.lock",
			"packages.lock.json", "gradle.lockfile", "deno.lock",
		},
		MaxFileSize:   DefaultMaxFileSize,
		ReadmePattern: defaultReadmePattern,
		HighPriority: []string{
			"package.json", "pyproject.toml", "setup.py", "setup.cfg", "requirements.txt", "requirements-dev.txt",
			"pipfile", "environment.yml", "go.mod", "cargo.toml", "pom.xml", "build.gradle", "build.gradle.kts",
			"settings.gradle", "gemfile", "*.gemspec", "composer.json", "mix.exs", "package.swift", "pubspec.yaml",
			"deno.json", "project.clj", "build.sbt", "*.csproj", "*.cabal", "cmakelists.txt", "makefile",
			"dockerfile", "docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml",
			".env.example", ".env.sample", ".env.template", "procfile", "vercel.json", "netlify.toml", "fly.toml",
			"app.yaml", "serverless.yml", "chart.yaml", "kustomization.yaml", "skaffold.yaml",
		},
		MediumPriority: []string{
			".github/workflows/", ".circleci/", ".gitlab-ci.yml", ".travis.yml", "jenkinsfile", "azure-pipelines.yml",
			"tox.ini", "pytest.ini", "noxfile.py", "conftest.py", "jest.config.*", "vitest.config.*", "vite.config.*",
			"webpack.config.*", "babel.config.*", "tsconfig.json", ".eslintrc*", ".pre-commit-config.yaml",
			"contributing.md", "changelog.md", "changes.md", "history.md", "license", "license.*", "copying",
			"architecture.md", "security.md", "mkdocs.yml", "docs/index.md",
		},
		EntryPointStems: []string{
			"main", "app", "index", "server", "cli", "__main__", "manage", "run", "program", "startup", "wsgi", "asgi",
		},
		ConfigExtensions: []string{
			".json", ".jsonc", ".yaml", ".yml", ".toml", ".ini", ".cfg", ".conf", ".xml", ".properties", ".env",
			".hcl", ".tf", ".nix", ".md", ".mdx", ".rst", ".adoc",
		},
		SourceExtensions: []string{
			".go", ".py", ".js", ".mjs", ".cjs", ".ts", ".tsx", ".jsx", ".rs", ".java", ".kt", ".kts", ".scala",
			".rb", ".php", ".c", ".h", ".cc", ".cpp", ".hpp", ".cs", ".fs", ".swift", ".m", ".mm", ".sh", ".bash",
			".zsh", ".ps1", ".lua", ".dart", ".ex", ".exs", ".erl", ".hs", ".ml", ".clj", ".r", ".jl", ".pl",
			".sql", ".vue", ".svelte", ".zig", ".nim", ".groovy", ".gradle", ".proto", ".graphql", ".html", ".css", ".scss",
		},
		TestMarkers: []string{"test", ".spec.", "_spec."},
		Weights:     DefaultWeights(),
	}
}

type ruleFile struct {
	ExcludedDirectories []string `yaml:"excluded_directories"`
	BinaryExtensions    []string `yaml:"binary_extensions"`
	LockFiles           []string `yaml:"lock_files"`
	MaxFileSize         *int64   `yaml:"max_file_size"`
	ReadmePattern       string   `yaml:"readme_pattern"`
	HighPriority        []string `yaml:"high_priority"`
	MediumPriority      []string `yaml:"medium_priority"`
	EntryPointStems     []string `yaml:"entry_point_stems"`
	ConfigExtensions    []string `yaml:"config_extensions"`
	SourceExtensions    []string `yaml:"source_extensions"`
	TestMarkers         []string `yaml:"test_markers"`
	Weights             *Weights `yaml:"weights"`
}

// LoadRuleSet reads a YAML rules file and overlays it on base.
// Lists present in the file replace the corresponding base list wholesale; weights are
// overlaid field by field.
func LoadRuleSet(path string, base RuleSet) (RuleSet, error) {
	if strings.TrimSpace(path) == "" {
		return base, nil
	}
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return RuleSet{}, fmt.Errorf("read rules from %s: %w", path, readErr)
	}
	baseWeights := base.Weights
	raw := ruleFile{Weights: &baseWeights}
	if unmarshalErr := yaml.Unmarshal(data, &raw); unmarshalErr != nil {
		return RuleSet{}, fmt.Errorf("parse rules from %s: %w", path, unmarshalErr)
	}
	merged := base.merge(raw)
	if validationErr := merged.Validate(); validationErr != nil {
		return RuleSet{}, fmt.Errorf("rules from %s: %w", path, validationErr)
	}
	return merged, nil
}

// Validate reports whether the rule set can be compiled and scored safely.
func (ruleSet RuleSet) Validate() error {
	if ruleSet.MaxFileSize <= 0 {
		return errors.New("max file size must be positive")
	}
	if _, compileErr := regexp.Compile(ruleSet.ReadmePattern); compileErr != nil {
		return fmt.Errorf("readme pattern: %w", compileErr)
	}
	return ruleSet.Weights.Validate()
}

func (ruleSet RuleSet) merge(override ruleFile) RuleSet {
	result := ruleSet
	result.ExcludedDirectories = overrideList(result.ExcludedDirectories, override.ExcludedDirectories)
	result.BinaryExtensions = overrideList(result.BinaryExtensions, override.BinaryExtensions)
	result.LockFiles = overrideList(result.LockFiles, override.LockFiles)
	result.HighPriority = overrideList(result.HighPriority, override.HighPriority)
	result.MediumPriority = overrideList(result.MediumPriority, override.MediumPriority)
	result.EntryPointStems = overrideList(result.EntryPointStems, override.EntryPointStems)
	result.ConfigExtensions = overrideList(result.ConfigExtensions, override.ConfigExtensions)
	result.SourceExtensions = overrideList(result.SourceExtensions, override.SourceExtensions)
	result.TestMarkers = overrideList(result.TestMarkers, override.TestMarkers)
	if override.MaxFileSize != nil {
		result.MaxFileSize = *override.MaxFileSize
	}
	if override.ReadmePattern != "" {
		result.ReadmePattern = override.ReadmePattern
	}
	if override.Weights != nil {
		result.Weights = *override.Weights
	}
	return result
}

func overrideList(current []string, override []string) []string {
	if len(override) == 0 {
		return current
	}
	return append([]string{}, override...)
}
