// Package config holds the YAML-backed configuration for the agent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file the CLI looks for in the working directory.
const DefaultPath = "reagent.yaml"

// Config holds all agent configuration.
type Config struct {
	Profile      ProfileConfig      `yaml:"profile"`
	LLM          LLMConfig          `yaml:"llm"`
	Backend      BackendConfig      `yaml:"backend"`
	Parity       ParityConfig       `yaml:"parity"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Output       OutputConfig       `yaml:"output"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ProfileConfig describes project-specific patterns and paths for the
// reimplementation codebase being analyzed.
type ProfileConfig struct {
	// Regexes matching hook-install macros. Capture group 1 is the
	// function name, group 2 the hex address.
	HookPatterns []string `yaml:"hook_patterns"`
	// Substrings that identify stub calls into the legacy binary.
	StubPatterns []string `yaml:"stub_patterns"`
	// Markers that declare a function intentionally unimplemented.
	StubMarkers []string `yaml:"stub_markers"`
	// Prefix used to classify calls as legacy-binary stubs.
	StubCallPrefix string `yaml:"stub_call_prefix"`
	// Macro declaring the class a file's hooks belong to.
	ClassMacro string `yaml:"class_macro"`
	// Root directory of the C++ source tree.
	SourceRoot string `yaml:"source_root"`
	// File extensions to index.
	SourceExtensions []string `yaml:"source_extensions"`
	// Optional CSV of hooked functions.
	HooksCSV string `yaml:"hooks_csv"`
}

// LLMConfig configures the LLM provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // anthropic, openai, gemini
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"`
}

// BackendConfig configures the decompiler backend.
type BackendConfig struct {
	Type     string `yaml:"type"` // ghidra-bridge, stub
	CLIPath  string `yaml:"cli_path"`
	TimeoutS int    `yaml:"timeout_s"`
}

// ParityConfig configures static parity verification.
type ParityConfig struct {
	Enabled               bool   `yaml:"enabled"`
	CallCountWarnDiff     int    `yaml:"call_count_warn_diff"`
	InlineWrapperAutoskip bool   `yaml:"inline_wrapper_autoskip"`
	SemanticRulesFile     string `yaml:"semantic_rules_file"`
	ManualChecksFile      string `yaml:"manual_checks_file"`
	CacheDir              string `yaml:"cache_dir"`
	// Parallel Ghidra fetches during batch parity runs.
	FetchConcurrency int `yaml:"fetch_concurrency"`
	// Debounce window for --watch mode.
	WatchDebounce string `yaml:"watch_debounce"`
}

// OrchestratorConfig configures the reversal loop.
type OrchestratorConfig struct {
	MaxReviewRounds      int `yaml:"max_review_rounds"`
	MaxFunctionsPerClass int `yaml:"max_functions_per_class"`
}

// OutputConfig configures output and reporting paths.
type OutputConfig struct {
	ReportDir  string `yaml:"report_dir"`
	LogDir     string `yaml:"log_dir"`
	ProgressDB string `yaml:"progress_db"`
	Format     string `yaml:"format"` // text, json, markdown
}

// LoggingConfig configures category file logging.
type LoggingConfig struct {
	DebugMode bool   `yaml:"debug_mode"`
	Level     string `yaml:"level"`
}

// DefaultConfig returns the default configuration, tuned for the
// gta-reversed style of incremental reimplementation project.
func DefaultConfig() *Config {
	return &Config{
		Profile: ProfileConfig{
			HookPatterns: []string{
				`RH_ScopedInstall\s*\(\s*(\w+)\s*,\s*(0x[0-9A-Fa-f]+)`,
				`RH_ScopedVirtualInstall\s*\(\s*(\w+)\s*,\s*(0x[0-9A-Fa-f]+)`,
			},
			StubPatterns:     []string{`plugin::Call`},
			StubMarkers:      []string{"NOTSA_UNREACHABLE"},
			StubCallPrefix:   "plugin::Call",
			ClassMacro:       "RH_ScopedClass",
			SourceRoot:       "source/game_sa",
			SourceExtensions: []string{".cpp", ".h", ".hpp"},
			HooksCSV:         "docs/hooks.csv",
		},
		LLM: LLMConfig{
			Provider:    "anthropic",
			Model:       "claude-sonnet-4-5-20250929",
			MaxTokens:   4096,
			Temperature: 0.0,
			Timeout:     "120s",
		},
		Backend: BackendConfig{
			Type:     "ghidra-bridge",
			CLIPath:  "ghidra",
			TimeoutS: 45,
		},
		Parity: ParityConfig{
			Enabled:           true,
			CallCountWarnDiff: 3,
			CacheDir:          ".reagent/parity-cache",
			FetchConcurrency:  4,
			WatchDebounce:     "500ms",
		},
		Orchestrator: OrchestratorConfig{
			MaxReviewRounds:      4,
			MaxFunctionsPerClass: 10,
		},
		Output: OutputConfig{
			ReportDir:  "reports/reagent",
			LogDir:     "reports/reagent/logs",
			ProgressDB: ".reagent/progress.db",
			Format:     "text",
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load loads configuration from a YAML file. Missing file returns defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides overlays REAGENT_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("REAGENT_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("REAGENT_LLM_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("REAGENT_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("REAGENT_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("REAGENT_BACKEND_CLI_PATH"); v != "" {
		c.Backend.CLIPath = v
	}
	if v := os.Getenv("REAGENT_BACKEND_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Backend.TimeoutS = n
		}
	}
	// Fall back to the provider's conventional key variable.
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "anthropic":
			c.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai", "openai-compat":
			c.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			c.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai", "openai-compat", "gemini":
	default:
		return fmt.Errorf("unknown llm provider: %q", c.LLM.Provider)
	}
	switch c.Backend.Type {
	case "ghidra-bridge", "ghidra", "stub":
	default:
		return fmt.Errorf("unknown backend type: %q", c.Backend.Type)
	}
	if c.Orchestrator.MaxReviewRounds < 1 {
		return fmt.Errorf("max_review_rounds must be >= 1, got %d", c.Orchestrator.MaxReviewRounds)
	}
	if c.Backend.TimeoutS < 1 {
		return fmt.Errorf("backend timeout_s must be >= 1, got %d", c.Backend.TimeoutS)
	}
	return nil
}
