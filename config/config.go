// Package config loads kodit settings from defaults, a YAML file, KODIT_*
// environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/martinemde/kodit/providers"
)

const (
	DefaultStepBudget    = 20
	DefaultDiffAlgorithm = "lcs"
	EnvPrefix            = "KODIT_"
)

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Config holds every runtime setting.
type Config struct {
	Provider           string         `yaml:"provider" env:"PROVIDER"`
	Model              string         `yaml:"model" env:"MODEL"`
	APIKey             string         `yaml:"api_key" env:"API_KEY"`
	Workspace          string         `yaml:"workspace" env:"WORKSPACE"`
	StepBudget         int            `yaml:"step_budget" env:"STEP_BUDGET"`
	DBPath             string         `yaml:"db_path" env:"DB_PATH"`
	ThreadID           string         `yaml:"thread_id" env:"THREAD_ID"`
	DiffAlgorithm      string         `yaml:"diff_algorithm" env:"DIFF_ALGORITHM"`
	StrictQuestions    bool           `yaml:"strict_questions" env:"STRICT_QUESTIONS"`
	Log                LogConfig      `yaml:"log" envPrefix:"LOG_"`
	MetricsAddr        string         `yaml:"metrics_addr" env:"METRICS_ADDR"`
	MaxToolOutputChars map[string]int `yaml:"max_tool_output_chars"`
}

// Default returns the built-in settings.
func Default() Config {
	wd, _ := os.Getwd()
	return Config{
		Provider:      providers.DefaultProviderID,
		Workspace:     wd,
		StepBudget:    DefaultStepBudget,
		DBPath:        filepath.Join(homeDir(), ".kodit", "kodit.db"),
		DiffAlgorithm: DefaultDiffAlgorithm,
		Log:           LogConfig{Level: "info", Format: "text"},
	}
}

// DefaultPath is where Load looks for a config file when none is named.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".kodit", "config.yaml")
}

// Load applies the YAML file at path and then KODIT_* environment
// variables over the defaults. A missing file is an error only when
// required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist) && !required:
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	cfg.DBPath = expandHome(cfg.DBPath)
	cfg.Workspace = expandHome(cfg.Workspace)
	return cfg, nil
}

// ResolveAPIKey returns the configured key, falling back to the provider's
// conventional environment variables.
func (c Config) ResolveAPIKey(getenv func(string) string) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	for _, name := range providerKeyVars[c.Provider] {
		if v := getenv(name); v != "" {
			return v
		}
	}
	return ""
}

var providerKeyVars = map[string][]string{
	"openrouter": {"OPENROUTER_API_KEY"},
	"openai":     {"OPENAI_API_KEY"},
	"gemini":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"anthropic":  {"ANTHROPIC_API_KEY"},
}

// ToolOutputLimit returns the configured character limit for tool, or 0
// when the tool's default applies.
func (c Config) ToolOutputLimit(tool string) int {
	return c.MaxToolOutputChars[tool]
}

// Validate reports settings the runtime cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.StepBudget <= 0 {
		errs = append(errs, fmt.Errorf("step_budget must be greater than 0, got %d", c.StepBudget))
	}
	if !slices.Contains([]string{"lcs", "myers"}, strings.ToLower(c.DiffAlgorithm)) {
		errs = append(errs, fmt.Errorf("unknown diff_algorithm %q (want lcs or myers)", c.DiffAlgorithm))
	}
	if !slices.Contains(providers.IDs(), c.Provider) {
		errs = append(errs, fmt.Errorf("unknown provider %q (want one of %s)", c.Provider, strings.Join(providers.IDs(), ", ")))
	}
	if c.Workspace == "" {
		errs = append(errs, errors.New("workspace is required"))
	}
	for tool, limit := range c.MaxToolOutputChars {
		if limit <= 0 {
			errs = append(errs, fmt.Errorf("max_tool_output_chars.%s must be greater than 0", tool))
		}
	}
	return errors.Join(errs...)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

func expandHome(p string) string {
	if p == "~" {
		return homeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return p
}
