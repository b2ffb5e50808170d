package config

import (
	"github.com/spf13/pflag"
)

// RegisterFlags defines the command-line overrides on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.StringP("provider", "p", d.Provider, "model provider (openrouter, openai, gemini, anthropic)")
	fs.StringP("model", "m", d.Model, "model id")
	fs.String("api-key", "", "provider API key")
	fs.StringP("workspace", "w", "", "workspace directory (default: current directory)")
	fs.Int("step-budget", d.StepBudget, "maximum model calls per turn")
	fs.String("db", "", "SQLite database path (default: ~/.kodit/kodit.db)")
	fs.StringP("thread", "t", "", "thread id to continue")
	fs.String("diff-algorithm", d.DiffAlgorithm, "line diff algorithm (lcs or myers)")
	fs.Bool("strict-questions", false, "reject a second question while one is pending")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("log-format", d.Log.Format, "log format (text or json)")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
}

// ApplyFlags overrides cfg with every flag the user set explicitly.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	stringFlags := map[string]*string{
		"provider":       &c.Provider,
		"model":          &c.Model,
		"api-key":        &c.APIKey,
		"workspace":      &c.Workspace,
		"db":             &c.DBPath,
		"thread":         &c.ThreadID,
		"diff-algorithm": &c.DiffAlgorithm,
		"log-level":      &c.Log.Level,
		"log-format":     &c.Log.Format,
		"metrics-addr":   &c.MetricsAddr,
	}
	for name, dst := range stringFlags {
		if fs.Lookup(name) == nil || !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = v
	}

	if fs.Lookup("step-budget") != nil && fs.Changed("step-budget") {
		v, err := fs.GetInt("step-budget")
		if err != nil {
			return err
		}
		c.StepBudget = v
	}
	if fs.Lookup("strict-questions") != nil && fs.Changed("strict-questions") {
		v, err := fs.GetBool("strict-questions")
		if err != nil {
			return err
		}
		c.StrictQuestions = v
	}

	c.DBPath = expandHome(c.DBPath)
	c.Workspace = expandHome(c.Workspace)
	return nil
}
