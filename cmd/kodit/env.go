package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/martinemde/kodit/config"
	"github.com/martinemde/kodit/logging"
	"github.com/martinemde/kodit/providers"
	"github.com/martinemde/kodit/workspace"
)

// environment is the resolved configuration shared by every command.
type environment struct {
	cfg    config.Config
	logger *slog.Logger
}

func newFlagSet(c command) *pflag.FlagSet {
	fs := pflag.NewFlagSet(c.name, pflag.ContinueOnError)
	fs.String("config", "", "config file (default ~/.kodit/config.yaml)")
	config.RegisterFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kodit %s [flags] %s\n\n%s.\n\nFlags:\n", c.name, c.args, c.summary)
		fs.PrintDefaults()
	}
	return fs
}

func commandByName(name string) command {
	for _, c := range commands {
		if c.name == name {
			return c
		}
	}
	return command{name: name}
}

// loadEnvironment layers the config file, KODIT_* variables and the flags
// set on fs, in that order.
func loadEnvironment(fs *pflag.FlagSet) (*environment, error) {
	path, _ := fs.GetString("config")
	required := path != ""
	if path == "" {
		path = config.DefaultPath()
	}

	cfg, err := config.Load(path, required)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyFlags(fs); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ws, err := workspace.CanonicalizeWorkspace(cfg.Workspace)
	if err != nil {
		return nil, err
	}
	cfg.Workspace = ws

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	return &environment{cfg: cfg, logger: logger}, nil
}

// apiKey resolves the provider key from config or environment, prompting
// on the terminal when neither has one.
func (e *environment) apiKey(preset providers.Preset) (string, error) {
	key := e.cfg.ResolveAPIKey(os.Getenv)
	if key == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "%s API key: ", preset.Label())
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read API key: %w", err)
		}
		key = strings.TrimSpace(string(raw))
	}
	if key == "" {
		return "", fmt.Errorf("no API key for %s: pass --api-key or set KODIT_API_KEY", preset.ID())
	}
	if err := preset.ValidateAPIKey(key); err != nil {
		return "", err
	}
	e.logger.Debug("using API key", "provider", preset.ID(), "key", logging.RedactKey(key))
	return key, nil
}

func (e *environment) preset() (providers.Preset, error) {
	return providers.Default().Get(e.cfg.Provider)
}
