package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/martinemde/kodit/diff"
	"github.com/martinemde/kodit/storage"
	"github.com/martinemde/kodit/workspace"
)

func diffCommand(ctx context.Context, args []string) error {
	fs := newFlagSet(commandByName("diff"))
	asJSON := fs.Bool("json", false, "print the stats as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	env, err := loadEnvironment(fs)
	if err != nil {
		return err
	}
	if env.cfg.ThreadID == "" {
		return errors.New("--thread is required")
	}

	store, err := storage.OpenSQLite(env.cfg.DBPath, env.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(ctx, env.cfg.ThreadID)
	if err != nil {
		return err
	}
	stats := diff.BuildStats(records, diff.NewDiffer(env.cfg.DiffAlgorithm))

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	printStats(os.Stdout, stats)
	return nil
}

func revertCommand(ctx context.Context, args []string) error {
	fs := newFlagSet(commandByName("revert"))
	if err := fs.Parse(args); err != nil {
		return err
	}
	env, err := loadEnvironment(fs)
	if err != nil {
		return err
	}
	if env.cfg.ThreadID == "" {
		return errors.New("--thread is required")
	}

	store, err := storage.OpenSQLite(env.cfg.DBPath, env.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	reverted, err := diff.RevertAll(ctx, store, workspace.NewLocal(env.logger), env.cfg.Workspace, env.cfg.ThreadID)
	for _, path := range reverted {
		fmt.Fprintf(os.Stdout, "reverted %s\n", path)
	}
	if err != nil {
		return err
	}
	if len(reverted) == 0 {
		fmt.Fprintln(os.Stdout, "nothing to revert")
	}
	return nil
}

func modelsCommand(ctx context.Context, args []string) error {
	fs := newFlagSet(commandByName("models"))
	if err := fs.Parse(args); err != nil {
		return err
	}
	env, err := loadEnvironment(fs)
	if err != nil {
		return err
	}

	preset, err := env.preset()
	if err != nil {
		return err
	}
	key, err := env.apiKey(preset)
	if err != nil {
		return err
	}
	models, err := preset.FetchModels(ctx, key)
	if err != nil {
		return err
	}
	for _, m := range models {
		if m.Name != "" && !strings.EqualFold(m.Name, m.ID) {
			fmt.Fprintf(os.Stdout, "%s\t%s\n", m.ID, m.Name)
		} else {
			fmt.Fprintln(os.Stdout, m.ID)
		}
	}
	return nil
}
