package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"github.com/martinemde/kodit/agentloop"
	"github.com/martinemde/kodit/diff"
	"github.com/martinemde/kodit/metrics"
	"github.com/martinemde/kodit/question"
	"github.com/martinemde/kodit/storage"
	"github.com/martinemde/kodit/unifiedllm"
	"github.com/martinemde/kodit/workspace"
)

func runCommand(ctx context.Context, args []string) error {
	fs := newFlagSet(commandByName("run"))
	if err := fs.Parse(args); err != nil {
		return err
	}
	env, err := loadEnvironment(fs)
	if err != nil {
		return err
	}
	cfg, logger := env.cfg, env.logger

	prompt := strings.Join(fs.Args(), " ")
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if prompt == "" && !interactive {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read prompt: %w", err)
		}
		prompt = string(data)
	}
	if strings.TrimSpace(prompt) == "" {
		return errors.New("no prompt given")
	}
	if cfg.Model == "" {
		return errors.New("no model configured: pass --model or set model in the config file")
	}

	preset, err := env.preset()
	if err != nil {
		return err
	}
	key, err := env.apiKey(preset)
	if err != nil {
		return err
	}
	adapter, err := preset.CreateModel(key, cfg.Model)
	if err != nil {
		return err
	}
	retry := unifiedllm.DefaultRetryPolicy()
	retry.OnRetry = func(err error, attempt int, delay time.Duration) {
		logger.Warn("retrying model stream", "attempt", attempt, "delay", delay, "error", err)
	}
	client := unifiedllm.NewClient(
		unifiedllm.WithProvider(preset.ID(), adapter),
		unifiedllm.WithDefaultProvider(preset.ID()),
		unifiedllm.WithStreamMiddleware(
			unifiedllm.RetryStreamMiddleware(retry),
			unifiedllm.LoggingStreamMiddleware(logger),
		),
	)
	defer client.Close()

	store, err := storage.OpenSQLite(cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	recorder := metrics.Nop()
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg, logger); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	threadID := cfg.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}
	fmt.Fprintf(os.Stderr, "thread %s\n", threadID)

	var bridgeOpts []question.BridgeOption
	if cfg.StrictQuestions {
		bridgeOpts = append(bridgeOpts, question.WithStrict())
	}
	bridge := question.NewBridge(bridgeOpts...)
	stopAnswering := answerQuestions(ctx, bridge, os.Stdin, os.Stderr, interactive)
	defer stopAnswering()

	sess := agentloop.NewSession(agentloop.SessionConfig{
		Provider:         preset.ID(),
		Model:            cfg.Model,
		WorkspacePath:    cfg.Workspace,
		ThreadID:         threadID,
		StepBudget:       cfg.StepBudget,
		ToolOutputLimits: cfg.MaxToolOutputChars,
		// The client's middleware already retries opening a stream.
		Retry: &unifiedllm.RetryPolicy{},
	}, agentloop.Dependencies{
		Client:    client,
		Executor:  workspace.NewLocal(logger),
		Diffs:     diff.StorageRecorder{Store: store, ThreadID: threadID},
		Messages:  store,
		Questions: bridge,
		Metrics:   recorder,
		Logger:    logger,
	})
	defer sess.Close()

	out := newTurnPrinter(os.Stdout, os.Stderr)
	_, err = sess.Submit(ctx, prompt, out.callbacks())
	out.finish()
	if err != nil {
		return err
	}

	records, err := store.List(ctx, threadID)
	if err != nil {
		return err
	}
	stats := diff.BuildStats(records, diff.NewDiffer(cfg.DiffAlgorithm))
	if stats.UnstagedCount > 0 {
		fmt.Fprintf(os.Stderr, "%d file(s) changed, +%d -%d (kodit diff --thread %s)\n",
			stats.UnstagedCount, stats.TotalAdditions, stats.TotalDeletions, threadID)
	}
	return nil
}
