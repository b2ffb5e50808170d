package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Local runs workspace operations on the host filesystem and shell.
type Local struct {
	logger *slog.Logger
}

// NewLocal returns a Local executor. A nil logger discards output.
func NewLocal(logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Local{logger: logger}
}

var _ Executor = (*Local)(nil)

func (l *Local) ReadFile(ctx context.Context, workspacePath, path string, offset, limit *int) (*ReadResult, error) {
	root, err := CanonicalizeWorkspace(workspacePath)
	if err != nil {
		return nil, err
	}
	resolved, err := ResolvePath(root, path, false)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotAFile
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	lines := textLines(string(data))
	total := len(lines)

	start := 0
	if offset != nil {
		start = max(*offset, 0)
	}
	start = min(start, total)

	n := DefaultReadLimit
	if limit != nil {
		n = *limit
	}
	n = max(n, 1)
	end := min(start+n, total)

	return &ReadResult{
		Path:       resolved,
		Content:    strings.Join(lines[start:end], "\n"),
		StartLine:  start,
		EndLine:    end,
		TotalLines: total,
		Truncated:  end < total,
	}, nil
}

func (l *Local) WriteFile(ctx context.Context, workspacePath, path, content string, createDirs bool) (*WriteResult, error) {
	root, err := CanonicalizeWorkspace(workspacePath)
	if err != nil {
		return nil, err
	}
	resolved, err := ResolvePath(root, path, true)
	if err != nil {
		return nil, err
	}

	parent := filepath.Dir(resolved)
	if createDirs {
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return nil, fmt.Errorf("create directories for %s: %w", path, err)
		}
	} else if info, err := os.Stat(parent); err != nil || !info.IsDir() {
		return nil, ErrParentNotFound
	}

	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	l.logger.Debug("wrote file", "path", resolved, "bytes", len(content))
	return &WriteResult{Path: resolved, BytesWritten: len(content)}, nil
}

func (l *Local) DeleteFile(ctx context.Context, workspacePath, path string, allowMissing *bool) (*DeleteResult, error) {
	missingOK := true
	if allowMissing != nil {
		missingOK = *allowMissing
	}

	root, err := CanonicalizeWorkspace(workspacePath)
	if err != nil {
		return nil, err
	}
	resolved, err := ResolvePath(root, path, missingOK)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if errors.Is(err, fs.ErrNotExist) {
		return &DeleteResult{Path: resolved, Deleted: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotAFile
	}
	if err := os.Remove(resolved); err != nil {
		return nil, fmt.Errorf("delete %s: %w", path, err)
	}
	l.logger.Debug("deleted file", "path", resolved)
	return &DeleteResult{Path: resolved, Deleted: true}, nil
}

func (l *Local) RunCommand(ctx context.Context, workspacePath, command string, workdir *string, timeoutMs *int) (*CommandResult, error) {
	root, err := CanonicalizeWorkspace(workspacePath)
	if err != nil {
		return nil, err
	}
	dir, err := ResolveWorkdir(root, workdir)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(ClampTimeout(timeoutMs)) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := shellCommand(runCtx, command)
	cmd.Dir = dir
	cmd.Env = filteredEnviron()
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(runErr, &exitErr):
			exitCode = exitErr.ExitCode()
		case timedOut:
			exitCode = -1
		default:
			return nil, fmt.Errorf("run command: %w", runErr)
		}
	}
	// Killed by a signal has no exit status.
	if timedOut && exitCode < 0 {
		exitCode = TimeoutExitCode
	}

	l.logger.Debug("ran command",
		"command", command,
		"workdir", dir,
		"exit_code", exitCode,
		"timed_out", timedOut,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &CommandResult{
		Command:  command,
		Workdir:  dir,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: timedOut,
	}, nil
}

// textLines splits on "\n", drops one trailing empty line and strips a
// trailing "\r" from each line.
func textLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
