// Package workspace executes file and shell operations inside a project
// directory. Every path is resolved against the workspace root and must not
// escape it.
package workspace

import "context"

const (
	// DefaultReadLimit is the number of lines ReadFile returns when no
	// limit is given.
	DefaultReadLimit = 2000

	DefaultCommandTimeoutMs = 120_000
	MinCommandTimeoutMs     = 100
	MaxCommandTimeoutMs     = 300_000

	// TimeoutExitCode is reported when a command is killed for running too
	// long and has no exit status of its own.
	TimeoutExitCode = 124
)

// ReadResult is a window of lines from a text file. StartLine is 0-based;
// EndLine is exclusive.
type ReadResult struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	StartLine  int    `json:"startLine"`
	EndLine    int    `json:"endLine"`
	TotalLines int    `json:"totalLines"`
	Truncated  bool   `json:"truncated"`
}

// WriteResult reports a completed write.
type WriteResult struct {
	Path         string `json:"path"`
	BytesWritten int    `json:"bytesWritten"`
}

// DeleteResult reports a delete. Deleted is false when the file was
// already missing.
type DeleteResult struct {
	Path    string `json:"path"`
	Deleted bool   `json:"deleted"`
}

// CommandResult is the outcome of a shell command.
type CommandResult struct {
	Command  string `json:"command"`
	Workdir  string `json:"workdir"`
	ExitCode int    `json:"exitCode"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	TimedOut bool   `json:"timedOut"`
}

// Executor performs workspace operations. Implementations must keep every
// resolved path inside workspacePath.
type Executor interface {
	ReadFile(ctx context.Context, workspacePath, path string, offset, limit *int) (*ReadResult, error)
	WriteFile(ctx context.Context, workspacePath, path, content string, createDirs bool) (*WriteResult, error)
	DeleteFile(ctx context.Context, workspacePath, path string, allowMissing *bool) (*DeleteResult, error)
	RunCommand(ctx context.Context, workspacePath, command string, workdir *string, timeoutMs *int) (*CommandResult, error)
}

// ClampTimeout applies the default and bounds to a command timeout in
// milliseconds.
func ClampTimeout(timeoutMs *int) int {
	t := DefaultCommandTimeoutMs
	if timeoutMs != nil {
		t = *timeoutMs
	}
	return min(max(t, MinCommandTimeoutMs), MaxCommandTimeoutMs)
}
