package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/martinemde/kodit/question"
	"github.com/martinemde/kodit/todo"
	"github.com/martinemde/kodit/unifiedllm"
	"github.com/martinemde/kodit/workspace"
)

// Tool names.
const (
	ToolReadFile  = "read_file"
	ToolEdit      = "edit"
	ToolShell     = "shell"
	ToolTodoWrite = "todo_write"
	ToolTodoRead  = "todo_read"
	ToolQuestion  = "question"
)

// Recoverable edit failures. They are reported to the model as
// EditResult{OK: false} rather than as tool errors.
var (
	ErrIdenticalStrings = errors.New("oldString and newString are identical — no change needed.")
	ErrNotFound         = errors.New("oldString not found in content")
	ErrAmbiguousMatch   = errors.New("oldString found multiple times and requires more code context to uniquely identify the intended match")
)

// DiffRecorder receives the before and after content of every successful
// edit.
type DiffRecorder interface {
	Record(ctx context.Context, path, oldContent, newContent string) error
}

// ToolContext is the per-session state the workspace tools close over.
type ToolContext struct {
	WorkspacePath string
	Executor      workspace.Executor
	Todos         *todo.Store
	Questions     *question.Bridge
	Diffs         DiffRecorder // optional
	ThreadID      string
	Logger        *slog.Logger
}

func (tc ToolContext) logger() *slog.Logger {
	if tc.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return tc.Logger
}

// RegisterWorkspaceTools registers read_file, edit, shell, todo_write,
// todo_read and question on reg.
func RegisterWorkspaceTools(reg *ToolRegistry, tc ToolContext) {
	registerReadFile(reg, tc)
	registerEdit(reg, tc)
	registerShell(reg, tc)
	registerTodoWrite(reg, tc)
	registerTodoRead(reg, tc)
	registerQuestion(reg, tc)
}

type readFileArgs struct {
	FilePath string `json:"filePath" jsonschema_description:"The path to the file to read"`
	Offset   *int   `json:"offset,omitempty" jsonschema_description:"The line number to start reading from (0-based)"`
	Limit    *int   `json:"limit,omitempty" jsonschema_description:"The number of lines to read (defaults to 2000)"`
}

func registerReadFile(reg *ToolRegistry, tc ToolContext) {
	reg.Register(RegisteredTool{
		Definition: unifiedllm.ToolDefinition{
			Name: ToolReadFile,
			Description: "Read a text file from the workspace. Returns a window of lines with startLine, endLine, " +
				"totalLines and a truncated flag. Use offset and limit to page through large files.",
			Parameters: inputSchema[readFileArgs](),
		},
		Executor: func(ctx context.Context, arguments json.RawMessage) (any, error) {
			args, err := decodeArgs[readFileArgs](arguments)
			if err != nil {
				return nil, err
			}
			if args.FilePath == "" {
				return nil, fmt.Errorf("filePath is required")
			}
			return tc.Executor.ReadFile(ctx, tc.WorkspacePath, args.FilePath, args.Offset, args.Limit)
		},
	})
}

type editArgs struct {
	Path       string `json:"path" jsonschema:"minLength=1" jsonschema_description:"The relative path to the file to edit"`
	OldString  string `json:"oldString" jsonschema_description:"The exact string to find in the file"`
	NewString  string `json:"newString" jsonschema_description:"The string to replace oldString with (must be different from oldString)"`
	ReplaceAll bool   `json:"replaceAll,omitempty" jsonschema_description:"Replace all occurrences of oldString in the file (default false)"`
}

// EditResult is the edit tool's output.
type EditResult struct {
	OK    bool   `json:"ok"`
	Path  string `json:"path,omitempty"`
	Error string `json:"error,omitempty"`
}

func registerEdit(reg *ToolRegistry, tc ToolContext) {
	reg.Register(RegisteredTool{
		Definition: unifiedllm.ToolDefinition{
			Name: ToolEdit,
			Description: "Replace an exact string in a workspace file. oldString must match exactly once unless " +
				"replaceAll is true; include enough surrounding lines to make the match unique. " +
				"Always read the file before editing it.",
			Parameters: inputSchema[editArgs](),
		},
		Executor: func(ctx context.Context, arguments json.RawMessage) (any, error) {
			args, err := decodeArgs[editArgs](arguments)
			if err != nil {
				return nil, err
			}
			if args.Path == "" {
				return nil, fmt.Errorf("path is required")
			}
			return editFile(ctx, tc, args)
		},
	})
}

func editFile(ctx context.Context, tc ToolContext, args editArgs) (EditResult, error) {
	if args.OldString == args.NewString {
		return EditResult{Error: ErrIdenticalStrings.Error()}, nil
	}

	read, err := tc.Executor.ReadFile(ctx, tc.WorkspacePath, args.Path, nil, nil)
	if err != nil {
		return EditResult{}, fmt.Errorf("read %s: %w", args.Path, err)
	}
	if read.Truncated {
		offset, limit := 0, read.TotalLines+1
		read, err = tc.Executor.ReadFile(ctx, tc.WorkspacePath, args.Path, &offset, &limit)
		if err != nil {
			return EditResult{}, fmt.Errorf("read %s: %w", args.Path, err)
		}
	}

	content := normalizeNewlines(read.Content)
	updated, err := replaceString(content, normalizeNewlines(args.OldString), normalizeNewlines(args.NewString), args.ReplaceAll)
	if err != nil {
		return EditResult{Error: err.Error()}, nil
	}

	if _, err := tc.Executor.WriteFile(ctx, tc.WorkspacePath, args.Path, updated, false); err != nil {
		return EditResult{}, fmt.Errorf("write %s: %w", args.Path, err)
	}

	if tc.Diffs != nil {
		if err := tc.Diffs.Record(ctx, args.Path, content, updated); err != nil {
			tc.logger().Warn("failed to record diff", "thread_id", tc.ThreadID, "path", args.Path, "error", err)
		}
	}
	return EditResult{OK: true, Path: args.Path}, nil
}

// replaceString applies one edit to content. Without replaceAll the old
// string must occur exactly once.
func replaceString(content, oldString, newString string, replaceAll bool) (string, error) {
	if replaceAll {
		if !strings.Contains(content, oldString) {
			return "", ErrNotFound
		}
		return strings.ReplaceAll(content, oldString, newString), nil
	}

	first := strings.Index(content, oldString)
	if first < 0 {
		return "", ErrNotFound
	}
	if from := first + 1; from <= len(content) && strings.Contains(content[from:], oldString) {
		return "", ErrAmbiguousMatch
	}
	return content[:first] + newString + content[first+len(oldString):], nil
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

type shellArgs struct {
	Command string  `json:"command" jsonschema:"minLength=1" jsonschema_description:"The command to execute"`
	Workdir *string `json:"workdir,omitempty" jsonschema_description:"The working directory to run the command in, relative to the workspace. Use this instead of 'cd' commands."`
	Timeout *int    `json:"timeout,omitempty" jsonschema_description:"Optional timeout in milliseconds"`
}

func registerShell(reg *ToolRegistry, tc ToolContext) {
	reg.Register(RegisteredTool{
		Definition: unifiedllm.ToolDefinition{
			Name: ToolShell,
			Description: fmt.Sprintf("Run a shell command in the workspace and return exitCode, stdout, stderr "+
				"and timedOut. Commands must stay inside the workspace %s. The timeout defaults to %dms "+
				"and is capped at %dms; a timed out command reports exit code %d.",
				tc.WorkspacePath, workspace.DefaultCommandTimeoutMs, workspace.MaxCommandTimeoutMs, workspace.TimeoutExitCode),
			Parameters: inputSchema[shellArgs](),
		},
		Executor: func(ctx context.Context, arguments json.RawMessage) (any, error) {
			args, err := decodeArgs[shellArgs](arguments)
			if err != nil {
				return nil, err
			}
			if args.Command == "" {
				return nil, fmt.Errorf("command is required")
			}
			var workdir *string
			if args.Workdir != nil && *args.Workdir != "" {
				dir := filepath.Join(tc.WorkspacePath, *args.Workdir)
				workdir = &dir
			}
			return tc.Executor.RunCommand(ctx, tc.WorkspacePath, args.Command, workdir, args.Timeout)
		},
	})
}

// TodoResult is returned by todo_read and todo_write.
type TodoResult struct {
	Todos   []todo.Item `json:"todos"`
	Summary string      `json:"summary"`
}

type todoWriteArgs struct {
	Todos []todo.Item `json:"todos" jsonschema_description:"Full replacement TODO list"`
}

func registerTodoWrite(reg *ToolRegistry, tc ToolContext) {
	reg.Register(RegisteredTool{
		Definition: unifiedllm.ToolDefinition{
			Name: ToolTodoWrite,
			Description: "Replace the session TODO list. Send the full list every time; items not included are " +
				"removed. Keep at most one item in_progress.",
			Parameters: inputSchema[todoWriteArgs](),
		},
		Executor: func(_ context.Context, arguments json.RawMessage) (any, error) {
			args, err := decodeArgs[todoWriteArgs](arguments)
			if err != nil {
				return nil, err
			}
			if err := tc.Todos.Replace(args.Todos); err != nil {
				return nil, err
			}
			return TodoResult{Todos: tc.Todos.Get(), Summary: tc.Todos.Summary()}, nil
		},
	})
}

type todoReadArgs struct{}

func registerTodoRead(reg *ToolRegistry, tc ToolContext) {
	reg.Register(RegisteredTool{
		Definition: unifiedllm.ToolDefinition{
			Name:        ToolTodoRead,
			Description: "Read the current session TODO list and a progress summary.",
			Parameters:  inputSchema[todoReadArgs](),
		},
		Executor: func(_ context.Context, _ json.RawMessage) (any, error) {
			return TodoResult{Todos: tc.Todos.Get(), Summary: tc.Todos.Summary()}, nil
		},
	})
}

type questionArgs struct {
	Questions []question.Input `json:"questions" jsonschema:"minItems=1" jsonschema_description:"Questions to ask"`
}

// QuestionResult is the question tool's output.
type QuestionResult struct {
	Answers []question.Answer `json:"answers"`
}

func registerQuestion(reg *ToolRegistry, tc ToolContext) {
	reg.Register(RegisteredTool{
		Definition: unifiedllm.ToolDefinition{
			Name: ToolQuestion,
			Description: "Ask the user one or more clarifying questions and wait for the answers. Use it when " +
				"requirements are ambiguous or a decision needs the user's preference. Each question offers " +
				"options; the user may also type a custom answer unless custom is false.",
			Parameters: inputSchema[questionArgs](),
		},
		Executor: func(ctx context.Context, arguments json.RawMessage) (any, error) {
			args, err := decodeArgs[questionArgs](arguments)
			if err != nil {
				return nil, err
			}
			if len(args.Questions) == 0 {
				return nil, errors.New("questions must contain at least one question")
			}
			answers, err := tc.Questions.Ask(ctx, args.Questions)
			if err != nil {
				return nil, err
			}
			if answers == nil {
				answers = []question.Answer{}
			}
			return QuestionResult{Answers: answers}, nil
		},
	})
}
