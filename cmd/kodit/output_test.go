package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/martinemde/kodit/agentloop"
	"github.com/martinemde/kodit/diff"
	"github.com/martinemde/kodit/todo"
)

func TestTurnPrinter(t *testing.T) {
	var out, status bytes.Buffer
	p := newTurnPrinter(&out, &status)
	cb := p.callbacks()

	cb.OnText("Fixing")
	cb.OnText("Fixing the bug")
	cb.OnToolCalls([]agentloop.ToolCall{{ID: "1", Name: "Edit", Status: agentloop.ToolCallPending}})
	cb.OnToolCalls([]agentloop.ToolCall{{ID: "1", Name: "Edited main.go", Status: agentloop.ToolCallCompleted}})
	cb.OnToolCalls([]agentloop.ToolCall{
		{ID: "1", Name: "Edited main.go", Status: agentloop.ToolCallCompleted},
		{ID: "2", Name: "Ran make", Status: agentloop.ToolCallFailed, Result: "exit 2"},
	})
	cb.OnTodos([]todo.Item{{ID: "a", Content: "x", Status: todo.StatusCompleted}})
	cb.OnText("Fixing the bug.\nDone")
	p.finish()

	if got := out.String(); got != "Fixing the bug\n.\nDone\n" {
		t.Errorf("stdout = %q", got)
	}
	want := "  ✓ Edited main.go\n  ✗ Ran make: exit 2\n  todos: 1/1 completed, 0 in progress\n"
	if got := status.String(); got != want {
		t.Errorf("status = %q, want %q", got, want)
	}
}

func TestPrintStats(t *testing.T) {
	old, updated := "a\nb\n", "a\nc\n"
	records := []diff.Record{{Files: []diff.SnapshotChange{{FilePath: "f.txt", OldContent: &old, NewContent: &updated}}}}
	var buf bytes.Buffer
	printStats(&buf, diff.BuildStats(records, diff.NewDiffer("lcs")))

	got := buf.String()
	for _, want := range []string{"f.txt  +1 -1", "@@ -1 +1 @@", "-b", "+c", "1 file(s) changed, +1 -1"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestExecuteUnknownCommand(t *testing.T) {
	if err := execute(context.Background(), []string{"frobnicate"}); err == nil || !strings.Contains(err.Error(), "frobnicate") {
		t.Errorf("expected unknown command error, got %v", err)
	}
	if err := execute(context.Background(), nil); err == nil {
		t.Error("expected an error without a command")
	}
}

func TestCommandsHaveUsage(t *testing.T) {
	for _, name := range []string{"run", "diff", "revert", "models"} {
		c := commandByName(name)
		if c.run == nil || c.summary == "" {
			t.Errorf("command %q is not registered", name)
		}
		fs := newFlagSet(c)
		if fs.Lookup("config") == nil || fs.Lookup("thread") == nil {
			t.Errorf("%s: shared flags missing", name)
		}
	}
}
