package agentloop

import (
	"context"
	"errors"
	"testing"

	"github.com/martinemde/kodit/todo"
)

func TestRuntimeToolCallLifecycle(t *testing.T) {
	var snapshots [][]ToolCall
	var texts []string
	rt := NewRuntime(nil, TurnCallbacks{
		OnText:      func(text string) { texts = append(texts, text) },
		OnToolCalls: func(calls []ToolCall) { snapshots = append(snapshots, calls) },
	}, nil, nil)

	input := map[string]any{"command": "go test ./..."}
	result, err := rt.Run(context.Background(), feed(
		Part{Type: PartTextDelta, Delta: "Running "},
		Part{Type: PartTextDelta, Delta: "tests"},
		Part{Type: PartToolInputStart, ToolCallID: "c1", ToolName: ToolShell},
		Part{Type: PartToolInputDelta, ToolCallID: "c1", Delta: `{"command":`},
		Part{Type: PartToolCall, ToolCallID: "c1", ToolName: ToolShell, Input: input},
		Part{Type: PartToolResult, ToolCallID: "c1", ToolName: ToolShell, Input: input, Output: map[string]any{"exitCode": 0}},
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(texts) != 2 || texts[1] != "Running tests" {
		t.Errorf("OnText should receive the running total, got %q", texts)
	}
	if result.Text != "Running tests" {
		t.Errorf("Text = %q", result.Text)
	}

	wantStatuses := []ToolCallStatus{ToolCallPending, ToolCallPending, ToolCallRunning, ToolCallCompleted, ToolCallCompleted}
	if len(snapshots) != len(wantStatuses) {
		t.Fatalf("expected %d snapshots, got %d", len(wantStatuses), len(snapshots))
	}
	for i, want := range wantStatuses {
		if got := snapshots[i][0].Status; got != want {
			t.Errorf("snapshot %d: status %q, want %q", i, got, want)
		}
	}
	if snapshots[1][0].Args != "" {
		t.Errorf("pending call should have empty args, got %q", snapshots[1][0].Args)
	}

	if len(result.ToolCalls) != 1 {
		t.Fatalf("expected one tool call, got %d", len(result.ToolCalls))
	}
	tc := result.ToolCalls[0]
	if tc.Name != "Ran go test ./..." || tc.Args != `{"command":"go test ./..."}` || tc.Result != `{"exitCode":0}` {
		t.Errorf("unexpected tool call %+v", tc)
	}
}

func TestRuntimeDanglingToolCall(t *testing.T) {
	result, err := NewRuntime(nil, TurnCallbacks{}, nil, nil).Run(context.Background(), feed(
		Part{Type: PartToolInputStart, ToolCallID: "a", ToolName: ToolEdit},
		Part{Type: PartToolInputStart, ToolCallID: "b", ToolName: ToolReadFile},
		Part{Type: PartToolCall, ToolCallID: "b", ToolName: ToolReadFile, Input: map[string]any{"path": "x"}},
	))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.ToolCalls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(result.ToolCalls))
	}
	if a := result.ToolCalls[0]; a.ID != "a" || a.Status != ToolCallPending {
		t.Errorf("call without tool-call must stay pending, got %+v", a)
	}
	if b := result.ToolCalls[1]; b.ID != "b" || b.Status != ToolCallCompleted {
		t.Errorf("running call must be finalized to completed, got %+v", b)
	}
}

func TestRuntimeCompletedStaysCompleted(t *testing.T) {
	input := map[string]any{"path": "a.go"}
	result, err := NewRuntime(nil, TurnCallbacks{}, nil, nil).Run(context.Background(), feed(
		Part{Type: PartToolCall, ToolCallID: "c", ToolName: ToolEdit, Input: input},
		Part{Type: PartToolResult, ToolCallID: "c", ToolName: ToolEdit, Output: "ok"},
		Part{Type: PartToolCall, ToolCallID: "c", ToolName: ToolEdit, Input: input},
	))
	if err != nil {
		t.Fatal(err)
	}
	if got := result.ToolCalls[0]; got.Status != ToolCallCompleted || got.Result != "ok" {
		t.Errorf("completed entry regressed: %+v", got)
	}
}

func TestRuntimeToolError(t *testing.T) {
	result, err := NewRuntime(nil, TurnCallbacks{}, nil, nil).Run(context.Background(), feed(
		Part{Type: PartToolCall, ToolCallID: "c", ToolName: ToolReadFile, Input: map[string]any{"filePath": "nope"}},
		Part{Type: PartToolError, ToolCallID: "c", ToolName: ToolReadFile, Err: errors.New("path not found")},
	))
	if err != nil {
		t.Fatalf("a tool error must not end the turn: %v", err)
	}
	if got := result.ToolCalls[0]; got.Status != ToolCallFailed || got.Result != "path not found" {
		t.Errorf("unexpected call %+v", got)
	}
}

func TestRuntimeTodoPush(t *testing.T) {
	store := todo.NewStore(nil)
	var pushed [][]todo.Item
	rt := NewRuntime(store, TurnCallbacks{
		OnTodos: func(items []todo.Item) { pushed = append(pushed, items) },
	}, nil, nil)

	items := []todo.Item{{ID: "1", Content: "plan", Status: todo.StatusInProgress}}
	parts := make(chan Part, 4)
	parts <- Part{Type: PartToolCall, ToolCallID: "t1", ToolName: ToolTodoWrite, Input: map[string]any{}}
	if err := store.Replace(items); err != nil {
		t.Fatal(err)
	}
	parts <- Part{Type: PartToolResult, ToolCallID: "t1", ToolName: ToolTodoWrite, Output: TodoResult{Todos: items}}
	parts <- Part{Type: PartToolCall, ToolCallID: "s1", ToolName: ToolShell, Input: map[string]any{}}
	parts <- Part{Type: PartToolResult, ToolCallID: "s1", ToolName: ToolShell, Output: "done"}
	close(parts)

	result, err := rt.Run(context.Background(), parts)
	if err != nil {
		t.Fatal(err)
	}
	if len(pushed) != 1 {
		t.Fatalf("expected exactly one todo push, got %d", len(pushed))
	}
	if pushed[0][0].Content != "plan" {
		t.Errorf("unexpected todos %+v", pushed[0])
	}
	if len(result.Todos) != 1 {
		t.Errorf("final todos missing: %+v", result.Todos)
	}
}

func TestRuntimeErrorPartAborts(t *testing.T) {
	boom := errors.New("provider exploded")
	result, err := NewRuntime(nil, TurnCallbacks{}, nil, nil).Run(context.Background(), feed(
		Part{Type: PartTextDelta, Delta: "partial"},
		Part{Type: PartError, Err: boom},
		Part{Type: PartTextDelta, Delta: " never seen"},
	))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped stream error, got %v", err)
	}
	if result.Text != "partial" {
		t.Errorf("partial text = %q", result.Text)
	}
}

func TestRuntimeCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	parts := make(chan Part)
	_, err := NewRuntime(nil, TurnCallbacks{}, nil, nil).Run(ctx, parts)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRuntimeEmitsEvents(t *testing.T) {
	emitter := NewEventEmitter("s1", 16)
	_, err := NewRuntime(nil, TurnCallbacks{}, emitter, nil).Run(context.Background(), feed(
		Part{Type: PartReasoningDelta, Delta: "thinking"},
		Part{Type: PartTextDelta, Delta: "hi"},
	))
	if err != nil {
		t.Fatal(err)
	}
	emitter.Close()

	var kinds []EventKind
	for ev := range emitter.Events() {
		if ev.SessionID != "s1" {
			t.Errorf("unexpected session id %q", ev.SessionID)
		}
		kinds = append(kinds, ev.Kind)
	}
	if len(kinds) != 2 || kinds[0] != EventReasoningDelta || kinds[1] != EventTextDelta {
		t.Errorf("unexpected events %v", kinds)
	}
}

func TestRuntimePendingCallHasGenericLabel(t *testing.T) {
	var snapshots [][]ToolCall
	rt := NewRuntime(nil, TurnCallbacks{
		OnToolCalls: func(calls []ToolCall) { snapshots = append(snapshots, calls) },
	}, nil, nil)

	input := map[string]any{"path": "main.go", "oldString": "a", "newString": "b"}
	_, err := rt.Run(context.Background(), feed(
		Part{Type: PartToolInputStart, ToolCallID: "e1", ToolName: ToolEdit},
		Part{Type: PartToolInputDelta, ToolCallID: "e1", ToolName: ToolEdit, Delta: `{"path":`},
		Part{Type: PartToolCall, ToolCallID: "e1", ToolName: ToolEdit, Input: input},
	))
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"Edited file", "Edited file", "Edited main.go", "Edited main.go"}
	if len(snapshots) != len(want) {
		t.Fatalf("expected %d snapshots, got %d", len(want), len(snapshots))
	}
	for i, name := range want {
		if got := snapshots[i][0].Name; got != name {
			t.Errorf("snapshot %d: name %q, want %q", i, got, name)
		}
	}
}
