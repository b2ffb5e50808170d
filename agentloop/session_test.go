package agentloop

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/martinemde/kodit/diff"
	"github.com/martinemde/kodit/question"
	"github.com/martinemde/kodit/storage"
	"github.com/martinemde/kodit/unifiedllm"
	"github.com/martinemde/kodit/workspace"
)

func newTestSession(t *testing.T, client *unifiedllm.Client, store *storage.Memory, bridge *question.Bridge) (*Session, string) {
	t.Helper()
	ws := t.TempDir()
	deps := Dependencies{
		Client:    client,
		Executor:  workspace.NewLocal(nil),
		Questions: bridge,
	}
	if store != nil {
		deps.Messages = store
		deps.Diffs = diff.StorageRecorder{Store: store, ThreadID: "thread-1"}
	}
	sess := NewSession(SessionConfig{
		Provider:      "mock",
		Model:         "test-model",
		WorkspacePath: ws,
		ThreadID:      "thread-1",
		Instructions:  "test instructions",
		Retry:         noRetry(),
	}, deps)
	t.Cleanup(sess.Close)
	return sess, ws
}

func TestSessionSubmitEditsAndRecords(t *testing.T) {
	client, adapter := newScriptedClient(
		toolStep(scriptedCall{"e1", ToolEdit, map[string]any{"path": "hello.txt", "oldString": "hello", "newString": "goodbye"}}),
		textStep("Updated the greeting."),
	)
	store := storage.NewMemory()
	sess, ws := newTestSession(t, client, store, nil)
	if err := os.WriteFile(filepath.Join(ws, "hello.txt"), []byte("hello world\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var lastCalls []ToolCall
	result, err := sess.Submit(context.Background(), "  change the greeting  ", TurnCallbacks{
		OnToolCalls: func(calls []ToolCall) { lastCalls = calls },
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.Text != "Updated the greeting." {
		t.Errorf("Text = %q", result.Text)
	}
	if len(lastCalls) != 1 || lastCalls[0].Name != "Edited hello.txt" || lastCalls[0].Status != ToolCallCompleted {
		t.Errorf("unexpected tool calls %+v", lastCalls)
	}

	data, err := os.ReadFile(filepath.Join(ws, "hello.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "goodbye world" {
		t.Errorf("file content = %q", data)
	}

	records, err := store.List(context.Background(), "thread-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Summary != "Edited hello.txt" {
		t.Errorf("expected one diff record, got %+v", records)
	}

	msgs, err := store.ListMessages(context.Background(), "thread-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected user and agent messages, got %d", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Content != "change the greeting" {
		t.Errorf("unexpected user message %+v", msgs[0])
	}
	if msgs[1].Role != RoleAgent || msgs[1].Content != "Updated the greeting." {
		t.Errorf("unexpected agent message %+v", msgs[1])
	}

	if adapter.request(0).Messages[0].TextContent() != "test instructions" {
		t.Error("configured instructions not used")
	}
	if sess.State() != StateIdle {
		t.Errorf("state = %s, want idle", sess.State())
	}
}

func TestSessionReplaysHistory(t *testing.T) {
	client, adapter := newScriptedClient(textStep("first"), textStep("second"))
	store := storage.NewMemory()
	sess, _ := newTestSession(t, client, store, nil)

	if _, err := sess.Submit(context.Background(), "one", TurnCallbacks{}); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.Submit(context.Background(), "two", TurnCallbacks{}); err != nil {
		t.Fatal(err)
	}

	msgs := adapter.request(1).Messages
	// system, user "one", assistant "first", user "two"
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[2].Role != unifiedllm.RoleAssistant || msgs[2].TextContent() != "first" {
		t.Errorf("agent history should replay as assistant, got %+v", msgs[2])
	}
	if msgs[3].TextContent() != "two" {
		t.Errorf("unexpected last message %+v", msgs[3])
	}
}

func TestSessionNoResponseText(t *testing.T) {
	client, _ := newScriptedClient(textStep())
	sess, _ := newTestSession(t, client, nil, nil)

	result, err := sess.Submit(context.Background(), "hello", TurnCallbacks{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Text != "" {
		t.Errorf("result text should stay empty, got %q", result.Text)
	}
	history := sess.History()
	if len(history) != 2 || history[1].Content != NoResponseText {
		t.Errorf("unexpected history %+v", history)
	}
}

func TestSessionRecordsStreamError(t *testing.T) {
	client, _ := newScriptedClient([]unifiedllm.StreamEvent{
		{Type: unifiedllm.StreamError, Error: errors.New("quota exceeded")},
	})
	store := storage.NewMemory()
	sess, _ := newTestSession(t, client, store, nil)

	_, err := sess.Submit(context.Background(), "hello", TurnCallbacks{})
	if err == nil {
		t.Fatal("expected an error")
	}
	msgs, listErr := store.ListMessages(context.Background(), "thread-1")
	if listErr != nil {
		t.Fatal(listErr)
	}
	last := msgs[len(msgs)-1]
	if last.Role != RoleAgent || !strings.HasPrefix(last.Content, "Error: ") || !strings.Contains(last.Content, "quota exceeded") {
		t.Errorf("unexpected error message %+v", last)
	}
	if sess.State() != StateIdle {
		t.Errorf("state = %s after a failed turn", sess.State())
	}
}

func TestSessionClearsPendingQuestionOnCancel(t *testing.T) {
	client, _ := newScriptedClient(
		toolStep(scriptedCall{"q1", ToolQuestion, map[string]any{"questions": []map[string]any{
			{"question": "Continue?", "header": "Confirm", "options": []map[string]any{}},
		}}}),
		textStep("unreachable"),
	)
	bridge := question.NewBridge()
	sess, _ := newTestSession(t, client, nil, bridge)

	ctx, cancel := context.WithCancel(context.Background())
	asked := make(chan struct{}, 1)
	unsubscribe := bridge.Subscribe(func() {
		if bridge.Pending() != nil {
			select {
			case asked <- struct{}{}:
			default:
			}
		}
	})
	defer unsubscribe()

	errc := make(chan error, 1)
	go func() {
		_, err := sess.Submit(ctx, "do it", TurnCallbacks{})
		errc <- err
	}()

	select {
	case <-asked:
	case <-time.After(5 * time.Second):
		t.Fatal("question was never asked")
	}
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Submit did not return after cancellation")
	}
	if bridge.Pending() != nil {
		t.Error("pending question must be cleared when the turn ends")
	}
}

func TestSessionRejectsEmptyInput(t *testing.T) {
	client, adapter := newScriptedClient(textStep("x"))
	sess, _ := newTestSession(t, client, nil, nil)
	if _, err := sess.Submit(context.Background(), "   ", TurnCallbacks{}); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if adapter.requestCount() != 0 {
		t.Error("no model call expected")
	}
}

func TestToModelMessages(t *testing.T) {
	msgs := ToModelMessages([]HistoryMessage{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAgent, Content: "hello", Reasoning: "greet back"},
	})
	if len(msgs) != 2 || msgs[0].Role != unifiedllm.RoleUser || msgs[1].Role != unifiedllm.RoleAssistant {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if msgs[1].TextContent() != "hello" {
		t.Errorf("reasoning must not be replayed: %q", msgs[1].TextContent())
	}
}
