package agentloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/martinemde/kodit/metrics"
	"github.com/martinemde/kodit/question"
	"github.com/martinemde/kodit/storage"
	"github.com/martinemde/kodit/todo"
	"github.com/martinemde/kodit/unifiedllm"
	"github.com/martinemde/kodit/workspace"
)

// Persisted message roles. Assistant messages are stored as "agent".
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// NoResponseText is recorded when a turn finishes without any text.
const NoResponseText = "No response received from model."

var (
	ErrSessionBusy   = errors.New("session is already processing a turn")
	ErrSessionClosed = errors.New("session is closed")
	ErrEmptyInput    = errors.New("input is empty")
)

// SessionState represents the current lifecycle state of a session.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateProcessing SessionState = "processing"
	StateClosed     SessionState = "closed"
)

// SessionConfig holds per-session settings.
type SessionConfig struct {
	Provider      string
	Model         string
	WorkspacePath string
	ThreadID      string
	StepBudget    int
	// Instructions replaces the default system prompt when set.
	Instructions     string
	ToolOutputLimits map[string]int
	Retry            *unifiedllm.RetryPolicy
}

// Dependencies are the collaborators a Session drives. Client and
// Executor are required; the rest fall back to in-memory or no-op
// implementations.
type Dependencies struct {
	Client    *unifiedllm.Client
	Executor  workspace.Executor
	Diffs     DiffRecorder
	Messages  storage.MessageStore
	Todos     *todo.Store
	Questions *question.Bridge
	Metrics   metrics.Recorder
	Logger    *slog.Logger
}

// HistoryMessage is one prior chat message. Role is "user" or "agent".
type HistoryMessage struct {
	Role      string
	Content   string
	Reasoning string
}

// Session owns the per-session tool context and runs one agent turn at a
// time against it.
type Session struct {
	id        string
	cfg       SessionConfig
	client    *unifiedllm.Client
	registry  *ToolRegistry
	todos     *todo.Store
	questions *question.Bridge
	messages  storage.MessageStore
	emitter   *EventEmitter
	metrics   metrics.Recorder
	logger    *slog.Logger

	state   SessionState
	history []HistoryMessage
	mu      sync.Mutex
}

// NewSession creates a session and registers the workspace tools for it.
func NewSession(cfg SessionConfig, deps Dependencies) *Session {
	id := uuid.New().String()

	if cfg.StepBudget <= 0 {
		cfg.StepBudget = DefaultStepBudget
	}
	if deps.Todos == nil {
		deps.Todos = todo.NewStore(nil)
	}
	if deps.Questions == nil {
		deps.Questions = question.NewBridge()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop()
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	logger := deps.Logger.With("session_id", id)
	if cfg.ThreadID != "" {
		logger = logger.With("thread_id", cfg.ThreadID)
	}

	registry := NewToolRegistry()
	RegisterWorkspaceTools(registry, ToolContext{
		WorkspacePath: cfg.WorkspacePath,
		Executor:      deps.Executor,
		Todos:         deps.Todos,
		Questions:     deps.Questions,
		Diffs:         deps.Diffs,
		ThreadID:      cfg.ThreadID,
		Logger:        logger,
	})

	s := &Session{
		id:        id,
		cfg:       cfg,
		client:    deps.Client,
		registry:  registry,
		todos:     deps.Todos,
		questions: deps.Questions,
		messages:  deps.Messages,
		emitter:   NewEventEmitter(id, 256),
		metrics:   deps.Metrics,
		logger:    logger,
		state:     StateIdle,
	}
	s.emitter.Emit(EventSessionStart, map[string]any{"thread_id": cfg.ThreadID})
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Tools returns the session's tool registry.
func (s *Session) Tools() *ToolRegistry { return s.registry }

// Todos returns the session's todo store.
func (s *Session) Todos() *todo.Store { return s.todos }

// Questions returns the session's question bridge.
func (s *Session) Questions() *question.Bridge { return s.questions }

// Events returns the event channel for observers.
func (s *Session) Events() <-chan SessionEvent {
	return s.emitter.Events()
}

// History returns the in-memory message history. When a message store and
// thread are configured, Submit reads history from the store instead.
func (s *Session) History() []HistoryMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := make([]HistoryMessage, len(s.history))
	copy(h, s.history)
	return h
}

// Close releases any pending question and closes the event channel.
func (s *Session) Close() {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()

	s.questions.Clear()
	s.emitter.Emit(EventSessionEnd, map[string]any{"state": string(StateClosed)})
	s.emitter.Close()
}

// Submit runs one agent turn for input. The user message and the final
// agent message are persisted; a failed turn records "Error: <msg>" as the
// agent message and returns the error. Pending questions are always
// cleared when Submit returns.
func (s *Session) Submit(ctx context.Context, input string, callbacks TurnCallbacks) (TurnResult, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return TurnResult{}, ErrEmptyInput
	}

	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return TurnResult{}, ErrSessionClosed
	case StateProcessing:
		s.mu.Unlock()
		return TurnResult{}, ErrSessionBusy
	}
	s.state = StateProcessing
	s.mu.Unlock()

	start := time.Now()
	defer func() {
		s.questions.Clear()
		s.mu.Lock()
		if s.state == StateProcessing {
			s.state = StateIdle
		}
		s.mu.Unlock()
	}()

	history, err := s.loadHistory(ctx)
	if err != nil {
		return TurnResult{}, err
	}
	if err := s.record(ctx, HistoryMessage{Role: RoleUser, Content: input}); err != nil {
		return TurnResult{}, err
	}
	s.emitter.Emit(EventUserInput, map[string]any{"content": input})
	s.logger.Info("turn started", "model", s.cfg.Model, "history", len(history))

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	agent := NewToolLoopAgent(AgentConfig{
		Client:           s.client,
		Provider:         s.cfg.Provider,
		Model:            s.cfg.Model,
		Instructions:     s.instructions(),
		StepBudget:       s.cfg.StepBudget,
		Tools:            s.registry,
		ToolOutputLimits: s.cfg.ToolOutputLimits,
		Retry:            s.cfg.Retry,
		Metrics:          s.metrics,
		Logger:           s.logger,
	})
	messages := ToModelMessages(append(history, HistoryMessage{Role: RoleUser, Content: input}))
	runtime := NewRuntime(s.todos, callbacks, s.emitter, s.logger)
	result, runErr := runtime.Run(turnCtx, agent.Stream(turnCtx, messages))

	if runErr != nil {
		status := "error"
		if ctx.Err() != nil {
			status = "cancelled"
		}
		s.metrics.ObserveTurn(status, time.Since(start))
		s.logger.Warn("turn failed", "status", status, "error", runErr)

		// The turn context may already be cancelled; the error message is
		// still persisted.
		recordCtx := context.WithoutCancel(ctx)
		if err := s.record(recordCtx, HistoryMessage{Role: RoleAgent, Content: "Error: " + runErr.Error()}); err != nil {
			s.logger.Warn("failed to record error message", "error", err)
		}
		s.emitter.Emit(EventTurnEnd, map[string]any{"status": status, "error": runErr.Error()})
		return result, runErr
	}

	content := result.Text
	if content == "" {
		content = NoResponseText
	}
	if err := s.record(ctx, HistoryMessage{Role: RoleAgent, Content: content, Reasoning: result.Reasoning}); err != nil {
		return result, err
	}
	s.metrics.ObserveTurn("ok", time.Since(start))
	s.logger.Info("turn finished",
		"tool_calls", len(result.ToolCalls),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.emitter.Emit(EventTurnEnd, map[string]any{"status": "ok", "tool_calls": len(result.ToolCalls)})
	return result, nil
}

func (s *Session) instructions() string {
	if s.cfg.Instructions != "" {
		return s.cfg.Instructions
	}
	return BuildSystemPrompt(s.cfg.WorkspacePath, s.cfg.Model)
}

func (s *Session) persistent() bool {
	return s.messages != nil && s.cfg.ThreadID != ""
}

// loadHistory returns the messages prior to this turn.
func (s *Session) loadHistory(ctx context.Context) ([]HistoryMessage, error) {
	if !s.persistent() {
		return s.History(), nil
	}
	stored, err := s.messages.ListMessages(ctx, s.cfg.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("load thread messages: %w", err)
	}
	history := make([]HistoryMessage, len(stored))
	for i, m := range stored {
		history[i] = HistoryMessage{Role: m.Role, Content: m.Content, Reasoning: m.Reasoning}
	}
	return history, nil
}

func (s *Session) record(ctx context.Context, m HistoryMessage) error {
	if s.persistent() {
		if _, err := s.messages.AddMessage(ctx, storage.MessageInput{
			ThreadID:  s.cfg.ThreadID,
			Role:      m.Role,
			Content:   m.Content,
			Reasoning: m.Reasoning,
		}); err != nil {
			return fmt.Errorf("save %s message: %w", m.Role, err)
		}
		return nil
	}
	s.mu.Lock()
	s.history = append(s.history, m)
	s.mu.Unlock()
	return nil
}

// ToModelMessages converts chat history into model messages. The "agent"
// role becomes the assistant role; reasoning is not replayed.
func ToModelMessages(history []HistoryMessage) []unifiedllm.Message {
	messages := make([]unifiedllm.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case RoleAgent, string(unifiedllm.RoleAssistant):
			messages = append(messages, unifiedllm.AssistantMessage(m.Content))
		case string(unifiedllm.RoleSystem):
			messages = append(messages, unifiedllm.SystemMessage(m.Content))
		default:
			messages = append(messages, unifiedllm.UserMessage(m.Content))
		}
	}
	return messages
}
