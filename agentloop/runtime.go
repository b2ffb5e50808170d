package agentloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/martinemde/kodit/todo"
)

// TurnCallbacks observe a turn while it runs. Every field is optional.
// OnText and OnReasoning receive the full value accumulated so far.
type TurnCallbacks struct {
	OnText      func(text string)
	OnReasoning func(reasoning string)
	OnToolCalls func(calls []ToolCall)
	OnTodos     func(items []todo.Item)
}

// TurnResult is the outcome of one agent turn.
type TurnResult struct {
	Text      string      `json:"text"`
	Reasoning string      `json:"reasoning,omitempty"`
	ToolCalls []ToolCall  `json:"toolCalls,omitempty"`
	Todos     []todo.Item `json:"todos"`
}

// Runtime folds a part stream into a TurnResult. A Runtime is used for a
// single turn.
type Runtime struct {
	todos     *todo.Store
	callbacks TurnCallbacks
	emitter   *EventEmitter
	logger    *slog.Logger

	text      strings.Builder
	reasoning strings.Builder
	calls     *toolCallState
	inputs    map[string]*strings.Builder
}

// NewRuntime creates a Runtime that reads todos from store and reports
// through callbacks and, when non-nil, emitter.
func NewRuntime(store *todo.Store, callbacks TurnCallbacks, emitter *EventEmitter, logger *slog.Logger) *Runtime {
	if store == nil {
		store = todo.NewStore(nil)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Runtime{
		todos:     store,
		callbacks: callbacks,
		emitter:   emitter,
		logger:    logger,
		calls:     newToolCallState(),
		inputs:    make(map[string]*strings.Builder),
	}
}

// Run consumes parts until the channel closes, an error part arrives, or
// ctx is done. On an error part it returns the wrapped stream error; on
// cancellation it returns ctx.Err(). The partial result is returned in
// both cases.
func (r *Runtime) Run(ctx context.Context, parts <-chan Part) (TurnResult, error) {
	for {
		select {
		case <-ctx.Done():
			return r.result(), ctx.Err()
		case p, ok := <-parts:
			if !ok {
				if r.calls.len() > 0 {
					r.calls.finalize()
					r.publishToolCalls()
				}
				return r.result(), nil
			}
			if err := r.apply(p); err != nil {
				return r.result(), err
			}
		}
	}
}

func (r *Runtime) apply(p Part) error {
	switch p.Type {
	case PartTextDelta:
		r.text.WriteString(p.Delta)
		text := r.text.String()
		if r.callbacks.OnText != nil {
			r.callbacks.OnText(text)
		}
		r.emitter.Emit(EventTextDelta, map[string]any{"delta": p.Delta})

	case PartReasoningDelta:
		r.reasoning.WriteString(p.Delta)
		reasoning := r.reasoning.String()
		if r.callbacks.OnReasoning != nil {
			r.callbacks.OnReasoning(reasoning)
		}
		r.emitter.Emit(EventReasoningDelta, map[string]any{"delta": p.Delta})

	case PartToolInputStart:
		r.ensureCall(p)
		r.publishToolCalls()

	case PartToolInputDelta:
		r.ensureCall(p)
		buf, ok := r.inputs[p.ToolCallID]
		if !ok {
			buf = &strings.Builder{}
			r.inputs[p.ToolCallID] = buf
		}
		buf.WriteString(p.Delta)
		r.publishToolCalls()

	case PartToolCall:
		tc := r.calls.ensure(p.ToolCallID)
		if tc.Status != ToolCallCompleted {
			tc.Status = ToolCallRunning
		}
		tc.Args = SerializeToolArg(p.Input)
		tc.Name = ToToolLabel(p.ToolName, p.Input)
		r.publishToolCalls()

	case PartToolResult:
		tc, ok := r.calls.get(p.ToolCallID)
		if !ok {
			r.logger.Debug("tool result for unknown call", "call_id", p.ToolCallID, "tool", p.ToolName)
		} else {
			tc.Status = ToolCallCompleted
			tc.Result = SerializeToolResult(p.Output)
			r.publishToolCalls()
		}
		if p.ToolName == ToolTodoWrite || p.ToolName == ToolTodoRead {
			r.publishTodos()
		}

	case PartToolError:
		tc := r.calls.ensure(p.ToolCallID)
		tc.Status = ToolCallFailed
		if p.Err != nil {
			tc.Result = p.Err.Error()
		}
		r.publishToolCalls()

	case PartError:
		err := p.Err
		if err == nil {
			err = errors.New("unknown stream error")
		}
		r.emitter.Emit(EventError, map[string]any{"error": err.Error()})
		return fmt.Errorf("agent stream: %w", err)

	case PartFinishStep:
		r.emitter.Emit(EventStepFinish, map[string]any{
			"step":          p.Step,
			"finish_reason": p.FinishReason,
			"input_tokens":  p.Usage.InputTokens,
			"output_tokens": p.Usage.OutputTokens,
		})
	}
	return nil
}

// ensureCall creates the entry for a streaming call. Until the full input
// arrives the label is the tool's generic one.
func (r *Runtime) ensureCall(p Part) *ToolCall {
	tc := r.calls.ensure(p.ToolCallID)
	if tc.Name == "" && p.ToolName != "" {
		tc.Name = ToToolLabel(p.ToolName, nil)
	}
	return tc
}

func (r *Runtime) publishToolCalls() {
	snapshot := r.calls.snapshot()
	if r.callbacks.OnToolCalls != nil {
		r.callbacks.OnToolCalls(snapshot)
	}
	r.emitter.Emit(EventToolCallsUpdated, map[string]any{"tool_calls": snapshot})
}

func (r *Runtime) publishTodos() {
	items := r.todos.Get()
	if r.callbacks.OnTodos != nil {
		r.callbacks.OnTodos(items)
	}
	r.emitter.Emit(EventTodosUpdated, map[string]any{"todos": items})
}

func (r *Runtime) result() TurnResult {
	return TurnResult{
		Text:      r.text.String(),
		Reasoning: r.reasoning.String(),
		ToolCalls: r.calls.snapshot(),
		Todos:     r.todos.Get(),
	}
}
