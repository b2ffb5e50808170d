package agentloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/martinemde/kodit/metrics"
	"github.com/martinemde/kodit/unifiedllm"
)

// DefaultStepBudget is the number of model steps a turn may take.
const DefaultStepBudget = 20

// AgentConfig configures a ToolLoopAgent.
type AgentConfig struct {
	Client       *unifiedllm.Client
	Provider     string
	Model        string
	Instructions string
	StepBudget   int
	Tools        *ToolRegistry
	// ToolOutputLimits overrides DefaultToolCharLimits per tool.
	ToolOutputLimits map[string]int
	Retry            *unifiedllm.RetryPolicy
	Metrics          metrics.Recorder
	Logger           *slog.Logger
}

// ToolLoopAgent runs the model in a loop: every step streams one response,
// executes the tool calls it asked for, and feeds the results back until
// the model stops calling tools or the step budget runs out.
type ToolLoopAgent struct {
	cfg AgentConfig
}

// NewToolLoopAgent creates an agent. Unset fields take their defaults.
func NewToolLoopAgent(cfg AgentConfig) *ToolLoopAgent {
	if cfg.StepBudget <= 0 {
		cfg.StepBudget = DefaultStepBudget
	}
	if cfg.Tools == nil {
		cfg.Tools = NewToolRegistry()
	}
	if cfg.Retry == nil {
		policy := unifiedllm.DefaultRetryPolicy()
		cfg.Retry = &policy
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Retry.OnRetry == nil {
		policy, logger := *cfg.Retry, cfg.Logger
		policy.OnRetry = func(err error, attempt int, delay time.Duration) {
			logger.Warn("retrying model stream", "attempt", attempt, "delay", delay, "error", err)
		}
		cfg.Retry = &policy
	}
	return &ToolLoopAgent{cfg: cfg}
}

// Stream starts the loop in its own goroutine and returns the part
// stream. The channel is unbuffered and closes when the loop ends. An
// error part is always the last part sent. Cancelling ctx stops the
// provider stream, tool execution and the goroutine.
func (a *ToolLoopAgent) Stream(ctx context.Context, messages []unifiedllm.Message) <-chan Part {
	out := make(chan Part)
	go func() {
		defer close(out)
		a.run(ctx, messages, out)
	}()
	return out
}

func (a *ToolLoopAgent) run(ctx context.Context, messages []unifiedllm.Message, out chan<- Part) {
	conversation := make([]unifiedllm.Message, 0, len(messages)+1)
	if a.cfg.Instructions != "" {
		conversation = append(conversation, unifiedllm.SystemMessage(a.cfg.Instructions))
	}
	conversation = append(conversation, messages...)

	for step := 0; step < a.cfg.StepBudget; step++ {
		resp, ok := a.streamStep(ctx, step, conversation, out)
		if !ok {
			return
		}

		calls := resp.ToolCalls()
		toolMessages := make([]unifiedllm.Message, 0, len(calls))
		for _, call := range calls {
			msg, ok := a.executeToolCall(ctx, call, out)
			if !ok {
				return
			}
			toolMessages = append(toolMessages, msg)
		}

		if !send(ctx, out, Part{
			Type:         PartFinishStep,
			Step:         step,
			FinishReason: resp.FinishReason.Reason,
			Usage:        resp.Usage,
		}) {
			return
		}

		if len(calls) == 0 {
			return
		}
		conversation = append(conversation, resp.Message)
		conversation = append(conversation, toolMessages...)
	}

	a.cfg.Logger.Debug("step budget exhausted", "steps", a.cfg.StepBudget, "model", a.cfg.Model)
}

// streamStep opens one provider stream and forwards its events as parts.
// It reports false when the loop must stop.
func (a *ToolLoopAgent) streamStep(ctx context.Context, step int, conversation []unifiedllm.Message, out chan<- Part) (*unifiedllm.Response, bool) {
	req := unifiedllm.Request{
		Model:      a.cfg.Model,
		Provider:   a.cfg.Provider,
		Messages:   conversation,
		Tools:      a.cfg.Tools.Definitions(),
		ToolChoice: &unifiedllm.ToolChoice{Mode: "auto"},
	}

	start := time.Now()
	events, err := unifiedllm.Retry(ctx, *a.cfg.Retry, func(ctx context.Context) (<-chan unifiedllm.StreamEvent, error) {
		return a.cfg.Client.Stream(ctx, req)
	})
	if err != nil {
		if ctx.Err() == nil {
			send(ctx, out, Part{Type: PartError, Err: err})
		}
		return nil, false
	}

	acc := unifiedllm.NewStreamAccumulator()
	for ev := range events {
		acc.Process(ev)

		var part Part
		switch ev.Type {
		case unifiedllm.TextDelta:
			part = Part{Type: PartTextDelta, Delta: ev.Delta}
		case unifiedllm.ReasoningDelta:
			part = Part{Type: PartReasoningDelta, Delta: ev.Delta}
		case unifiedllm.ToolCallStart:
			if ev.ToolCall == nil {
				continue
			}
			part = Part{Type: PartToolInputStart, ToolCallID: ev.ToolCall.ID, ToolName: ev.ToolCall.Name}
		case unifiedllm.ToolCallDelta:
			if ev.ToolCall == nil {
				continue
			}
			part = Part{Type: PartToolInputDelta, ToolCallID: ev.ToolCall.ID, ToolName: ev.ToolCall.Name, Delta: ev.Delta}
		case unifiedllm.ToolCallEnd:
			if ev.ToolCall == nil {
				continue
			}
			part = Part{
				Type:       PartToolCall,
				ToolCallID: ev.ToolCall.ID,
				ToolName:   ev.ToolCall.Name,
				Input:      decodeInput(ev.ToolCall.Arguments),
			}
		case unifiedllm.StreamError:
			err := ev.Error
			if err == nil {
				err = errors.New("model stream failed")
			}
			part = Part{Type: PartError, Err: err}
		default:
			continue
		}

		if !send(ctx, out, part) || part.Type == PartError {
			drain(events)
			return nil, false
		}
	}
	if ctx.Err() != nil {
		return nil, false
	}

	resp := acc.Response()
	a.cfg.Metrics.ObserveStep(a.cfg.Model, resp.FinishReason.Reason, resp.Usage.InputTokens, resp.Usage.OutputTokens, time.Since(start))
	a.cfg.Logger.Debug("step finished",
		"step", step,
		"model", a.cfg.Model,
		"finish_reason", resp.FinishReason.Reason,
		"tool_calls", len(resp.ToolCalls()),
	)
	return resp, true
}

// executeToolCall runs one tool, emits its result or error part, and
// returns the tool message for the next step.
func (a *ToolLoopAgent) executeToolCall(ctx context.Context, call unifiedllm.ToolCall, out chan<- Part) (unifiedllm.Message, bool) {
	input := decodeInput(call.Arguments)
	start := time.Now()

	var (
		output any
		err    error
	)
	if tool := a.cfg.Tools.Get(call.Name); tool == nil {
		err = fmt.Errorf("unknown tool: %s", call.Name)
	} else {
		output, err = tool.Executor(ctx, call.Arguments)
	}
	if ctx.Err() != nil {
		return unifiedllm.Message{}, false
	}

	if err != nil {
		a.cfg.Metrics.ObserveToolCall(call.Name, "error", time.Since(start))
		a.cfg.Logger.Warn("tool call failed", "tool", call.Name, "call_id", call.ID, "error", err)
		ok := send(ctx, out, Part{Type: PartToolError, ToolCallID: call.ID, ToolName: call.Name, Input: input, Err: err})
		return unifiedllm.ToolResultMessage(call.ID, call.Name, err.Error(), true), ok
	}

	a.cfg.Metrics.ObserveToolCall(call.Name, "ok", time.Since(start))
	a.cfg.Logger.Debug("tool call finished", "tool", call.Name, "call_id", call.ID, "duration_ms", time.Since(start).Milliseconds())
	ok := send(ctx, out, Part{Type: PartToolResult, ToolCallID: call.ID, ToolName: call.Name, Input: input, Output: output})
	content := TruncateToolOutput(stringify(output), call.Name, a.cfg.ToolOutputLimits)
	return unifiedllm.ToolResultMessage(call.ID, call.Name, content, false), ok
}

// send delivers p unless ctx is done first.
func send(ctx context.Context, out chan<- Part, p Part) bool {
	select {
	case out <- p:
		return true
	case <-ctx.Done():
		return false
	}
}

func drain(events <-chan unifiedllm.StreamEvent) {
	for range events {
	}
}
