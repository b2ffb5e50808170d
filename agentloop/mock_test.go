package agentloop

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/martinemde/kodit/unifiedllm"
)

// scriptedAdapter replays one scripted event list per Stream call. The
// last script repeats once the list is exhausted.
type scriptedAdapter struct {
	steps    [][]unifiedllm.StreamEvent
	openErr  error
	mu       sync.Mutex
	requests []unifiedllm.Request
}

func (a *scriptedAdapter) Name() string { return "mock" }

func (a *scriptedAdapter) Complete(context.Context, unifiedllm.Request) (*unifiedllm.Response, error) {
	return nil, &unifiedllm.ConfigurationError{SDKError: unifiedllm.SDKError{Message: "not supported"}}
}

func (a *scriptedAdapter) Stream(_ context.Context, req unifiedllm.Request) (<-chan unifiedllm.StreamEvent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	if a.openErr != nil {
		return nil, a.openErr
	}
	events := a.steps[min(len(a.requests), len(a.steps))-1]
	ch := make(chan unifiedllm.StreamEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (a *scriptedAdapter) requestCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func (a *scriptedAdapter) request(i int) unifiedllm.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[i]
}

func newScriptedClient(steps ...[]unifiedllm.StreamEvent) (*unifiedllm.Client, *scriptedAdapter) {
	adapter := &scriptedAdapter{steps: steps}
	return unifiedllm.NewClient(unifiedllm.WithProvider("mock", adapter)), adapter
}

func noRetry() *unifiedllm.RetryPolicy {
	return &unifiedllm.RetryPolicy{MaxRetries: 0}
}

func textStep(chunks ...string) []unifiedllm.StreamEvent {
	events := make([]unifiedllm.StreamEvent, 0, len(chunks)+1)
	for _, c := range chunks {
		events = append(events, unifiedllm.StreamEvent{Type: unifiedllm.TextDelta, Delta: c})
	}
	return append(events, unifiedllm.StreamEvent{
		Type:         unifiedllm.StreamFinish,
		FinishReason: &unifiedllm.FinishReason{Reason: "stop"},
		Usage:        &unifiedllm.Usage{InputTokens: 10, OutputTokens: 2, TotalTokens: 12},
	})
}

type scriptedCall struct {
	id, name string
	args     any
}

func toolStep(calls ...scriptedCall) []unifiedllm.StreamEvent {
	var events []unifiedllm.StreamEvent
	for _, c := range calls {
		raw, _ := json.Marshal(c.args)
		start := &unifiedllm.ToolCall{ID: c.id, Name: c.name}
		end := &unifiedllm.ToolCall{ID: c.id, Name: c.name, Arguments: raw}
		events = append(events,
			unifiedllm.StreamEvent{Type: unifiedllm.ToolCallStart, ToolCall: start},
			unifiedllm.StreamEvent{Type: unifiedllm.ToolCallDelta, ToolCall: start, Delta: string(raw)},
			unifiedllm.StreamEvent{Type: unifiedllm.ToolCallEnd, ToolCall: end},
		)
	}
	return append(events, unifiedllm.StreamEvent{
		Type:         unifiedllm.StreamFinish,
		FinishReason: &unifiedllm.FinishReason{Reason: "tool_calls"},
	})
}

// collect drains a part stream.
func collect(parts <-chan Part) []Part {
	var out []Part
	for p := range parts {
		out = append(out, p)
	}
	return out
}

func partTypes(parts []Part) []PartType {
	types := make([]PartType, len(parts))
	for i, p := range parts {
		types[i] = p.Type
	}
	return types
}

// feed returns a closed, pre-filled part channel.
func feed(parts ...Part) <-chan Part {
	ch := make(chan Part, len(parts))
	for _, p := range parts {
		ch <- p
	}
	close(ch)
	return ch
}
