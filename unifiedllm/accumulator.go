package unifiedllm

import "strings"

// StreamAccumulator collects stream events into a complete Response.
type StreamAccumulator struct {
	text         strings.Builder
	reasoning    strings.Builder
	toolCalls    []ToolCall
	finishReason *FinishReason
	usage        *Usage
	err          error
}

func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{}
}

// Process ingests a single stream event.
func (sa *StreamAccumulator) Process(event StreamEvent) {
	switch event.Type {
	case TextDelta:
		sa.text.WriteString(event.Delta)
	case ReasoningDelta:
		sa.reasoning.WriteString(event.Delta)
	case ToolCallEnd:
		if event.ToolCall != nil {
			sa.toolCalls = append(sa.toolCalls, *event.ToolCall)
		}
	case StreamFinish:
		sa.finishReason = event.FinishReason
		sa.usage = event.Usage
	case StreamError:
		sa.err = event.Error
	}
}

// Err returns the error event seen, if any.
func (sa *StreamAccumulator) Err() error {
	return sa.err
}

// Reasoning returns the accumulated reasoning text.
func (sa *StreamAccumulator) Reasoning() string {
	return sa.reasoning.String()
}

// Response assembles the accumulated assistant message.
func (sa *StreamAccumulator) Response() *Response {
	var content []ContentPart
	if r := sa.reasoning.String(); r != "" {
		content = append(content, ThinkingPart(r))
	}
	if t := sa.text.String(); t != "" {
		content = append(content, TextPart(t))
	}
	for _, tc := range sa.toolCalls {
		content = append(content, ToolCallPart(tc.ID, tc.Name, tc.Arguments))
	}

	fr := FinishReason{Reason: "stop"}
	if sa.finishReason != nil {
		fr = *sa.finishReason
	} else if len(sa.toolCalls) > 0 {
		fr = FinishReason{Reason: "tool_calls"}
	}

	var usage Usage
	if sa.usage != nil {
		usage = *sa.usage
	}

	return &Response{
		Message:      Message{Role: RoleAssistant, Content: content},
		FinishReason: fr,
		Usage:        usage,
	}
}
