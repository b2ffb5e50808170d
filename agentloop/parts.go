package agentloop

import (
	"encoding/json"

	"github.com/martinemde/kodit/unifiedllm"
)

// PartType identifies one element of the agent's part stream.
type PartType string

const (
	PartTextDelta      PartType = "text-delta"
	PartReasoningDelta PartType = "reasoning-delta"
	PartToolInputStart PartType = "tool-input-start"
	PartToolInputDelta PartType = "tool-input-delta"
	PartToolCall       PartType = "tool-call"
	PartToolResult     PartType = "tool-result"
	PartToolError      PartType = "tool-error"
	PartError          PartType = "error"
	PartFinishStep     PartType = "finish-step"
)

// Part is a single event produced by a ToolLoopAgent. Which fields are
// set depends on Type:
//
//   - text-delta, reasoning-delta, tool-input-delta: Delta
//   - tool-input-start: ToolCallID, ToolName
//   - tool-call: ToolCallID, ToolName, Input
//   - tool-result: ToolCallID, ToolName, Input, Output
//   - tool-error: ToolCallID, ToolName, Input, Err
//   - error: Err
//   - finish-step: Step, FinishReason, Usage
type Part struct {
	Type         PartType
	Delta        string
	ToolCallID   string
	ToolName     string
	Input        any
	Output       any
	Err          error
	Step         int
	FinishReason string
	Usage        unifiedllm.Usage
}

// decodeInput turns raw tool-call arguments into the generic value used
// for labels and serialization. Arguments that are not valid JSON are
// kept as the raw string.
func decodeInput(raw json.RawMessage) any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
