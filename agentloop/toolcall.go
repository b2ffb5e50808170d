package agentloop

// ToolCallStatus is the lifecycle state of a ToolCall within a turn.
type ToolCallStatus string

const (
	ToolCallPending   ToolCallStatus = "pending"
	ToolCallRunning   ToolCallStatus = "running"
	ToolCallCompleted ToolCallStatus = "completed"
	ToolCallFailed    ToolCallStatus = "failed"
)

// ToolCall is the display record of one model-issued tool call. Name is
// the human label from ToToolLabel, Args and Result are truncated
// serializations.
type ToolCall struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Args   string         `json:"args"`
	Status ToolCallStatus `json:"status"`
	Result string         `json:"result,omitempty"`
}

// toolCallState keeps ToolCalls keyed by id in first-seen order.
type toolCallState struct {
	order []string
	calls map[string]*ToolCall
}

func newToolCallState() *toolCallState {
	return &toolCallState{calls: make(map[string]*ToolCall)}
}

func (s *toolCallState) get(id string) (*ToolCall, bool) {
	tc, ok := s.calls[id]
	return tc, ok
}

// ensure returns the entry for id, creating a pending one when absent.
func (s *toolCallState) ensure(id string) *ToolCall {
	if tc, ok := s.calls[id]; ok {
		return tc
	}
	tc := &ToolCall{ID: id, Status: ToolCallPending}
	s.calls[id] = tc
	s.order = append(s.order, id)
	return tc
}

func (s *toolCallState) len() int {
	return len(s.order)
}

// snapshot copies the entries in insertion order.
func (s *toolCallState) snapshot() []ToolCall {
	out := make([]ToolCall, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.calls[id])
	}
	return out
}

// finalize marks every running entry completed. Pending entries never
// received their arguments and are left as they are.
func (s *toolCallState) finalize() {
	for _, tc := range s.calls {
		if tc.Status == ToolCallRunning {
			tc.Status = ToolCallCompleted
		}
	}
}
