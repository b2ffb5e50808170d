package unifiedllm

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// gollm hands back tool calls as JSON inside the completion text. These are
// the envelopes it (and the models we prompt) produce.
var toolCallMarkers = []string{`{"tool_calls"`, `[{"name"`, `<function_call>`}

const (
	functionCallOpen  = "<function_call>"
	functionCallClose = "</function_call>"
)

// toolCallScanner separates streamed text from a trailing tool-call
// envelope. Text before the envelope is released as soon as it cannot be
// the start of a marker.
type toolCallScanner struct {
	held      string
	capture   strings.Builder
	capturing bool
}

// Write consumes a chunk and returns the text that is safe to show.
func (s *toolCallScanner) Write(chunk string) string {
	if s.capturing {
		s.capture.WriteString(chunk)
		return ""
	}
	buf := s.held + chunk
	if i := indexMarker(buf); i >= 0 {
		s.capturing = true
		s.capture.WriteString(buf[i:])
		s.held = ""
		return buf[:i]
	}
	keep := partialMarkerSuffix(buf)
	s.held = buf[len(buf)-keep:]
	return buf[:len(buf)-keep]
}

// Finish returns any text still held back and the parsed calls. An
// envelope that does not parse is returned as text.
func (s *toolCallScanner) Finish() (string, []ToolCall) {
	if !s.capturing {
		held := s.held
		s.held = ""
		return held, nil
	}
	captured := s.capture.String()
	calls, rest := parseToolCallEnvelope(captured)
	if len(calls) == 0 {
		return captured, nil
	}
	return rest, calls
}

// splitToolCalls parses a complete completion text.
func splitToolCalls(text string) (string, []ToolCall) {
	var s toolCallScanner
	visible := s.Write(text)
	tail, calls := s.Finish()
	return strings.TrimSpace(visible + tail), calls
}

func indexMarker(s string) int {
	best := -1
	for _, m := range toolCallMarkers {
		if i := strings.Index(s, m); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

// partialMarkerSuffix returns the length of the longest suffix of s that is
// a proper prefix of some marker.
func partialMarkerSuffix(s string) int {
	longest := 0
	for _, m := range toolCallMarkers {
		for n := min(len(m)-1, len(s)); n > longest; n-- {
			if strings.HasSuffix(s, m[:n]) {
				longest = n
				break
			}
		}
	}
	return longest
}

type rawToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Function  *struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

func (r rawToolCall) toolCall() ToolCall {
	name, args := r.Name, r.Arguments
	if r.Function != nil {
		name, args = r.Function.Name, r.Function.Arguments
	}
	id := r.ID
	if id == "" {
		id = "call_" + uuid.NewString()[:8]
	}
	return ToolCall{ID: id, Name: name, Arguments: normalizeArguments(args)}
}

// parseToolCallEnvelope decodes the envelope at the start of s and returns
// the calls and whatever text follows it.
func parseToolCallEnvelope(s string) ([]ToolCall, string) {
	rest := strings.TrimLeft(s, " \t\r\n")

	if strings.HasPrefix(rest, functionCallOpen) {
		var calls []ToolCall
		for strings.HasPrefix(rest, functionCallOpen) {
			var raw rawToolCall
			n, err := decodeFirst(rest[len(functionCallOpen):], &raw)
			if err != nil || (raw.Name == "" && raw.Function == nil) {
				return nil, s
			}
			calls = append(calls, raw.toolCall())
			rest = strings.TrimLeft(rest[len(functionCallOpen)+n:], " \t\r\n")
			rest = strings.TrimPrefix(rest, functionCallClose)
			rest = strings.TrimLeft(rest, " \t\r\n")
		}
		return calls, rest
	}

	var raws []rawToolCall
	var n int
	var err error
	if strings.HasPrefix(rest, "[") {
		n, err = decodeFirst(rest, &raws)
	} else {
		var envelope struct {
			ToolCalls []rawToolCall `json:"tool_calls"`
		}
		n, err = decodeFirst(rest, &envelope)
		raws = envelope.ToolCalls
	}
	if err != nil || len(raws) == 0 {
		return nil, s
	}

	calls := make([]ToolCall, 0, len(raws))
	for _, raw := range raws {
		tc := raw.toolCall()
		if tc.Name == "" {
			return nil, s
		}
		calls = append(calls, tc)
	}
	return calls, strings.TrimSpace(rest[n:])
}

// decodeFirst decodes the first JSON value of s into v and returns the
// number of bytes it consumed.
func decodeFirst(s string, v any) (int, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	if err := dec.Decode(v); err != nil {
		return 0, err
	}
	return int(dec.InputOffset()), nil
}

// normalizeArguments accepts arguments as a JSON object or as a string
// holding JSON (the OpenAI wire shape) and returns raw JSON.
func normalizeArguments(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}")
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err == nil && json.Valid([]byte(inner)) {
			return json.RawMessage(inner)
		}
	}
	return json.RawMessage(trimmed)
}
