package agentloop

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	maxArgChars    = 220
	maxResultChars = 500
)

// ToToolLabel renders the short human label shown for a tool call.
func ToToolLabel(toolName string, input any) string {
	args, _ := input.(map[string]any)
	path, ok := GetStringArg(args, "path")
	if !ok {
		path, ok = GetStringArg(args, "filePath")
	}
	if !ok {
		path = "file"
	}
	command, ok := GetStringArg(args, "command")
	if !ok {
		command = "command"
	}

	switch toolName {
	case ToolEdit:
		return "Edited " + path
	case ToolShell:
		return "Ran " + command
	case ToolReadFile:
		return "Read " + path
	case ToolTodoWrite:
		return "Updated TODOs"
	case ToolTodoRead:
		return "Read TODOs"
	case ToolQuestion:
		return "Asked question"
	default:
		return toolName
	}
}

// SerializeToolArg renders tool input for display, cut at 220 characters.
func SerializeToolArg(v any) string {
	return truncateValue(v, maxArgChars)
}

// SerializeToolResult renders tool output for display, cut at 500
// characters.
func SerializeToolResult(v any) string {
	return truncateValue(v, maxResultChars)
}

func truncateValue(v any, limit int) string {
	text := stringify(v)
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

// stringify returns strings unchanged and JSON-encodes anything else.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.RawMessage:
		var buf bytes.Buffer
		if err := json.Compact(&buf, val); err != nil {
			return string(val)
		}
		return buf.String()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
