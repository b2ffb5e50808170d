package agentloop

import (
	"fmt"
	"strings"
)

// TruncationMode specifies how output is truncated.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

const fallbackCharLimit = 30000

// DefaultToolCharLimits caps the tool output sent back to the model.
var DefaultToolCharLimits = map[string]int{
	ToolReadFile:  50000,
	ToolShell:     30000,
	ToolEdit:      2000,
	ToolTodoWrite: 10000,
	ToolTodoRead:  10000,
	ToolQuestion:  10000,
}

// DefaultTruncationModes selects which part of an oversized output is kept.
var DefaultTruncationModes = map[string]TruncationMode{
	ToolReadFile:  TruncateHeadTail,
	ToolShell:     TruncateHeadTail,
	ToolEdit:      TruncateTail,
	ToolTodoWrite: TruncateTail,
	ToolTodoRead:  TruncateTail,
	ToolQuestion:  TruncateTail,
}

// DefaultToolLineLimits is applied after character truncation.
var DefaultToolLineLimits = map[string]int{
	ToolShell: 256,
}

// TruncateOutput applies character-based truncation to output.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}

	removed := len(output) - maxChars
	if mode == TruncateTail {
		return fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed.]\n\n", removed) +
			output[len(output)-maxChars:]
	}

	half := maxChars / 2
	return output[:half] +
		fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. "+
			"Re-run the tool with narrower parameters to see specific parts.]\n\n", removed) +
		output[len(output)-half:]
}

// TruncateLines applies line-based truncation using head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if maxLines <= 0 || len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateToolOutput applies character truncation and then line
// truncation for toolName. charLimits overrides DefaultToolCharLimits.
func TruncateToolOutput(output string, toolName string, charLimits map[string]int) string {
	maxChars, ok := charLimits[toolName]
	if !ok || maxChars <= 0 {
		maxChars, ok = DefaultToolCharLimits[toolName]
		if !ok {
			maxChars = fallbackCharLimit
		}
	}

	mode, ok := DefaultTruncationModes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}

	result := TruncateOutput(output, maxChars, mode)
	return TruncateLines(result, DefaultToolLineLimits[toolName])
}
