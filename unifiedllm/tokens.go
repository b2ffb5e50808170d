package unifiedllm

import (
	"encoding/json"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter estimates token usage for providers that do not report it.
// All models are approximated with the GPT-4 encoding.
type TokenCounter struct {
	codec tokenizer.Codec
}

var (
	defaultCounter     *TokenCounter
	defaultCounterOnce sync.Once
)

// DefaultTokenCounter returns a shared counter, loading the codec once.
func DefaultTokenCounter() *TokenCounter {
	defaultCounterOnce.Do(func() {
		codec, err := tokenizer.ForModel(tokenizer.GPT4)
		if err != nil {
			defaultCounter = &TokenCounter{}
			return
		}
		defaultCounter = &TokenCounter{codec: codec}
	})
	return defaultCounter
}

// Count returns the number of tokens in text, falling back to four
// characters per token when no codec is available.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	n, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return n
}

// CountRequest estimates the prompt tokens of req: every message's text,
// tool call arguments and tool results, plus the tool schemas.
func (tc *TokenCounter) CountRequest(req Request) int {
	total := 0
	for _, msg := range req.Messages {
		for _, part := range msg.Content {
			switch part.Kind {
			case ContentText, ContentThinking:
				total += tc.Count(part.Text)
			case ContentToolCall:
				if part.ToolCall != nil {
					total += tc.Count(part.ToolCall.Name) + tc.Count(string(part.ToolCall.Arguments))
				}
			case ContentToolResult:
				if part.ToolResult != nil {
					total += tc.Count(string(part.ToolResult.Content))
				}
			}
		}
	}
	for _, tool := range req.Tools {
		schema, _ := json.Marshal(tool.Parameters)
		total += tc.Count(tool.Name) + tc.Count(tool.Description) + tc.Count(string(schema))
	}
	return total
}
