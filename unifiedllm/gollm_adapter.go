package unifiedllm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmAdapter wraps a gollm.LLM instance and implements ProviderAdapter.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
	model    string
	tokens   *TokenCounter
}

// GollmAdapterOption configures a GollmAdapter.
type GollmAdapterOption func(*gollmAdapterConfig)

type gollmAdapterConfig struct {
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

func WithMaxTokens(n int) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.maxTokens = n
	}
}

func WithTemperature(t float64) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.temperature = t
	}
}

// WithGollmOptions adds extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.extraOpts = append(c.extraOpts, opts...)
	}
}

// NewGollmAdapter creates an adapter for a gollm provider and model.
func NewGollmAdapter(provider, apiKey, model string, opts ...GollmAdapterOption) (*GollmAdapter, error) {
	if model == "" {
		return nil, &ConfigurationError{SDKError: SDKError{Message: "model is required for provider " + provider}}
	}
	cfg := &gollmAdapterConfig{
		maxTokens:   8192,
		temperature: 0.2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // retried by the tool loop
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: fmt.Sprintf("create gollm client for provider %s", provider),
			Cause:   err,
		}}
	}
	return NewGollmAdapterFromLLM(provider, model, llm), nil
}

// NewGollmAdapterFromLLM wraps an existing gollm.LLM instance.
func NewGollmAdapterFromLLM(provider, model string, llm gollm.LLM) *GollmAdapter {
	return &GollmAdapter{
		provider: provider,
		llm:      llm,
		model:    model,
		tokens:   DefaultTokenCounter(),
	}
}

func (a *GollmAdapter) Name() string {
	return a.provider
}

// Model returns the model the adapter was created for.
func (a *GollmAdapter) Model() string {
	return a.model
}

func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := a.translateRequest(req)
	a.applyRequestOptions(req)

	text, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, a.translateError(err)
	}
	visible, calls := splitToolCalls(text)
	return a.buildResponse(req, visible, calls, text), nil
}

// Stream emits text deltas as gollm produces tokens. A tool-call envelope
// at the end of the text is withheld from the deltas and emitted as
// start/delta/end events once the stream completes.
func (a *GollmAdapter) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	prompt := a.translateRequest(req)
	a.applyRequestOptions(req)

	if !a.llm.SupportsStreaming() {
		text, err := a.llm.Generate(ctx, prompt)
		if err != nil {
			return nil, a.translateError(err)
		}
		ch := make(chan StreamEvent)
		go a.emit(ctx, ch, req, func(yield func(string) bool) error {
			yield(text)
			return nil
		})
		return ch, nil
	}

	stream, err := a.llm.Stream(ctx, prompt)
	if err != nil {
		return nil, a.translateError(err)
	}

	ch := make(chan StreamEvent)
	go func() {
		defer stream.Close()
		a.emit(ctx, ch, req, func(yield func(string) bool) error {
			for {
				token, err := stream.Next(ctx)
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return a.translateError(err)
				}
				if token == nil || token.Text == "" {
					continue
				}
				if !yield(token.Text) {
					return ctx.Err()
				}
			}
		})
	}()
	return ch, nil
}

// emit drives one response: it pulls text chunks from produce, forwards
// visible text, then emits parsed tool calls and the finish event. ch is
// closed on return.
func (a *GollmAdapter) emit(ctx context.Context, ch chan<- StreamEvent, req Request, produce func(yield func(string) bool) error) {
	defer close(ch)

	send := func(ev StreamEvent) bool {
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var (
		scanner  toolCallScanner
		fullText strings.Builder
		visible  strings.Builder
	)
	err := produce(func(chunk string) bool {
		fullText.WriteString(chunk)
		out := scanner.Write(chunk)
		if out == "" {
			return true
		}
		visible.WriteString(out)
		return send(StreamEvent{Type: TextDelta, Delta: out})
	})
	if err != nil {
		send(StreamEvent{Type: StreamError, Error: err})
		return
	}

	tail, calls := scanner.Finish()
	if tail != "" {
		visible.WriteString(tail)
		if !send(StreamEvent{Type: TextDelta, Delta: tail}) {
			return
		}
	}

	for _, tc := range calls {
		if !send(StreamEvent{Type: ToolCallStart, ToolCall: &ToolCall{ID: tc.ID, Name: tc.Name}}) {
			return
		}
		if !send(StreamEvent{Type: ToolCallDelta, Delta: string(tc.Arguments), ToolCall: &ToolCall{ID: tc.ID, Name: tc.Name}}) {
			return
		}
		if !send(StreamEvent{Type: ToolCallEnd, ToolCall: &tc}) {
			return
		}
	}

	resp := a.buildResponse(req, strings.TrimSpace(visible.String()), calls, fullText.String())
	send(StreamEvent{
		Type:         StreamFinish,
		FinishReason: &resp.FinishReason,
		Usage:        &resp.Usage,
		Response:     resp,
	})
}

// toolCallInstruction tells the model how to request tools when the
// provider path returns plain text.
const toolCallInstruction = `When you need to use a tool, end your reply with a single JSON object of the form {"tool_calls":[{"name":"<tool name>","arguments":{...}}]} and nothing after it.`

// translateRequest flattens the conversation into a gollm prompt. gollm
// takes one prompt string, so earlier turns are rendered as labelled
// transcript lines.
func (a *GollmAdapter) translateRequest(req Request) *gollm.Prompt {
	var systemParts, transcript []string

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			systemParts = append(systemParts, msg.TextContent())
		case RoleUser:
			transcript = append(transcript, msg.TextContent())
		case RoleAssistant:
			if text := msg.TextContent(); text != "" {
				transcript = append(transcript, "[Assistant]: "+text)
			}
			for _, tc := range msg.ToolCalls() {
				transcript = append(transcript, fmt.Sprintf("[Tool Call %s]: %s %s", tc.ID, tc.Name, string(tc.Arguments)))
			}
		case RoleTool:
			for _, part := range msg.Content {
				if part.Kind != ContentToolResult || part.ToolResult == nil {
					continue
				}
				var content string
				if err := json.Unmarshal(part.ToolResult.Content, &content); err != nil {
					content = string(part.ToolResult.Content)
				}
				label := "Tool Result"
				if part.ToolResult.IsError {
					label = "Tool Error"
				}
				transcript = append(transcript, fmt.Sprintf("[%s %s]: %s", label, part.ToolResult.ToolCallID, content))
			}
		}
	}

	if len(req.Tools) > 0 && (req.ToolChoice == nil || req.ToolChoice.Mode != "none") {
		systemParts = append(systemParts, toolCallInstruction)
	}

	promptText := strings.Join(transcript, "\n\n")
	if promptText == "" {
		promptText = "Hello"
	}

	var promptOpts []gollm.PromptOption
	if len(systemParts) > 0 {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(strings.Join(systemParts, "\n\n"), gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens != nil {
		promptOpts = append(promptOpts, gollm.WithMaxLength(*req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		tools := make([]gollm.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools))
	}
	if req.ToolChoice != nil {
		promptOpts = append(promptOpts, gollm.WithToolChoice(req.ToolChoice.Mode))
	}

	return gollm.NewPrompt(promptText, promptOpts...)
}

func (a *GollmAdapter) applyRequestOptions(req Request) {
	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	if req.Temperature != nil {
		a.llm.SetOption("temperature", *req.Temperature)
	}
	if req.MaxTokens != nil {
		a.llm.SetOption("max_tokens", *req.MaxTokens)
	}
}

func (a *GollmAdapter) buildResponse(req Request, text string, calls []ToolCall, rawText string) *Response {
	model := req.Model
	if model == "" {
		model = a.model
	}

	var content []ContentPart
	if text != "" {
		content = append(content, TextPart(text))
	}
	for _, tc := range calls {
		content = append(content, ToolCallPart(tc.ID, tc.Name, tc.Arguments))
	}

	finish := FinishReason{Reason: "stop", Raw: "stop"}
	if len(calls) > 0 {
		finish = FinishReason{Reason: "tool_calls", Raw: "tool_calls"}
	}

	input := a.tokens.CountRequest(req)
	output := a.tokens.Count(rawText)
	return &Response{
		ID:           "resp_" + uuid.NewString()[:8],
		Model:        model,
		Provider:     a.provider,
		Message:      Message{Role: RoleAssistant, Content: content},
		FinishReason: finish,
		Usage:        Usage{InputTokens: input, OutputTokens: output, TotalTokens: input + output},
	}
}

// translateError classifies a gollm error by its message, since gollm does
// not expose status codes.
func (a *GollmAdapter) translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &AbortError{SDKError: SDKError{Message: "request cancelled", Cause: err}}
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	pe := ProviderError{SDKError: SDKError{Message: msg, Cause: err}, Provider: a.provider}

	containsAny := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}
	switch {
	case containsAny("401", "unauthorized", "invalid api key"):
		pe.StatusCode = 401
	case containsAny("403", "forbidden"):
		pe.StatusCode = 403
	case containsAny("404", "not found"):
		pe.StatusCode = 404
	case containsAny("429", "rate limit"):
		pe.StatusCode = 429
	case containsAny("context length", "too many tokens"):
		pe.StatusCode = 413
	case containsAny("500", "502", "503", "internal server"):
		pe.StatusCode = 500
	case containsAny("timeout"):
		pe.StatusCode = 408
	case containsAny("content filter", "safety"):
		return &ContentFilterError{pe}
	}
	return classifyStatus(pe)
}
