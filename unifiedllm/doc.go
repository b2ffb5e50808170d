// Package unifiedllm is kodit's provider-agnostic model client. It wraps
// gollm (github.com/teilomillet/gollm) behind the ProviderAdapter
// interface and exposes requests, responses and a typed stream of events.
//
// The GollmAdapter streams text tokens as they arrive. Tool calls come
// back from gollm as a JSON envelope at the end of the completion text;
// the adapter withholds that envelope from the text deltas and re-emits
// each call as a ToolCallStart, ToolCallDelta, ToolCallEnd triple.
//
// Client routes by provider name and applies StreamMiddleware, such as
// RetryStreamMiddleware and LoggingStreamMiddleware, around every stream.
//
//	adapter, err := unifiedllm.NewGollmAdapter("openrouter", key, "anthropic/claude-sonnet-4")
//	client := unifiedllm.NewClient(
//	    unifiedllm.WithProvider("openrouter", adapter),
//	    unifiedllm.WithStreamMiddleware(unifiedllm.RetryStreamMiddleware(unifiedllm.DefaultRetryPolicy())),
//	)
//	events, err := client.Stream(ctx, unifiedllm.Request{Messages: msgs, Tools: defs})
package unifiedllm
