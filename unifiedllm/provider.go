package unifiedllm

import "context"

// ProviderAdapter is the interface every model backend implements.
type ProviderAdapter interface {
	// Name returns the provider identifier (e.g. "openrouter", "anthropic").
	Name() string

	// Complete sends a blocking request and returns the full response.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream sends a request and returns a channel of stream events. The
	// channel is closed when the response ends, after a StreamFinish or
	// StreamError event, or when ctx is cancelled.
	Stream(ctx context.Context, req Request) (<-chan StreamEvent, error)
}

// Closer is implemented by adapters that hold resources.
type Closer interface {
	Close() error
}
