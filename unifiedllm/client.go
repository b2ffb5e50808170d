package unifiedllm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// StreamMiddleware wraps a streaming provider call.
type StreamMiddleware func(ctx context.Context, req Request, next func(context.Context, Request) (<-chan StreamEvent, error)) (<-chan StreamEvent, error)

// Client routes requests to registered provider adapters and applies
// stream middleware.
type Client struct {
	providers       map[string]ProviderAdapter
	defaultProvider string
	streamMW        []StreamMiddleware
	mu              sync.RWMutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

func WithProvider(name string, adapter ProviderAdapter) ClientOption {
	return func(c *Client) {
		c.providers[name] = adapter
	}
}

func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) {
		c.defaultProvider = name
	}
}

func WithStreamMiddleware(mw ...StreamMiddleware) ClientOption {
	return func(c *Client) {
		c.streamMW = append(c.streamMW, mw...)
	}
}

// NewClient creates a Client. With a single provider and no explicit
// default, that provider becomes the default.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		providers: make(map[string]ProviderAdapter),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.defaultProvider == "" && len(c.providers) == 1 {
		for name := range c.providers {
			c.defaultProvider = name
		}
	}
	return c
}

// RegisterProvider adds a provider adapter to the client.
func (c *Client) RegisterProvider(name string, adapter ProviderAdapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = adapter
	if c.defaultProvider == "" {
		c.defaultProvider = name
	}
}

func (c *Client) resolveProvider(req Request) (ProviderAdapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	name := req.Provider
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: "no provider specified and no default provider configured",
		}}
	}
	adapter, ok := c.providers[name]
	if !ok {
		return nil, &ConfigurationError{SDKError: SDKError{
			Message: fmt.Sprintf("provider %q is not registered", name),
		}}
	}
	return adapter, nil
}

// Complete sends a blocking request to the resolved provider.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	adapter, err := c.resolveProvider(req)
	if err != nil {
		return nil, err
	}
	if req.Provider == "" {
		req.Provider = adapter.Name()
	}
	return adapter.Complete(ctx, req)
}

// Stream sends a streaming request through middleware to the resolved
// provider. The first registered middleware runs outermost.
func (c *Client) Stream(ctx context.Context, req Request) (<-chan StreamEvent, error) {
	adapter, err := c.resolveProvider(req)
	if err != nil {
		return nil, err
	}
	if req.Provider == "" {
		req.Provider = adapter.Name()
	}

	handler := func(ctx context.Context, r Request) (<-chan StreamEvent, error) {
		return adapter.Stream(ctx, r)
	}
	for i := len(c.streamMW) - 1; i >= 0; i-- {
		mw := c.streamMW[i]
		next := handler
		handler = func(ctx context.Context, r Request) (<-chan StreamEvent, error) {
			return mw(ctx, r, next)
		}
	}
	return handler(ctx, req)
}

// Close releases resources held by all registered providers.
func (c *Client) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var firstErr error
	for _, adapter := range c.providers {
		if closer, ok := adapter.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// RetryStreamMiddleware retries opening a stream under policy. Errors that
// arrive as events after the stream opened are not retried.
func RetryStreamMiddleware(policy RetryPolicy) StreamMiddleware {
	return func(ctx context.Context, req Request, next func(context.Context, Request) (<-chan StreamEvent, error)) (<-chan StreamEvent, error) {
		return Retry(ctx, policy, func(ctx context.Context) (<-chan StreamEvent, error) {
			return next(ctx, req)
		})
	}
}

// LoggingStreamMiddleware logs each stream's outcome, duration and usage.
func LoggingStreamMiddleware(logger *slog.Logger) StreamMiddleware {
	return func(ctx context.Context, req Request, next func(context.Context, Request) (<-chan StreamEvent, error)) (<-chan StreamEvent, error) {
		start := time.Now()
		in, err := next(ctx, req)
		if err != nil {
			logger.Warn("model stream failed to open", "provider", req.Provider, "model", req.Model, "error", err)
			return nil, err
		}

		out := make(chan StreamEvent)
		go func() {
			defer close(out)
			for ev := range in {
				switch ev.Type {
				case StreamFinish:
					attrs := []any{"provider", req.Provider, "model", req.Model, "duration_ms", time.Since(start).Milliseconds()}
					if ev.FinishReason != nil {
						attrs = append(attrs, "finish_reason", ev.FinishReason.Reason)
					}
					if ev.Usage != nil {
						attrs = append(attrs, "input_tokens", ev.Usage.InputTokens, "output_tokens", ev.Usage.OutputTokens)
					}
					logger.Debug("model stream finished", attrs...)
				case StreamError:
					logger.Warn("model stream error", "provider", req.Provider, "model", req.Model, "error", ev.Error)
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					// Drain so the producer can exit.
					for range in {
					}
					return
				}
			}
		}()
		return out, nil
	}
}
