package unifiedllm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// RetryPolicy controls how a failed provider call is retried. Delays grow
// by Multiplier from BaseDelay and are capped at MaxDelay.
type RetryPolicy struct {
	// MaxRetries counts attempts after the first call.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// Jitter scales each delay by a random factor in [0.5, 1.5).
	Jitter  bool
	OnRetry func(err error, attempt int, delay time.Duration)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2,
		Jitter:     true,
	}
}

// Backoff returns the delay before retry number attempt (0-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	d := float64(p.BaseDelay)
	for range attempt {
		d *= max(p.Multiplier, 1)
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			break
		}
	}
	if p.MaxDelay > 0 {
		d = min(d, float64(p.MaxDelay))
	}
	if p.Jitter {
		d *= 0.5 + rand.Float64()
	}
	return time.Duration(d)
}

// wait picks the delay before retrying err. A provider Retry-After wins
// over the backoff, but one longer than MaxDelay stops retrying.
func (p RetryPolicy) wait(err error, attempt int) (time.Duration, bool) {
	var rl *RateLimitError
	if !errors.As(err, &rl) || rl.RetryAfter == nil {
		return p.Backoff(attempt), true
	}
	d := time.Duration(*rl.RetryAfter * float64(time.Second))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return 0, false
	}
	return d, true
}

// Retry calls fn until it succeeds, fails with a non-retryable error, or
// the policy's retries are spent. Cancelling ctx while waiting returns an
// AbortError.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= policy.MaxRetries || !IsRetryable(err) {
			return zero, err
		}
		delay, ok := policy.wait(err, attempt)
		if !ok {
			return zero, err
		}
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &AbortError{SDKError: SDKError{Message: "request cancelled during retry", Cause: ctx.Err()}}
		case <-timer.C:
		}
	}
}
