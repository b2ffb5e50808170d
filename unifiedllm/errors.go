package unifiedllm

import (
	"context"
	"errors"
	"fmt"
)

// SDKError is the root of every error this package returns.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *SDKError) Unwrap() error { return e.Cause }

// ProviderError is a failure reported by a model provider. Retryable is
// the provider-side verdict that IsRetryable trusts.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
	Retryable  bool
	// RetryAfter is the provider's requested wait in seconds.
	RetryAfter *float64
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Provider, e.Message, e.StatusCode)
}

func (e *ProviderError) providerError() *ProviderError { return e }

type (
	AuthenticationError struct{ ProviderError }
	AccessDeniedError   struct{ ProviderError }
	NotFoundError       struct{ ProviderError }
	InvalidRequestError struct{ ProviderError }
	RateLimitError      struct{ ProviderError }
	ServerError         struct{ ProviderError }
	ContentFilterError  struct{ ProviderError }
	ContextLengthError  struct{ ProviderError }
)

type (
	RequestTimeoutError struct{ SDKError }
	AbortError          struct{ SDKError }
	NetworkError        struct{ SDKError }
	ConfigurationError  struct{ SDKError }
)

// ErrorFromStatusCode maps an HTTP status code to the matching error type.
func ErrorFromStatusCode(statusCode int, message, provider string, cause error) error {
	return classifyStatus(ProviderError{
		SDKError:   SDKError{Message: message, Cause: cause},
		Provider:   provider,
		StatusCode: statusCode,
	})
}

// classifyStatus wraps pe in the type its StatusCode implies and sets the
// retry verdict. Unknown statuses stay a plain, retryable ProviderError.
func classifyStatus(pe ProviderError) error {
	switch code := pe.StatusCode; {
	case code == 401:
		return &AuthenticationError{pe}
	case code == 403:
		return &AccessDeniedError{pe}
	case code == 404:
		return &NotFoundError{pe}
	case code == 408:
		return &RequestTimeoutError{pe.SDKError}
	case code == 413:
		return &ContextLengthError{pe}
	case code == 400 || code == 422:
		return &InvalidRequestError{pe}
	case code == 429:
		pe.Retryable = true
		return &RateLimitError{pe}
	case code >= 500 && code <= 504:
		pe.Retryable = true
		return &ServerError{pe}
	}
	pe.Retryable = true
	return &pe
}

// IsRetryable reports whether err may succeed on a second attempt.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var pe interface{ providerError() *ProviderError }
	if errors.As(err, &pe) {
		return pe.providerError().Retryable
	}

	var abort *AbortError
	if errors.As(err, &abort) {
		return false
	}
	var cfg *ConfigurationError
	return !errors.As(err, &cfg)
}
