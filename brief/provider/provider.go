// Package provider is the single choke point for calls to an external text-completion service.
//
// Backends implement CompletionProvider. Client wraps a backend with a shared RateLimiter, a fixed pacing
// interval before every attempt, and a bounded retry loop.
package provider

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConfig reports missing or invalid credentials/configuration. It is never retried.
	ErrConfig = errors.New("completion provider not configured")

	// ErrRateLimited is returned by backends when the service signals a rate limit (HTTP 429).
	ErrRateLimited = errors.New("completion rate limited")

	// ErrInvalidRequest reports a Request that fails validation before any call is made.
	ErrInvalidRequest = errors.New("invalid completion request")

	// ErrEmptyCompletion is returned by backends when the service answers without any text.
	ErrEmptyCompletion = errors.New("completion returned no text")
)

// Request is one completion call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

func (r Request) Validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("%w: prompt is empty", ErrInvalidRequest)
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be > 0", ErrInvalidRequest)
	}
	if r.Temperature < 0 || r.Temperature > 1 {
		return fmt.Errorf("%w: temperature %.2f outside [0,1]", ErrInvalidRequest, r.Temperature)
	}
	return nil
}

// CompletionProvider is implemented once per text-completion backend.
type CompletionProvider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Validator is implemented by backends that can detect missing credentials without a network call.
// Validate must return an error wrapping ErrConfig.
type Validator interface {
	Validate() error
}

// CompletionError is surfaced once every attempt for a request has failed.
type CompletionError struct {
	Attempts int
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// ProviderFunc adapts a function to CompletionProvider.
type ProviderFunc func(ctx context.Context, req Request) (string, error)

func (f ProviderFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
