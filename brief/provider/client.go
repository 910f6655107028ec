package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	DefaultPacingInterval   = 2 * time.Second
	DefaultRateLimitBackoff = 1 * time.Second
	DefaultMaxAttempts      = 3
)

// Options tune a Client. Zero values fall back to the defaults above.
type Options struct {
	// PacingInterval is slept before every attempt, even when the window has room.
	PacingInterval time.Duration
	// RateLimitBackoff is slept after a rate-limited attempt, on top of the next attempt's pacing.
	RateLimitBackoff time.Duration
	MaxAttempts      int
	Clock            Clock
	Logger           *slog.Logger
}

// Client issues completions through one backend, one RateLimiter and a bounded retry loop.
// It is safe for concurrent use.
type Client struct {
	provider CompletionProvider
	limiter  *RateLimiter
	clock    Clock
	logger   *slog.Logger

	pacing      time.Duration
	backoff     time.Duration
	maxAttempts int
}

// NewClient wires a backend to a limiter. A nil limiter admits every call.
// Negative durations disable pacing or backoff.
func NewClient(p CompletionProvider, limiter *RateLimiter, opts Options) *Client {
	c := &Client{
		provider:    p,
		limiter:     limiter,
		clock:       opts.Clock,
		logger:      opts.Logger,
		pacing:      opts.PacingInterval,
		backoff:     opts.RateLimitBackoff,
		maxAttempts: opts.MaxAttempts,
	}
	if c.clock == nil {
		c.clock = SystemClock{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.pacing == 0 {
		c.pacing = DefaultPacingInterval
	}
	if c.backoff == 0 {
		c.backoff = DefaultRateLimitBackoff
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.limiter == nil {
		c.limiter = NewRateLimiter(0, DefaultWindow, c.clock)
	}
	return c
}

// Limiter exposes the shared limiter so several pipelines can be built on one budget.
func (c *Client) Limiter() *RateLimiter { return c.limiter }

type outcome int

const (
	outcomeOK outcome = iota
	outcomeRateLimited
	outcomeRetryable
	outcomeFatal
)

func (o outcome) String() string {
	switch o {
	case outcomeOK:
		return "ok"
	case outcomeRateLimited:
		return "rate_limited"
	case outcomeRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// Complete returns the completion text for req. Configuration errors are returned immediately;
// rate-limit signals and other request failures are retried up to the attempt bound, after which
// a *CompletionError is returned.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c == nil || c.provider == nil {
		return "", fmt.Errorf("%w: no completion provider", ErrConfig)
	}
	if err := req.Validate(); err != nil {
		return "", err
	}
	if v, ok := c.provider.(Validator); ok {
		if err := v.Validate(); err != nil {
			if !errors.Is(err, ErrConfig) {
				err = fmt.Errorf("%w: %v", ErrConfig, err)
			}
			return "", err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return "", err
		}
		if err := c.clock.Sleep(ctx, c.pacing); err != nil {
			return "", err
		}

		start := c.clock.Now()
		text, err := c.provider.Complete(ctx, req)
		res := classify(ctx, err)
		switch res {
		case outcomeOK:
			if attempt > 1 {
				c.logger.Info("completion succeeded after retry", "attempt", attempt)
			}
			return text, nil
		case outcomeFatal:
			return "", err
		}

		lastErr = err
		c.logger.Warn("completion attempt failed",
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"outcome", res.String(),
			"error", err,
			"attempt_duration_ms", c.clock.Now().Sub(start).Milliseconds())

		if res == outcomeRateLimited && attempt < c.maxAttempts {
			if err := c.clock.Sleep(ctx, c.backoff); err != nil {
				return "", err
			}
		}
	}
	return "", &CompletionError{Attempts: c.maxAttempts, Err: lastErr}
}

func classify(ctx context.Context, err error) outcome {
	if err == nil {
		return outcomeOK
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return outcomeFatal
	}
	if errors.Is(err, ErrConfig) || errors.Is(err, ErrInvalidRequest) {
		return outcomeFatal
	}
	if errors.Is(err, ErrRateLimited) || isRateLimitError(err) {
		return outcomeRateLimited
	}
	return outcomeRetryable
}

// isRateLimitError catches rate-limit signals from backends that do not return typed errors.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "resource_exhausted")
}

// statusError maps an HTTP status from a backend error onto the taxonomy.
func statusError(backend string, status int, err error) error {
	switch {
	case status == 429:
		return fmt.Errorf("%w: %s: %v", ErrRateLimited, backend, err)
	case status == 401 || status == 403:
		return fmt.Errorf("%w: %s rejected credentials: %v", ErrConfig, backend, err)
	default:
		return fmt.Errorf("%s: %w", backend, err)
	}
}
