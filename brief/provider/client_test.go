package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingProvider struct {
	calls atomic.Int32
	fn    func(call int) (string, error)
}

func (p *countingProvider) Complete(ctx context.Context, req Request) (string, error) {
	n := int(p.calls.Add(1))
	return p.fn(n)
}

type unconfiguredProvider struct {
	countingProvider
}

func (p *unconfiguredProvider) Validate() error {
	return fmt.Errorf("%w: API key not found", ErrConfig)
}

func newTestClient(p CompletionProvider, clock Clock) *Client {
	return NewClient(p, NewRateLimiter(0, time.Minute, clock), Options{
		PacingInterval:   2 * time.Second,
		RateLimitBackoff: time.Second,
		Clock:            clock,
		Logger:           testLogger(),
	})
}

var okRequest = Request{Prompt: "summarize", MaxTokens: 256, Temperature: 0.3}

func TestClient_Complete_SuccessPacesOnce(t *testing.T) {
	t.Parallel()

	clock := &recordingClock{}
	p := &countingProvider{fn: func(int) (string, error) { return "done", nil }}
	c := newTestClient(p, clock)

	text, err := c.Complete(context.Background(), okRequest)
	require.NoError(t, err)
	assert.Equal(t, "done", text)
	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.Sleeps())
}

func TestClient_Complete_RateLimitedExhaustsThreeAttempts(t *testing.T) {
	t.Parallel()

	clock := &recordingClock{}
	p := &countingProvider{fn: func(int) (string, error) {
		return "", fmt.Errorf("%w: HTTP 429", ErrRateLimited)
	}}
	c := newTestClient(p, clock)

	_, err := c.Complete(context.Background(), okRequest)
	require.Error(t, err)

	var ce *CompletionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 3, ce.Attempts)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(3), p.calls.Load())

	// pacing, backoff, pacing, backoff, pacing: no backoff after the final attempt.
	assert.Equal(t, []time.Duration{
		2 * time.Second, time.Second,
		2 * time.Second, time.Second,
		2 * time.Second,
	}, clock.Sleeps())
}

func TestClient_Complete_TransientErrorRetriesWithoutExtraBackoff(t *testing.T) {
	t.Parallel()

	clock := &recordingClock{}
	p := &countingProvider{fn: func(call int) (string, error) {
		if call < 3 {
			return "", errors.New("502 bad gateway")
		}
		return "recovered", nil
	}}
	c := newTestClient(p, clock)

	text, err := c.Complete(context.Background(), okRequest)
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, int32(3), p.calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, clock.Sleeps())
}

func TestClient_Complete_StringSniffedRateLimitBacksOff(t *testing.T) {
	t.Parallel()

	clock := &recordingClock{}
	p := &countingProvider{fn: func(call int) (string, error) {
		if call == 1 {
			return "", errors.New("Too Many Requests")
		}
		return "ok", nil
	}}
	c := newTestClient(p, clock)

	_, err := c.Complete(context.Background(), okRequest)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second, 2 * time.Second}, clock.Sleeps())
}

func TestClient_Complete_ConfigErrorShortCircuits(t *testing.T) {
	t.Parallel()

	clock := &recordingClock{}
	p := &unconfiguredProvider{countingProvider{fn: func(int) (string, error) { return "never", nil }}}
	c := newTestClient(p, clock)

	_, err := c.Complete(context.Background(), okRequest)
	require.ErrorIs(t, err, ErrConfig)

	var ce *CompletionError
	assert.False(t, errors.As(err, &ce))
	assert.Equal(t, int32(0), p.calls.Load())
	assert.Empty(t, clock.Sleeps())
	assert.Equal(t, 0, c.Limiter().State().CallsThisWindow)
}

func TestClient_Complete_ConfigErrorFromBackendIsNotRetried(t *testing.T) {
	t.Parallel()

	p := &countingProvider{fn: func(int) (string, error) {
		return "", fmt.Errorf("%w: rejected credentials", ErrConfig)
	}}
	c := newTestClient(p, &recordingClock{})

	_, err := c.Complete(context.Background(), okRequest)
	require.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestClient_Complete_InvalidRequest(t *testing.T) {
	t.Parallel()

	tests := map[string]Request{
		"empty prompt":      {Prompt: "", MaxTokens: 10, Temperature: 0.3},
		"zero max tokens":   {Prompt: "p", MaxTokens: 0, Temperature: 0.3},
		"temperature above": {Prompt: "p", MaxTokens: 10, Temperature: 1.5},
		"temperature below": {Prompt: "p", MaxTokens: 10, Temperature: -0.1},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			p := &countingProvider{fn: func(int) (string, error) { return "x", nil }}
			c := newTestClient(p, &recordingClock{})
			_, err := c.Complete(context.Background(), req)
			require.ErrorIs(t, err, ErrInvalidRequest)
			assert.Equal(t, int32(0), p.calls.Load())
		})
	}
}

func TestClient_Complete_NilProvider(t *testing.T) {
	t.Parallel()

	var c *Client
	_, err := c.Complete(context.Background(), okRequest)
	require.ErrorIs(t, err, ErrConfig)
}

func TestClient_Complete_CancelledContextStopsRetrying(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	p := &countingProvider{fn: func(int) (string, error) {
		cancel()
		return "", context.Canceled
	}}
	c := newTestClient(p, &recordingClock{})

	_, err := c.Complete(ctx, okRequest)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestClient_Complete_SharesLimiterAcrossCalls(t *testing.T) {
	t.Parallel()

	clock := &recordingClock{}
	p := &countingProvider{fn: func(int) (string, error) { return "ok", nil }}
	c := newTestClient(p, clock)

	for range 4 {
		_, err := c.Complete(context.Background(), okRequest)
		require.NoError(t, err)
	}
	assert.Equal(t, 4, c.Limiter().State().CallsThisWindow)
}

func TestClient_Complete_ConcurrentCallsRespectWindowCeiling(t *testing.T) {
	t.Parallel()

	const ceiling = 3
	clock := newFakeClock()
	p := &countingProvider{fn: func(int) (string, error) { return "ok", nil }}
	c := NewClient(p, NewRateLimiter(ceiling, time.Minute, clock), Options{
		PacingInterval:   -1,
		RateLimitBackoff: -1,
		Clock:            clock,
		Logger:           testLogger(),
	})

	var wg sync.WaitGroup
	for range ceiling + 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Complete(context.Background(), okRequest)
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool {
		return p.calls.Load() == ceiling && clock.Waiters() == 1
	}, 2*time.Second, time.Millisecond)

	clock.Advance(59 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(ceiling), p.calls.Load())

	clock.Advance(time.Second)
	wg.Wait()
	assert.Equal(t, int32(ceiling+1), p.calls.Load())
	assert.Equal(t, 1, c.Limiter().State().CallsThisWindow)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := map[string]struct {
		err  error
		want outcome
	}{
		"nil":             {nil, outcomeOK},
		"config":          {fmt.Errorf("wrap: %w", ErrConfig), outcomeFatal},
		"invalid request": {ErrInvalidRequest, outcomeFatal},
		"deadline":        {context.DeadlineExceeded, outcomeFatal},
		"rate limited":    {fmt.Errorf("x: %w", ErrRateLimited), outcomeRateLimited},
		"429 text":        {errors.New("status 429"), outcomeRateLimited},
		"server error":    {errors.New("500 internal server error"), outcomeRetryable},
		"empty":           {ErrEmptyCompletion, outcomeRetryable},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(ctx, tc.err))
		})
	}
}
