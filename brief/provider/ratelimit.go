package provider

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the length of one rate window.
const DefaultWindow = 60 * time.Second

// RateState is a snapshot of the limiter's window counter.
type RateState struct {
	CallsThisWindow int
	WindowStart     time.Time
}

// RateLimiter caps the number of calls admitted per window. All callers of a Client share one limiter,
// so the aggregate call rate stays under the ceiling regardless of how many chunks are in flight.
type RateLimiter struct {
	clock   Clock
	window  time.Duration
	ceiling int

	mu      sync.Mutex
	started bool
	state   RateState
}

// NewRateLimiter returns a limiter admitting at most ceiling calls per window.
// A non-positive ceiling disables the cap.
func NewRateLimiter(ceiling int, window time.Duration, clock Clock) *RateLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &RateLimiter{clock: clock, window: window, ceiling: ceiling}
}

// Acquire blocks until the current window has room, then counts the call against it.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	for {
		wait, ok := l.tryAcquire()
		if ok {
			return nil
		}
		if err := l.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// tryAcquire is the read-check-increment critical section.
func (l *RateLimiter) tryAcquire() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if !l.started || now.Sub(l.state.WindowStart) >= l.window {
		l.started = true
		l.state = RateState{WindowStart: now}
	}
	if l.ceiling <= 0 || l.state.CallsThisWindow < l.ceiling {
		l.state.CallsThisWindow++
		return 0, true
	}
	return l.state.WindowStart.Add(l.window).Sub(now), false
}

func (l *RateLimiter) State() RateState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
