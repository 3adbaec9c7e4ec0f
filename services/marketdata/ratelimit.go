package marketdata

import (
	"context"
	"log"
	"sync"
	"time"
)

// RateLimiter enforces a rolling per-window call quota. Callers over the
// quota are suspended until the oldest call leaves the window; bursts are
// spread out, never rejected.
type RateLimiter struct {
	mu       sync.Mutex
	requests []time.Time
	limit    int
	window   time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter allowing limit calls per window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit < 1 {
		limit = 1
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Wait blocks until a call may start, then records it. It returns the
// context error if ctx ends first; nothing is recorded in that case.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := rl.now()
		rl.prune(now)
		if len(rl.requests) < rl.limit {
			rl.requests = append(rl.requests, now)
			rl.mu.Unlock()
			return nil
		}
		wait := rl.window - now.Sub(rl.requests[0])
		rl.mu.Unlock()

		log.Printf("Rate limit reached, sleeping for %s", wait.Round(time.Millisecond))
		if err := rl.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// InWindow reports how many calls the current window holds.
func (rl *RateLimiter) InWindow() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.prune(rl.now())
	return len(rl.requests)
}

// prune drops timestamps at least one window old. Must hold mu.
func (rl *RateLimiter) prune(now time.Time) {
	i := 0
	for i < len(rl.requests) && now.Sub(rl.requests[i]) >= rl.window {
		i++
	}
	if i > 0 {
		rl.requests = append(rl.requests[:0], rl.requests[i:]...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
