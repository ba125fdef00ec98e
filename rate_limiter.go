package cachewire

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket admission gate. Callers are never rejected:
// when the bucket is empty they are delayed until a token accrues.
//
// The bucket state is sampled under the mutex but the wait happens outside
// it, so concurrent waiters race on the refilled balance. That best-effort
// imprecision is intentional — the limiter bounds average throughput, it is
// not a fair scheduler.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64 // never negative, never exceeds capacity
	capacity   float64
	rate       float64 // tokens per second
	lastRefill time.Time
	clock      Clock
}

// NewRateLimiter creates a full bucket holding capacity tokens that refills
// at rate tokens per second.
func NewRateLimiter(capacity int, rate float64) *RateLimiter {
	return NewRateLimiterWithClock(capacity, rate, SystemClock())
}

// NewRateLimiterWithClock is NewRateLimiter with an injected clock.
func NewRateLimiterWithClock(capacity int, rate float64, clock Clock) *RateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if rate <= 0 {
		rate = 1
	}
	return &RateLimiter{
		tokens:     float64(capacity),
		capacity:   float64(capacity),
		rate:       rate,
		lastRefill: clock.Now(),
		clock:      clock,
	}
}

// Wait admits the caller, consuming one token. If no token is available it
// sleeps for (1 - tokens) / rate seconds, refills, and consumes what
// accrued, flooring the balance at zero. It returns early only when ctx is
// canceled during the sleep.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	rl.refillLocked()
	if rl.tokens >= 1 {
		rl.tokens--
		rl.mu.Unlock()
		return nil
	}
	wait := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
	rl.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}

	rl.mu.Lock()
	rl.refillLocked()
	rl.tokens--
	if rl.tokens < 0 {
		rl.tokens = 0
	}
	rl.mu.Unlock()
	return nil
}

// Tokens returns the current token balance after refilling.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}

func (rl *RateLimiter) refillLocked() {
	now := rl.clock.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	rl.tokens += elapsed * rl.rate
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.lastRefill = now
}
