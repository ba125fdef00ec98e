package cachewire

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestRateLimiterImmediateWhenTokensAvailable(t *testing.T) {
	rl := NewRateLimiter(5, 1)

	start := time.Now()
	for i := 0; i < 5; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("burst within capacity should not wait, took %v", elapsed)
	}
}

func TestRateLimiterBurstEventuallyAdmitsAll(t *testing.T) {
	// Capacity 2, 50 tokens/s. A burst of 6 needs ~4 refilled tokens, so the
	// last caller completes no earlier than roughly (6-2)/50 = 80ms in.
	rl := NewRateLimiter(2, 50)

	const callers = 6
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rl.Wait(context.Background()); err != nil {
				t.Errorf("Wait returned error: %v", err)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	if elapsed < 60*time.Millisecond {
		t.Errorf("burst of %d drained too fast: %v", callers, elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("burst of %d took unreasonably long: %v", callers, elapsed)
	}
}

func TestRateLimiterTokensNeverExceedCapacity(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiterWithClock(3, 100, clock)

	clock.Advance(time.Hour)
	if tokens := rl.Tokens(); tokens > 3 {
		t.Errorf("tokens %f exceed capacity 3", tokens)
	}
}

func TestRateLimiterTokensNeverNegative(t *testing.T) {
	rl := NewRateLimiter(1, 1000)

	for i := 0; i < 10; i++ {
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait returned error: %v", err)
		}
		if tokens := rl.Tokens(); tokens < 0 {
			t.Fatalf("tokens went negative: %f", tokens)
		}
	}
}

func TestRateLimiterWaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter(1, 0.1) // one token per 10 seconds

	if err := rl.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait should be immediate: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := rl.Wait(ctx)
	if err == nil {
		t.Fatal("expected context error while waiting for a token")
	}
	if time.Since(start) > time.Second {
		t.Error("canceled Wait should return promptly")
	}
}
