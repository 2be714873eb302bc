package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryLimiterExhaustsWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 6, 1, 14, 10, 0, 0, time.UTC)
	limit := 3

	lastRemaining := limit
	for i := 0; i < limit; i++ {
		result, err := limiter.Allow(context.Background(), "user:1", limit, now)
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !result.Allowed {
			t.Fatalf("expected call %d allowed", i)
		}
		if result.Remaining >= lastRemaining {
			t.Fatalf("expected remaining to decrease, got %d after %d", result.Remaining, lastRemaining)
		}
		lastRemaining = result.Remaining
	}
	if lastRemaining != 0 {
		t.Fatalf("expected remaining 0 after %d calls, got %d", limit, lastRemaining)
	}

	result, err := limiter.Allow(context.Background(), "user:1", limit, now)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if result.Allowed {
		t.Fatalf("expected denial after limit")
	}
	if result.Remaining != 0 {
		t.Fatalf("expected remaining 0 on denial, got %d", result.Remaining)
	}
}

func TestMemoryLimiterResetInNeverIncreases(t *testing.T) {
	limiter := NewMemoryLimiter()
	start := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)

	previous := 3600
	for _, offset := range []time.Duration{0, 10 * time.Minute, 30 * time.Minute, 59 * time.Minute} {
		now := start.Add(offset)
		result, err := limiter.Allow(context.Background(), "user:1", 100, now)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		resetIn := result.ResetIn(now)
		if resetIn > previous {
			t.Fatalf("resetIn increased from %d to %d", previous, resetIn)
		}
		previous = resetIn
	}
}

func TestMemoryLimiterWindowBoundaryResets(t *testing.T) {
	limiter := NewMemoryLimiter()
	limit := 2
	now := time.Date(2025, 6, 1, 14, 59, 0, 0, time.UTC)

	for i := 0; i < limit; i++ {
		if result, _ := limiter.Allow(context.Background(), "user:1", limit, now); !result.Allowed {
			t.Fatalf("expected call %d allowed", i)
		}
	}
	if result, _ := limiter.Allow(context.Background(), "user:1", limit, now); result.Allowed {
		t.Fatalf("expected denial at ceiling")
	}

	next := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	result, err := limiter.Allow(context.Background(), "user:1", limit, next)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected fresh window admission")
	}
	if result.Remaining != limit-1 {
		t.Fatalf("expected remaining %d, got %d", limit-1, result.Remaining)
	}
}

func TestMemoryLimiterPeekDoesNotConsume(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 6, 1, 14, 10, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		result, err := limiter.Peek(context.Background(), "user:1", 2, now)
		if err != nil {
			t.Fatalf("peek: %v", err)
		}
		if !result.Allowed || result.Remaining != 2 {
			t.Fatalf("expected untouched window, got %+v", result)
		}
	}
}

func TestMemoryLimiterConcurrentRacersAtCeiling(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Date(2025, 6, 1, 14, 10, 0, 0, time.UTC)
	limit := 3
	for i := 0; i < limit-1; i++ {
		if result, _ := limiter.Allow(context.Background(), "user:1", limit, now); !result.Allowed {
			t.Fatalf("expected call %d allowed", i)
		}
	}

	results := make(chan Result, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, errAllow := limiter.Allow(context.Background(), "user:1", limit, now)
			if errAllow != nil {
				t.Errorf("allow: %v", errAllow)
				return
			}
			results <- result
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for result := range results {
		if result.Allowed {
			admitted++
		}
	}
	// The mutex serializes racers: exactly one takes the last slot.
	if admitted != 1 {
		t.Fatalf("expected exactly 1 admission at the ceiling, got %d", admitted)
	}
}

func TestMemoryLimiterZeroLimitUnlimited(t *testing.T) {
	limiter := NewMemoryLimiter()
	result, err := limiter.Allow(context.Background(), "user:1", 0, time.Now())
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected zero limit to admit")
	}
}
