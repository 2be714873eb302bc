package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	window int64
	count  int
}

// MemoryLimiter implements a fixed hourly window rate limiter in process
// memory. It is correct only when a single instance serves all traffic;
// that precondition is expressed by configuration, not checked at runtime.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*memoryEntry
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		counters: make(map[string]*memoryEntry),
	}
}

// Allow checks whether the request should be allowed in the current window.
func (l *MemoryLimiter) Allow(_ context.Context, identity string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || identity == "" {
		return Result{Allowed: true, Limit: limit}, nil
	}
	window := WindowStart(now).Unix()
	reset := windowReset(now)

	l.mu.Lock()
	entry := l.entry(identity, window)
	if entry.count >= limit {
		l.mu.Unlock()
		return Result{Allowed: false, Remaining: 0, Limit: limit, Reset: reset}, nil
	}
	entry.count++
	remaining := limit - entry.count
	l.mu.Unlock()
	return Result{Allowed: true, Remaining: remaining, Limit: limit, Reset: reset}, nil
}

// Peek returns the current window decision without incrementing.
func (l *MemoryLimiter) Peek(_ context.Context, identity string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || identity == "" {
		return Result{Allowed: true, Limit: limit}, nil
	}
	window := WindowStart(now).Unix()
	reset := windowReset(now)

	l.mu.Lock()
	entry := l.entry(identity, window)
	remaining := limit - entry.count
	l.mu.Unlock()
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: remaining > 0, Remaining: remaining, Limit: limit, Reset: reset}, nil
}

// entry returns the counter for the identity, lazily resetting it when the
// window has rolled over. Caller must hold l.mu.
func (l *MemoryLimiter) entry(identity string, window int64) *memoryEntry {
	entry := l.counters[identity]
	if entry == nil {
		entry = &memoryEntry{window: window}
		l.counters[identity] = entry
	}
	if entry.window != window {
		entry.window = window
		entry.count = 0
	}
	return entry
}
