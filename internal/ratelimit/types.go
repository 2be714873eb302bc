package ratelimit

import (
	"context"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Limit     int
	Reset     time.Time
}

// ResetIn returns whole seconds until the window resets. Within one window
// consecutive values never increase.
func (r Result) ResetIn(now time.Time) int {
	seconds := int(r.Reset.Sub(now) / time.Second)
	if seconds < 0 {
		return 0
	}
	return seconds
}

// Limiter provides fixed-window rate limit checks.
type Limiter interface {
	// Allow records the attempt in the current window and reports whether
	// it is admitted.
	Allow(ctx context.Context, identity string, limit int, now time.Time) (Result, error)
	// Peek returns the current decision without consuming an admission.
	Peek(ctx context.Context, identity string, limit int, now time.Time) (Result, error)
}

// WindowStart floors now to the current wall-clock hour boundary.
func WindowStart(now time.Time) time.Time {
	return now.UTC().Truncate(time.Hour)
}

// windowReset returns the next hour boundary after now.
func windowReset(now time.Time) time.Time {
	return WindowStart(now).Add(time.Hour)
}
