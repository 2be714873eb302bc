package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lumenplan/chatgate/internal/models"
	"gorm.io/gorm"
)

// StoreLimiter persists window counters in the database, shared across all
// concurrent instances. Mutual exclusion for the counter is delegated to
// the store's atomic upsert-increment.
type StoreLimiter struct {
	db *gorm.DB
}

// NewStoreLimiter constructs a StoreLimiter.
func NewStoreLimiter(db *gorm.DB) *StoreLimiter {
	return &StoreLimiter{db: db}
}

// CountSince returns the admitted count for the identity window.
func (l *StoreLimiter) CountSince(ctx context.Context, identity string, windowStart time.Time) (int, error) {
	if l == nil || l.db == nil {
		return 0, fmt.Errorf("rate limit store: not initialized")
	}
	var row models.RateLimitWindow
	errFind := l.db.WithContext(ctx).
		Model(&models.RateLimitWindow{}).
		Select("count").
		Where("identity = ? AND window_start = ?", identity, windowStart).
		Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("rate limit store: count: %w", errFind)
	}
	return row.Count, nil
}

// Increment atomically bumps the identity window counter and returns the
// new count. Safe under concurrent callers across instances; row
// timestamps come from the caller's clock.
func (l *StoreLimiter) Increment(ctx context.Context, identity string, windowStart, now time.Time) (int, error) {
	if l == nil || l.db == nil {
		return 0, fmt.Errorf("rate limit store: not initialized")
	}
	now = now.UTC()
	var count int
	errExec := l.db.WithContext(ctx).Raw(`
		INSERT INTO rate_limit_windows (identity, window_start, count, created_at, updated_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (identity, window_start) DO UPDATE SET count = rate_limit_windows.count + 1, updated_at = ?
		RETURNING count`,
		identity, windowStart, now, now, now).Scan(&count).Error
	if errExec != nil {
		return 0, fmt.Errorf("rate limit store: increment: %w", errExec)
	}
	return count, nil
}

// Allow reads the current count and increments only when under the limit.
// Under concurrent racers at the ceiling this may overshoot by the racer
// count; it never undershoots.
func (l *StoreLimiter) Allow(ctx context.Context, identity string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || identity == "" {
		return Result{Allowed: true, Limit: limit}, nil
	}
	start := WindowStart(now)
	reset := windowReset(now)

	count, errCount := l.CountSince(ctx, identity, start)
	if errCount != nil {
		return Result{}, errCount
	}
	if count >= limit {
		return Result{Allowed: false, Remaining: 0, Limit: limit, Reset: reset}, nil
	}

	newCount, errIncrement := l.Increment(ctx, identity, start, now)
	if errIncrement != nil {
		return Result{}, errIncrement
	}
	remaining := limit - newCount
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining, Limit: limit, Reset: reset}, nil
}

// Peek returns the current window decision without incrementing.
func (l *StoreLimiter) Peek(ctx context.Context, identity string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || identity == "" {
		return Result{Allowed: true, Limit: limit}, nil
	}
	count, errCount := l.CountSince(ctx, identity, WindowStart(now))
	if errCount != nil {
		return Result{}, errCount
	}
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: remaining > 0, Remaining: remaining, Limit: limit, Reset: windowReset(now)}, nil
}

// PurgeBefore deletes window rows that started before the cutoff. Expired
// windows are dead weight once their hour has passed.
func (l *StoreLimiter) PurgeBefore(ctx context.Context, cutoff time.Time) error {
	if l == nil || l.db == nil {
		return fmt.Errorf("rate limit store: not initialized")
	}
	if errDelete := l.db.WithContext(ctx).
		Where("window_start < ?", cutoff).
		Delete(&models.RateLimitWindow{}).Error; errDelete != nil {
		return fmt.Errorf("rate limit store: purge: %w", errDelete)
	}
	return nil
}
