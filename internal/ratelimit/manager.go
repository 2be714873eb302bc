package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lumenplan/chatgate/internal/config"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const breakerDuration = 30 * time.Second

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// FailOpenHook observes fail-open admissions for auditing.
type FailOpenHook func(identity string, err error)

// Manager wraps a limiter backend with the gate's failure policy: backend
// errors admit the request instead of denying it. Availability is
// prioritized over strict quota enforcement; this trade-off is deliberate
// and must be preserved.
type Manager struct {
	limiter    Limiter
	nowFn      func() time.Time
	onFailOpen FailOpenHook

	mu           sync.Mutex
	breakerUntil time.Time
}

// NewManager constructs a Manager around a backend with default
// dependencies when nil.
func NewManager(limiter Limiter, nowFn func() time.Time) *Manager {
	if limiter == nil {
		limiter = NewMemoryLimiter()
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Manager{limiter: limiter, nowFn: nowFn}
}

// NewFromConfig selects the limiter backend for the configured deployment
// mode and wraps it in a Manager.
func NewFromConfig(cfg config.Config, conn *gorm.DB, newClient RedisClientFactory) (*Manager, error) {
	switch cfg.DeployMode {
	case config.ModeLocal:
		return NewManager(NewMemoryLimiter(), nil), nil
	case config.ModeShared:
		if conn == nil {
			return nil, fmt.Errorf("rate limit: shared mode requires a database connection")
		}
		return NewManager(NewStoreLimiter(conn), nil), nil
	case config.ModeRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("rate limit: redis mode requires an address")
		}
		if newClient == nil {
			newClient = redis.NewClient
		}
		client := newClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewManager(NewRedisLimiter(client, cfg.Redis.Prefix), nil), nil
	default:
		return nil, fmt.Errorf("rate limit: unknown deploy mode: %q", cfg.DeployMode)
	}
}

// SetFailOpenHook registers an observer for fail-open admissions.
func (m *Manager) SetFailOpenHook(hook FailOpenHook) {
	if m == nil {
		return
	}
	m.onFailOpen = hook
}

// Check returns the admission decision for one request, consuming quota
// when admitted. It never returns an error: a backend failure yields an
// allowed decision with the full limit remaining.
func (m *Manager) Check(ctx context.Context, identity string, limit int) Result {
	if m == nil || limit <= 0 || identity == "" {
		return Result{Allowed: true, Limit: limit}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()

	if m.isBreakerActive(now) {
		return m.failOpen(identity, nil, limit, now)
	}
	result, errAllow := m.limiter.Allow(ctx, identity, limit, now)
	if errAllow != nil {
		m.tripBreaker(errAllow, now)
		return m.failOpen(identity, errAllow, limit, now)
	}
	return result
}

// Peek returns the current decision without consuming quota, failing open
// like Check.
func (m *Manager) Peek(ctx context.Context, identity string, limit int) Result {
	if m == nil || limit <= 0 || identity == "" {
		return Result{Allowed: true, Limit: limit}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()

	if m.isBreakerActive(now) {
		return m.failOpen(identity, nil, limit, now)
	}
	result, errPeek := m.limiter.Peek(ctx, identity, limit, now)
	if errPeek != nil {
		m.tripBreaker(errPeek, now)
		return m.failOpen(identity, errPeek, limit, now)
	}
	return result
}

func (m *Manager) failOpen(identity string, err error, limit int, now time.Time) Result {
	if err != nil && m.onFailOpen != nil {
		m.onFailOpen(identity, err)
	}
	return Result{Allowed: true, Remaining: limit, Limit: limit, Reset: now.Add(time.Hour)}
}

func (m *Manager) isBreakerActive(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(breakerDuration)
	log.WithError(err).Error("rate limit: backend unavailable, failing open")
}
