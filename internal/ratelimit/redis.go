package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keys expire shortly after their window closes; the slack covers clock
// skew between instances.
const redisWindowTTLSlack = 60 * time.Second

var redisIncrScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter implements a fixed hourly window rate limiter backed by
// Redis. Counter atomicity comes from the INCR script; overshoot by
// concurrent racers at the ceiling is tolerated.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisLimiter constructs a RedisLimiter.
func NewRedisLimiter(client *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: strings.TrimSpace(prefix),
	}
}

// Allow checks whether the request should be allowed in the current window.
func (l *RedisLimiter) Allow(ctx context.Context, identity string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || identity == "" || l == nil || l.client == nil {
		return Result{Allowed: true, Limit: limit}, nil
	}
	start := WindowStart(now)
	reset := windowReset(now)
	ttl := int((reset.Sub(now) + redisWindowTTLSlack) / time.Second)

	res, errEval := redisIncrScript.Run(ctx, l.client, []string{l.buildKey(identity, start)}, ttl).Result()
	if errEval != nil {
		return Result{}, errEval
	}
	count, errCount := asInt64(res)
	if errCount != nil {
		return Result{}, errCount
	}
	if count > int64(limit) {
		return Result{Allowed: false, Remaining: 0, Limit: limit, Reset: reset}, nil
	}
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining, Limit: limit, Reset: reset}, nil
}

// Peek returns the current window decision without incrementing.
func (l *RedisLimiter) Peek(ctx context.Context, identity string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || identity == "" || l == nil || l.client == nil {
		return Result{Allowed: true, Limit: limit}, nil
	}
	start := WindowStart(now)
	reset := windowReset(now)

	raw, errGet := l.client.Get(ctx, l.buildKey(identity, start)).Result()
	if errGet != nil {
		if errors.Is(errGet, redis.Nil) {
			return Result{Allowed: true, Remaining: limit, Limit: limit, Reset: reset}, nil
		}
		return Result{}, errGet
	}
	count, errParse := strconv.ParseInt(raw, 10, 64)
	if errParse != nil {
		return Result{}, errors.New("rate limit redis: unexpected counter value")
	}
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: remaining > 0, Remaining: remaining, Limit: limit, Reset: reset}, nil
}

func (l *RedisLimiter) buildKey(identity string, windowStart time.Time) string {
	startStr := strconv.FormatInt(windowStart.Unix(), 10)
	if l.prefix == "" {
		return identity + ":" + startStr
	}
	return l.prefix + ":" + identity + ":" + startStr
}

func asInt64(res any) (int64, error) {
	switch v := res.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	default:
		return 0, errors.New("rate limit redis: unexpected response type")
	}
}
