package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utrscan/utrscan/internal/ratelimit"
)

// rateLimitPrefix is the Redis key prefix for per-user request counters.
const rateLimitPrefix = keyNamespace + "ratelimit:"

// fixedWindowScript increments the counter and starts the window on the
// first hit. Returns the new count and the remaining TTL in milliseconds.
var fixedWindowScript = redis.NewScript(`
	local count = redis.call('INCR', KEYS[1])
	if count == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return {count, ttl}
`)

// RateLimiter is a fixed-window limiter whose counters live in Redis, so
// every replica enforces the same budget.
type RateLimiter struct {
	cache  *Cache
	limit  int
	window time.Duration
	logger *slog.Logger
}

var _ ratelimit.Limiter = (*RateLimiter)(nil)

// NewRateLimiter creates a Redis-backed limiter allowing limit requests per window.
func NewRateLimiter(c *Cache, limit int, window time.Duration, logger *slog.Logger) *RateLimiter {
	if limit <= 0 {
		limit = ratelimit.DefaultLimit
	}
	if window <= 0 {
		window = ratelimit.DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimiter{cache: c, limit: limit, window: window, logger: logger}
}

// Allow increments the counter for key. Redis failures fail open.
func (r *RateLimiter) Allow(ctx context.Context, key string) (ratelimit.Result, error) {
	now := time.Now()

	vals, err := fixedWindowScript.Run(ctx, r.cache.client,
		[]string{rateLimitKey(key)},
		r.window.Milliseconds(),
	).Int64Slice()
	if err != nil || len(vals) != 2 {
		r.logger.Warn("rate limit check failed, allowing request", "error", err)
		return ratelimit.Result{
			Allowed:   true,
			Limit:     r.limit,
			Remaining: r.limit,
			ResetAt:   now.Add(r.window),
		}, nil
	}

	return evaluateWindow(vals[0], vals[1], r.limit, now), nil
}

// evaluateWindow converts the script's counter and TTL into a Result.
func evaluateWindow(count, ttlMillis int64, limit int, now time.Time) ratelimit.Result {
	res := ratelimit.Result{
		Limit:   limit,
		ResetAt: now.Add(time.Duration(ttlMillis) * time.Millisecond),
	}
	if count > int64(limit) {
		return res
	}
	res.Allowed = true
	res.Remaining = limit - int(count)
	return res
}

func rateLimitKey(key string) string {
	return rateLimitPrefix + key
}
