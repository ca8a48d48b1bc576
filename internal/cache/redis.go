// Package cache provides the Redis access layer: cached auth identities and
// the shared rate-limit counters.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyNamespace prefixes every key this service writes, so a shared Redis
// can be flushed selectively.
const keyNamespace = "utrscan:"

// connectTimeout bounds the startup ping when ctx has no deadline.
const connectTimeout = 5 * time.Second

// ErrCacheMiss is returned when a key is absent from Redis.
var ErrCacheMiss = errors.New("cache miss")

// Option adjusts the client options parsed from the URL.
type Option func(*redis.Options)

// WithPoolSize overrides the connection pool size.
func WithPoolSize(n int) Option {
	return func(o *redis.Options) {
		if n > 0 {
			o.PoolSize = n
		}
	}
}

// Cache wraps the Redis client shared by the auth cache and the limiter.
type Cache struct {
	client *redis.Client
}

// New connects to redisURL and verifies the connection with a ping.
func New(ctx context.Context, redisURL string, opts ...Option) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Auth lookups and limiter hits sit on the request path; fail fast.
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.DialTimeout = 2 * time.Second
	opt.ReadTimeout = 500 * time.Millisecond
	opt.WriteTimeout = 500 * time.Millisecond
	opt.PoolTimeout = time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	for _, o := range opts {
		o(opt)
	}

	client := redis.NewClient(opt)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
