package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utrscan/utrscan/internal/model"
)

const (
	// authCachePrefix is the Redis key prefix for verified identities.
	authCachePrefix = keyNamespace + "auth:"
	// AuthCacheTTL bounds how long a verified key skips the Argon2 check.
	AuthCacheTTL = 5 * time.Minute
)

// cachedIdentity is the JSON form of model.AuthContext stored in Redis.
type cachedIdentity struct {
	UserID    string `json:"user_id"`
	KeyPrefix string `json:"key_prefix"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
}

// GetAuthContext retrieves a cached identity by cache key.
// Returns ErrCacheMiss when absent or unreadable.
func (c *Cache) GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error) {
	data, err := c.client.Get(ctx, authCachePrefix+cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cached cachedIdentity
	if err := json.Unmarshal(data, &cached); err != nil {
		// Corrupted entry, treat as miss
		return nil, ErrCacheMiss
	}

	return &model.AuthContext{
		UserID:    cached.UserID,
		KeyPrefix: cached.KeyPrefix,
		Name:      cached.Name,
		Email:     cached.Email,
		IsAdmin:   cached.IsAdmin,
	}, nil
}

// SetAuthContext caches a verified identity.
func (c *Cache) SetAuthContext(ctx context.Context, cacheKey string, ac *model.AuthContext) error {
	data, err := json.Marshal(cachedIdentity{
		UserID:    ac.UserID,
		KeyPrefix: ac.KeyPrefix,
		Name:      ac.Name,
		Email:     ac.Email,
		IsAdmin:   ac.IsAdmin,
	})
	if err != nil {
		return fmt.Errorf("marshal auth context: %w", err)
	}

	return c.client.Set(ctx, authCachePrefix+cacheKey, data, AuthCacheTTL).Err()
}
