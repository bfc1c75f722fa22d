package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitRepository keeps fixed-window request counters in Redis.
type RateLimitRepository struct {
	client *redis.Client
	prefix string
}

// NewRateLimitRepository constructs the repository. A nil client disables counting.
func NewRateLimitRepository(client *redis.Client) *RateLimitRepository {
	return &RateLimitRepository{client: client, prefix: "ratelimit:"}
}

// Enabled reports whether a Redis client is configured.
func (r *RateLimitRepository) Enabled() bool {
	return r != nil && r.client != nil
}

// Hit increments the counter for key and returns the new count and the time
// until the window resets. The window starts on the first hit.
func (r *RateLimitRepository) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if !r.Enabled() {
		return 0, 0, nil
	}
	fullKey := r.prefix + key

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.ExpireNX(ctx, fullKey, window)
	ttl := pipe.PTTL(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("redis rate limit %s: %w", key, err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = window
	}
	return incr.Val(), remaining, nil
}
