package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/hims-api/pkg/config"
)

const pingTimeout = 3 * time.Second

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     Addr(cfg),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", Addr(cfg), err)
	}
	return client, nil
}

// NewOptionalRedis returns nil instead of failing when Redis is unreachable.
// Callers treat a nil client as "feature disabled".
func NewOptionalRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *redis.Client {
	client, err := NewRedis(ctx, cfg)
	if err != nil {
		if logger != nil {
			logger.Warn("redis unavailable, continuing without it", zap.Error(err))
		}
		return nil
	}
	return client
}

// Addr formats host:port for the configured server.
func Addr(cfg config.RedisConfig) string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}
