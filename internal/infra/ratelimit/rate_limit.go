// Package ratelimit caps how often a caller may hit expensive endpoints.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/opsdeck/opsdeck/internal/infra/logger"
)

// Limiter decides whether a caller identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config configures a fixed-window limiter
type Config struct {
	Enabled bool
	Limit   int
	Window  time.Duration
	Prefix  string
}

// redisLimiter counts hits per key in a fixed window shared by every instance
type redisLimiter struct {
	client *redis.Client
	config Config
	log    logger.Logger
}

// New returns a Redis-backed limiter, or a limiter that always allows when disabled or client is nil
func New(client *redis.Client, config Config, log logger.Logger) Limiter {
	if !config.Enabled || client == nil {
		log.Info(context.Background(), "Rate limiting disabled", nil)
		return noopLimiter{}
	}
	if config.Prefix == "" {
		config.Prefix = "ratelimit"
	}

	log.Info(context.Background(), "Rate limiting initialized", map[string]interface{}{
		"limit":  config.Limit,
		"window": config.Window.String(),
	})
	return &redisLimiter{client: client, config: config, log: log}
}

func (l *redisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	fullKey := fmt.Sprintf("%s:%s", l.config.Prefix, key)

	count, err := l.client.Incr(ctx, fullKey).Result()
	if err != nil {
		l.log.Error(ctx, "Failed to increment rate limit counter", err, map[string]interface{}{"key": fullKey})
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		// first hit opens the window
		if err := l.client.Expire(ctx, fullKey, l.config.Window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	allowed := count <= int64(l.config.Limit)
	if !allowed {
		l.log.Warn(ctx, "Rate limit exceeded", map[string]interface{}{
			"key":   fullKey,
			"count": count,
			"limit": l.config.Limit,
		})
	}
	return allowed, nil
}

type noopLimiter struct{}

func (noopLimiter) Allow(ctx context.Context, key string) (bool, error) { return true, nil }
