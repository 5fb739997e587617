package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config holds rate limiting configuration
type Config struct {
	// Requests allowed per key within Window; 0 disables limiting
	Requests int
	Window   time.Duration
}

// DefaultConfig returns a default rate limiting configuration
func DefaultConfig() Config {
	return Config{
		Requests: 120,
		Window:   time.Minute,
	}
}

// Enabled reports whether the configuration limits anything
func (c Config) Enabled() bool {
	return c.Requests > 0
}

// RedisRateLimiter counts requests per key in fixed windows shared by every
// replica.
type RedisRateLimiter struct {
	client    redis.UniversalClient
	config    Config
	keyPrefix string
}

// NewRedisRateLimiter creates a new Redis-based rate limiter
func NewRedisRateLimiter(client redis.UniversalClient, config Config) *RedisRateLimiter {
	if config.Window <= 0 {
		config.Window = DefaultConfig().Window
	}
	return &RedisRateLimiter{
		client:    client,
		config:    config,
		keyPrefix: "ratelimit",
	}
}

// Allow counts a request against key and reports whether it is within the limit
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", r.keyPrefix, key)

	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit error: %w", err)
	}

	// the first request of a window starts its expiry
	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, r.config.Window).Err(); err != nil {
			return false, fmt.Errorf("rate limit expiry: %w", err)
		}
	}

	return count <= int64(r.config.Requests), nil
}

// Reset clears the counter of a key
func (r *RedisRateLimiter) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, fmt.Sprintf("%s:%s", r.keyPrefix, key)).Err()
}
