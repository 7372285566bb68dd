package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter implements fixed-window rate limiting in Redis so
// limits are shared across instances
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultLoginRateLimitConfig()
	}
	if prefix == "" {
		prefix = "festival:ratelimit"
	}
	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Config returns the limiter configuration
func (rl *DistributedRateLimiter) Config() *RateLimitConfig {
	return rl.config
}

// Allow increments key's counter for the current window. The window starts
// at the first request and is not extended by later ones.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := rl.key(key)

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}
	if count == 1 {
		if err := rl.redis.Expire(ctx, redisKey, rl.config.WindowDuration).Err(); err != nil {
			return true, fmt.Errorf("redis error: %w", err)
		}
	} else if ttl, err := rl.redis.TTL(ctx, redisKey).Result(); err == nil && ttl < 0 {
		// a counter left without a TTL by a failed Expire would never reset
		rl.redis.Expire(ctx, redisKey, rl.config.WindowDuration)
	}

	return count <= int64(rl.config.RequestsPerWindow), nil
}

// RetryAfter returns the time until the window for key resets
func (rl *DistributedRateLimiter) RetryAfter(ctx context.Context, key string) time.Duration {
	ttl, err := rl.redis.TTL(ctx, rl.key(key)).Result()
	if err != nil || ttl <= 0 {
		return rl.config.WindowDuration
	}
	return ttl
}

func (rl *DistributedRateLimiter) key(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}
