// Package ratelimit throttles the cast-vote entry point. The Redis limiter
// fails open: the ballot path has its own fail-closed guards, and dropping
// legitimate voters because the limiter's store blinks is the worse trade.
package ratelimit

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marcelojr/votemap/internal/domain"
)

var ErrRateLimitExceeded = fmt.Errorf("too many requests")

// RedisLimiter counts actions per key in fixed windows.
type RedisLimiter struct {
	client    *redis.Client
	limit     int
	window    time.Duration
	keyPrefix string
	logger    *slog.Logger
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, prefix string, logger *slog.Logger) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{
		client:    client,
		limit:     limit,
		window:    window,
		keyPrefix: prefix,
		logger:    logger,
	}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) error {
	if r.client == nil || r.limit <= 0 || r.window <= 0 {
		// Misconfiguration degrades to permissive.
		return nil
	}

	redisKey := r.buildKey(key)
	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		// Fail open on store trouble.
		if r.logger != nil {
			r.logger.Warn("rate limiter unavailable, allowing request", "err", err)
		}
		return nil
	}

	if count == 1 {
		if err := r.client.Expire(ctx, redisKey, r.window).Err(); err != nil {
			if r.logger != nil {
				r.logger.Warn("rate limiter expire failed", "err", err)
			}
			return nil
		}
	}

	if int(count) > r.limit {
		return ErrRateLimitExceeded
	}

	return nil
}

func (r *RedisLimiter) buildKey(key string) string {
	// SHA-1 keeps raw IP/UA material out of Redis keyspace.
	hash := sha1.Sum([]byte(key))
	return fmt.Sprintf("%s:%s", r.keyPrefix, hex.EncodeToString(hash[:]))
}

var _ domain.RateLimiter = (*RedisLimiter)(nil)
