package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements RateLimitStore backed by Redis, so the
// limit is shared across API replicas. It uses a fixed window counter:
// INCR on a per-key counter whose TTL is the window duration.
type RedisRateLimitStore struct {
	client *redis.Client
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// Allow checks if a request from the given key should be allowed.
// Implements the RateLimitStore interface.
//
// On Redis errors the request is allowed: rate limiting is protection, not
// correctness, and a Redis outage must not take the API down with it.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	redisKey := "replay:ratelimit:" + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		slog.WarnContext(ctx, "rate limit store unavailable, allowing request",
			"key", key, "error", err)
		return true, 0
	}

	// First hit in a window opens it.
	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, config.WindowDuration).Err(); err != nil {
			slog.WarnContext(ctx, "failed to set rate limit window TTL",
				"key", key, "error", err)
		}
	}

	if count <= int64(config.RequestsPerWindow) {
		return true, 0
	}

	ttl, err := s.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		// Counter without TTL (EXPIRE failed earlier); reset it so the key
		// does not block forever.
		if ttl < 0 {
			_ = s.client.Expire(ctx, redisKey, config.WindowDuration).Err()
		}
		ttl = config.WindowDuration
	}

	retryAfter := int(ttl / time.Second)
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, retryAfter
}
