// Package ratelimit implements an optional distributed submission
// limiter, checked by Submit right after a request enters VALIDATING
// and before structural validation; a refusal is audited as a DENY
// (spec §5: this is a synchronous, CPU/IO-bound check — not a suspension point
// inside EXECUTING, so it doesn't interact with the concurrency model's
// single-mutex guard).
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter caps the rate of admitted requests per actor.
type Limiter interface {
	// Allow reports whether actor may submit another request right
	// now. A Limiter must fail open or closed consistently and say
	// which: this one fails closed (an error talking to the backing
	// store is treated as "not allowed"), matching the kernel's
	// overall fail-closed posture.
	Allow(ctx context.Context, actor string) (bool, error)
}

// NoLimit is a Limiter that never throttles — the default when no
// rate limiter is configured.
type NoLimit struct{}

func (NoLimit) Allow(ctx context.Context, actor string) (bool, error) { return true, nil }

// RedisLimiter implements a fixed-window counter per actor using a
// Redis INCR/EXPIRE pair, suitable for sharing a submission budget
// across multiple kernel processes that would otherwise each enforce
// their own independent (and therefore inconsistent) limit.
type RedisLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

// NewRedisLimiter returns a RedisLimiter allowing at most limit
// requests per actor per window.
func NewRedisLimiter(client *redis.Client, limit int64, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: "kernels:ratelimit:"}
}

func (l *RedisLimiter) Allow(ctx context.Context, actor string) (bool, error) {
	key := l.prefix + actor

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: redis incr failed: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: redis expire failed: %w", err)
		}
	}
	return count <= l.limit, nil
}
