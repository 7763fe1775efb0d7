package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:tenant:"

// RateLimiter enforces a per-tenant fixed-window request limit backed by a
// shared Redis counter, so every API instance sees the same window.
type RateLimiter struct {
	client            *Client
	requestsPerMinute int
	burst             int
}

// NewRateLimiter creates a limiter allowing requestsPerMinute sustained
// requests per tenant plus a burst allowance on top.
func NewRateLimiter(client *Client, requestsPerMinute, burst int) *RateLimiter {
	return &RateLimiter{
		client:            client,
		requestsPerMinute: requestsPerMinute,
		burst:             burst,
	}
}

// Allow records one request for the tenant and reports whether it fits in
// the current window. Returns (allowed, remaining, resetTime, error).
func (r *RateLimiter) Allow(ctx context.Context, tenantID string) (bool, int, time.Time, error) {
	counterKey := rateLimitPrefix + tenantID
	windowEnd := time.Now().Truncate(time.Minute).Add(time.Minute)

	pipe := r.client.rdb.Pipeline()
	incrCmd := pipe.Incr(ctx, counterKey)
	// first request in the window owns the expiry
	pipe.ExpireNX(ctx, counterKey, time.Minute)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return false, 0, time.Time{}, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	count := incrCmd.Val()
	limit := int64(r.requestsPerMinute + r.burst)
	remaining := int(limit - count)
	if remaining < 0 {
		remaining = 0
	}

	return count <= limit, remaining, windowEnd, nil
}

// Reset clears the tenant's current window counter.
func (r *RateLimiter) Reset(ctx context.Context, tenantID string) error {
	return r.client.rdb.Del(ctx, rateLimitPrefix+tenantID).Err()
}
