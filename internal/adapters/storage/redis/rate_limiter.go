package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"qpesapay/internal/core/ports"
)

// RateLimiterAdapter implements the RateLimiterRepository port with a
// fixed-window counter in Redis.
type RateLimiterAdapter struct {
	rdb *redis.Client
}

var _ ports.RateLimiterRepository = (*RateLimiterAdapter)(nil)

func NewRateLimiterAdapter(rdb *redis.Client) *RateLimiterAdapter {
	return &RateLimiterAdapter{rdb: rdb}
}

// IsAllowed atomically increments the window counter for key and compares it
// against the limit. The first request in a window sets the expiry.
func (a *RateLimiterAdapter) IsAllowed(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	counterKey := "ratelimit:" + key

	count, err := a.rdb.Incr(ctx, counterKey).Result()
	if err != nil {
		return false, fmt.Errorf("redis INCR failed: %w", err)
	}
	if count == 1 {
		if err := a.rdb.Expire(ctx, counterKey, window).Err(); err != nil {
			return false, fmt.Errorf("redis EXPIRE failed: %w", err)
		}
	}
	return count <= int64(limit), nil
}
