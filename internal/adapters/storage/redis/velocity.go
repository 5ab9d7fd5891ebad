package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"qpesapay/internal/core/domain"
	"qpesapay/internal/core/ports"
)

// VelocityTracker accounts per-user daily spend in Redis. Cap values are
// injected configuration; this adapter only owns the rolling counters.
// Amounts are stored as integer minor units at each currency's canonical
// precision, so the counters stay exact.
type VelocityTracker struct {
	rdb  *redis.Client
	caps map[domain.Currency]domain.Money
}

var _ ports.VelocityTracker = (*VelocityTracker)(nil)

func NewVelocityTracker(rdb *redis.Client, caps map[domain.Currency]domain.Money) *VelocityTracker {
	return &VelocityTracker{rdb: rdb, caps: caps}
}

// RecordAndCheck adds amount to the user's UTC-day total and reports whether
// the total is still within the configured cap. Currencies without a cap are
// always allowed.
func (t *VelocityTracker) RecordAndCheck(ctx context.Context, userID uuid.UUID, amount domain.Money) (bool, error) {
	cap, ok := t.caps[amount.Currency()]
	if !ok {
		return true, nil
	}

	key := dayKey(userID, amount.Currency())
	minor := minorUnits(amount)
	total, err := t.rdb.IncrBy(ctx, key, minor).Result()
	if err != nil {
		return false, fmt.Errorf("redis INCRBY failed: %w", err)
	}
	if total == minor {
		// First spend of the day; keep the counter a little past midnight so
		// late retries still see it.
		if err := t.rdb.Expire(ctx, key, 26*time.Hour).Err(); err != nil {
			return false, fmt.Errorf("redis EXPIRE failed: %w", err)
		}
	}

	capMinor := minorUnits(cap)
	return total <= capMinor, nil
}

// Refund subtracts a previously recorded amount from the user's UTC-day
// total, so submissions that were debited but created nothing (duplicate
// replays, rejected requests) do not burn the cap.
func (t *VelocityTracker) Refund(ctx context.Context, userID uuid.UUID, amount domain.Money) error {
	if _, ok := t.caps[amount.Currency()]; !ok {
		return nil
	}

	key := dayKey(userID, amount.Currency())
	if err := t.rdb.DecrBy(ctx, key, minorUnits(amount)).Err(); err != nil {
		return fmt.Errorf("redis DECRBY failed: %w", err)
	}
	return nil
}

func dayKey(userID uuid.UUID, currency domain.Currency) string {
	day := time.Now().UTC().Format("2006-01-02")
	return fmt.Sprintf("velocity:%s:%s:%s", userID, currency, day)
}

func minorUnits(m domain.Money) int64 {
	return m.Amount().Shift(m.Currency().Decimals()).IntPart()
}
