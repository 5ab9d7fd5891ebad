package fees

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"qpesapay/internal/core/domain"
	"qpesapay/internal/core/ports"
)

// CachingProvider decorates another provider with a Redis snapshot cache.
// TTL semantics are owned here, explicitly, instead of hiding a module-level
// cache inside the estimator: a cached rate is served only within its TTL,
// after which the origin is consulted again.
type CachingProvider struct {
	origin ports.FeeProvider
	rdb    *redis.Client
	ttl    time.Duration
}

var _ ports.FeeProvider = (*CachingProvider)(nil)

func NewCachingProvider(origin ports.FeeProvider, rdb *redis.Client, ttl time.Duration) *CachingProvider {
	return &CachingProvider{origin: origin, rdb: rdb, ttl: ttl}
}

type cachedRate struct {
	Rate     string `json:"rate"`
	Currency string `json:"currency"`
}

func (p *CachingProvider) CurrentRate(ctx context.Context, network domain.Network) (domain.Money, error) {
	key := "feerate:" + string(network)

	if raw, err := p.rdb.Get(ctx, key).Result(); err == nil {
		if rate, ok := decodeRate(raw); ok {
			return rate, nil
		}
		// Corrupt cache entry: fall through to the origin and overwrite.
	}

	rate, err := p.origin.CurrentRate(ctx, network)
	if err != nil {
		return domain.Money{}, err
	}

	raw, err := json.Marshal(cachedRate{
		Rate:     rate.Amount().String(),
		Currency: rate.Currency().String(),
	})
	if err == nil {
		// Cache writes are best effort; a failed SET must not fail the
		// estimate that already has a fresh rate in hand.
		p.rdb.Set(ctx, key, raw, p.ttl)
	}
	return rate, nil
}

func decodeRate(raw string) (domain.Money, bool) {
	var c cachedRate
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return domain.Money{}, false
	}
	amount, err := decimal.NewFromString(c.Rate)
	if err != nil {
		return domain.Money{}, false
	}
	currency, err := domain.ParseCurrency(c.Currency)
	if err != nil {
		return domain.Money{}, false
	}
	rate, err := domain.NewMoney(amount, currency)
	if err != nil {
		return domain.Money{}, false
	}
	return rate, true
}
