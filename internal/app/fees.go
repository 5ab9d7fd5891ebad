package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"qpesapay/internal/core/domain"
	"qpesapay/internal/core/ports"
)

// unitsPerTransfer is the number of fee units one standard transfer consumes:
// 21000 gas on Ethereum, ~250 vbytes on Bitcoin, a single flat unit on Tron.
var unitsPerTransfer = map[domain.Network]decimal.Decimal{
	domain.NetworkEthereum: decimal.NewFromInt(21000),
	domain.NetworkBitcoin:  decimal.NewFromInt(250),
	domain.NetworkTron:     decimal.NewFromInt(1),
}

// FeeEstimator computes the expected network fee for a payment from the
// provider's current per-unit rate snapshot. It never mutates provider state;
// the same snapshot always yields the same fee.
type FeeEstimator struct {
	provider ports.FeeProvider
	timeout  time.Duration
}

// NewFeeEstimator wires a provider with a caller-supplied timeout for live
// lookups. A timeout or provider failure surfaces as domain.ErrFeeUnavailable
// before anything is persisted; stale-data fallback only happens when the
// caller explicitly composes a FallbackFeeProvider.
func NewFeeEstimator(provider ports.FeeProvider, timeout time.Duration) *FeeEstimator {
	return &FeeEstimator{provider: provider, timeout: timeout}
}

// EstimateFee returns the fee for sending amount to addr, in the provider's
// quote currency.
func (e *FeeEstimator) EstimateFee(ctx context.Context, amount domain.Money, addr domain.Address) (domain.Money, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	network := addr.Network()
	rate, err := e.provider.CurrentRate(ctx, network)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return domain.Money{}, fmt.Errorf("%w: rate lookup for %s timed out", domain.ErrFeeUnavailable, network)
		}
		if errors.Is(err, domain.ErrFeeUnavailable) {
			return domain.Money{}, err
		}
		return domain.Money{}, fmt.Errorf("%w: %s", domain.ErrFeeUnavailable, network)
	}

	units, ok := unitsPerTransfer[network]
	if !ok {
		return domain.Money{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedNetwork, network)
	}
	return rate.Mul(units), nil
}

// StaticFeeProvider serves a fixed per-unit rate table. Used in tests and as
// the explicit fallback when the live source is down.
type StaticFeeProvider struct {
	rates map[domain.Network]domain.Money
}

// NewStaticFeeProvider copies the given table. A nil table yields the default
// per-unit rates (20 gwei-equivalent on Ethereum, 10 sat/vbyte on Bitcoin,
// ~1 TRX on Tron, all quoted in USD).
func NewStaticFeeProvider(rates map[domain.Network]domain.Money) *StaticFeeProvider {
	if rates == nil {
		rates = map[domain.Network]domain.Money{
			// 20 gwei at ~2000 USD/ETH is about 0.000040 USD per gas.
			domain.NetworkEthereum: domain.MustMoney("0.000040", domain.USD),
			domain.NetworkTron:     domain.MustMoney("1.00", domain.USD),
			// 10 sat/vbyte.
			domain.NetworkBitcoin: domain.MustMoney("0.00000010", domain.BTC),
		}
	}
	copied := make(map[domain.Network]domain.Money, len(rates))
	for k, v := range rates {
		copied[k] = v
	}
	return &StaticFeeProvider{rates: copied}
}

// CurrentRate returns the fixed per-unit rate for the network.
func (p *StaticFeeProvider) CurrentRate(_ context.Context, network domain.Network) (domain.Money, error) {
	rate, ok := p.rates[network]
	if !ok {
		return domain.Money{}, fmt.Errorf("%w: no static rate for %s", domain.ErrFeeUnavailable, network)
	}
	return rate, nil
}

// FallbackFeeProvider tries primary and, only on failure, the fallback.
// Falling back to possibly-stale data is an explicit composition choice made
// here by the caller wiring the provider, never implicit estimator behavior.
type FallbackFeeProvider struct {
	primary  ports.FeeProvider
	fallback ports.FeeProvider
}

func NewFallbackFeeProvider(primary, fallback ports.FeeProvider) *FallbackFeeProvider {
	return &FallbackFeeProvider{primary: primary, fallback: fallback}
}

func (p *FallbackFeeProvider) CurrentRate(ctx context.Context, network domain.Network) (domain.Money, error) {
	rate, err := p.primary.CurrentRate(ctx, network)
	if err == nil {
		return rate, nil
	}
	return p.fallback.CurrentRate(ctx, network)
}
