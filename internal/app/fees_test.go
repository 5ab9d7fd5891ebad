package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qpesapay/internal/core/domain"
)

type failingProvider struct{ err error }

func (p failingProvider) CurrentRate(context.Context, domain.Network) (domain.Money, error) {
	return domain.Money{}, p.err
}

type slowProvider struct{ delay time.Duration }

func (p slowProvider) CurrentRate(ctx context.Context, _ domain.Network) (domain.Money, error) {
	select {
	case <-time.After(p.delay):
		return domain.MustMoney("1.00", domain.USD), nil
	case <-ctx.Done():
		return domain.Money{}, ctx.Err()
	}
}

func TestEstimateFee_EthereumUsesGasUnits(t *testing.T) {
	estimator := NewFeeEstimator(NewStaticFeeProvider(nil), time.Second)

	fee, err := estimator.EstimateFee(context.Background(), domain.MustMoney("100.000000", domain.USDT), ethRecipient(t))

	require.NoError(t, err)
	// 0.000040 USD/gas * 21000 gas.
	assert.True(t, fee.Equal(domain.MustMoney("0.84", domain.USD)), "got %s", fee)
}

func TestEstimateFee_BitcoinUsesVbytes(t *testing.T) {
	estimator := NewFeeEstimator(NewStaticFeeProvider(nil), time.Second)
	addr, err := domain.NewAddress("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", domain.NetworkBitcoin)
	require.NoError(t, err)

	fee, err := estimator.EstimateFee(context.Background(), domain.MustMoney("0.50000000", domain.BTC), addr)

	require.NoError(t, err)
	// 0.00000010 BTC/vbyte * 250 vbytes.
	assert.True(t, fee.Equal(domain.MustMoney("0.00002500", domain.BTC)), "got %s", fee)
}

func TestEstimateFee_DeterministicForSameSnapshot(t *testing.T) {
	estimator := NewFeeEstimator(NewStaticFeeProvider(nil), time.Second)
	amount := domain.MustMoney("100.000000", domain.USDT)

	first, err := estimator.EstimateFee(context.Background(), amount, ethRecipient(t))
	require.NoError(t, err)
	second, err := estimator.EstimateFee(context.Background(), amount, ethRecipient(t))
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
}

func TestEstimateFee_ProviderFailure(t *testing.T) {
	estimator := NewFeeEstimator(failingProvider{err: errors.New("connection refused")}, time.Second)

	_, err := estimator.EstimateFee(context.Background(), domain.MustMoney("100.000000", domain.USDT), ethRecipient(t))

	assert.ErrorIs(t, err, domain.ErrFeeUnavailable)
}

func TestEstimateFee_Timeout(t *testing.T) {
	estimator := NewFeeEstimator(slowProvider{delay: time.Second}, 10*time.Millisecond)

	_, err := estimator.EstimateFee(context.Background(), domain.MustMoney("100.000000", domain.USDT), ethRecipient(t))

	assert.ErrorIs(t, err, domain.ErrFeeUnavailable)
}

func TestFallbackFeeProvider(t *testing.T) {
	static := NewStaticFeeProvider(nil)
	provider := NewFallbackFeeProvider(failingProvider{err: domain.ErrFeeUnavailable}, static)

	rate, err := provider.CurrentRate(context.Background(), domain.NetworkTron)

	require.NoError(t, err)
	assert.True(t, rate.Equal(domain.MustMoney("1.00", domain.USD)))
}

func TestStaticFeeProvider_UnknownNetwork(t *testing.T) {
	provider := NewStaticFeeProvider(map[domain.Network]domain.Money{
		domain.NetworkEthereum: domain.MustMoney("0.000040", domain.USD),
	})

	_, err := provider.CurrentRate(context.Background(), domain.NetworkTron)

	assert.ErrorIs(t, err, domain.ErrFeeUnavailable)
}
