package app

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qpesapay/internal/core/domain"
)

func ethRecipient(t *testing.T) domain.Address {
	t.Helper()
	addr, err := domain.NewAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", domain.NetworkEthereum)
	require.NoError(t, err)
	return addr
}

func validRequest(t *testing.T) domain.PaymentRequest {
	t.Helper()
	req, err := domain.NewPaymentRequest(uuid.New(), domain.MustMoney("100.000000", domain.USDT), ethRecipient(t), "key-1")
	require.NoError(t, err)
	return req
}

func kinds(violations []domain.Violation) []domain.ErrorKind {
	out := make([]domain.ErrorKind, len(violations))
	for i, v := range violations {
		out[i] = v.Kind
	}
	return out
}

func TestValidate_ValidRequest(t *testing.T) {
	v := NewPaymentValidator(DefaultLimits())

	assert.Empty(t, v.Validate(validRequest(t)))
}

func TestValidate_ReportsAllViolationsAtOnce(t *testing.T) {
	// A request that breaks several independent rules must surface every one
	// of them in a single pass.
	limits := DefaultLimits()
	limits.EnabledNetworks = map[domain.Network]bool{domain.NetworkBitcoin: true}
	v := NewPaymentValidator(limits)

	req := validRequest(t)
	req.Amount = domain.MustMoney("-5.000000", domain.USDT)
	req.IdempotencyKey = ""
	req.Description = strings.Repeat("x", 501)

	got := kinds(v.Validate(req))

	assert.Contains(t, got, domain.KindAmountNotPositive)
	assert.Contains(t, got, domain.KindUnsupportedNetwork)
	assert.Contains(t, got, domain.KindMissingIdempotencyKey)
	assert.Contains(t, got, domain.KindDescriptionTooLong)
	assert.Len(t, got, 4)
}

func TestValidate_AmountBounds(t *testing.T) {
	v := NewPaymentValidator(DefaultLimits())

	req := validRequest(t)
	req.Amount = domain.MustMoney("0.001000", domain.USDT)
	assert.Equal(t, []domain.ErrorKind{domain.KindAmountBelowMinimum}, kinds(v.Validate(req)))

	req.Amount = domain.MustMoney("10000.010000", domain.USDT)
	assert.Equal(t, []domain.ErrorKind{domain.KindAmountAboveMaximum}, kinds(v.Validate(req)))

	// Exactly on the bounds passes.
	req.Amount = domain.MustMoney("0.010000", domain.USDT)
	assert.Empty(t, v.Validate(req))
	req.Amount = domain.MustMoney("10000.000000", domain.USDT)
	assert.Empty(t, v.Validate(req))
}

func TestValidate_NonPositiveAmountSkipsBoundsChecks(t *testing.T) {
	v := NewPaymentValidator(DefaultLimits())

	req := validRequest(t)
	req.Amount = domain.MustMoney("0.000000", domain.USDT)

	got := kinds(v.Validate(req))
	assert.Equal(t, []domain.ErrorKind{domain.KindAmountNotPositive}, got)
}

func TestValidate_DescriptionAtLimitPasses(t *testing.T) {
	v := NewPaymentValidator(DefaultLimits())

	req := validRequest(t)
	req.Description = strings.Repeat("x", 500)

	assert.Empty(t, v.Validate(req))
}
