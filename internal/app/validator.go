package app

import (
	"fmt"

	"qpesapay/internal/core/domain"
)

// AmountLimit bounds a single currency.
type AmountLimit struct {
	Min domain.Money
	Max domain.Money
}

// Limits is the validation policy injected into the validator. Values come
// from configuration so policy changes need no code change. Daily-cap values
// also live here, but the accumulated spend is tracked behind
// ports.VelocityTracker by the command layer — the validator never touches
// storage.
type Limits struct {
	PerCurrency       map[domain.Currency]AmountLimit
	EnabledNetworks   map[domain.Network]bool
	MaxDescriptionLen int
}

// DefaultLimits is the fallback policy used when configuration does not
// override it.
func DefaultLimits() Limits {
	return Limits{
		PerCurrency: map[domain.Currency]AmountLimit{
			domain.USD:  {Min: domain.MustMoney("0.01", domain.USD), Max: domain.MustMoney("10000.00", domain.USD)},
			domain.KES:  {Min: domain.MustMoney("1.00", domain.KES), Max: domain.MustMoney("1000000.00", domain.KES)},
			domain.BTC:  {Min: domain.MustMoney("0.00001000", domain.BTC), Max: domain.MustMoney("1.00000000", domain.BTC)},
			domain.USDT: {Min: domain.MustMoney("0.010000", domain.USDT), Max: domain.MustMoney("10000.000000", domain.USDT)},
		},
		EnabledNetworks: map[domain.Network]bool{
			domain.NetworkEthereum: true,
			domain.NetworkTron:     true,
			domain.NetworkBitcoin:  true,
		},
		MaxDescriptionLen: 500,
	}
}

// PaymentValidator checks a PaymentRequest against the injected policy. It is
// pure and stateless: no storage, no network, safe under arbitrary
// concurrency.
type PaymentValidator struct {
	limits Limits
}

func NewPaymentValidator(limits Limits) *PaymentValidator {
	return &PaymentValidator{limits: limits}
}

// Validate evaluates every rule and returns the complete violation set. Rules
// are independent and never short-circuit, so the caller learns about all
// problems in one round trip. An empty slice means the request is valid.
//
// Idempotency-key uniqueness is deliberately not checked here; that belongs
// to the creator's insert-or-fetch path.
func (v *PaymentValidator) Validate(req domain.PaymentRequest) []domain.Violation {
	var violations []domain.Violation

	violations = append(violations, v.checkAmount(req.Amount)...)

	if !v.limits.EnabledNetworks[req.Recipient.Network()] {
		violations = append(violations, domain.Violation{
			Kind:    domain.KindUnsupportedNetwork,
			Message: fmt.Sprintf("network %s is not enabled", req.Recipient.Network()),
		})
	}

	if req.IdempotencyKey == "" {
		violations = append(violations, domain.Violation{
			Kind:    domain.KindMissingIdempotencyKey,
			Message: "idempotency key is required",
		})
	}

	if max := v.limits.MaxDescriptionLen; max > 0 && len(req.Description) > max {
		violations = append(violations, domain.Violation{
			Kind:    domain.KindDescriptionTooLong,
			Message: fmt.Sprintf("description exceeds %d characters", max),
		})
	}

	return violations
}

func (v *PaymentValidator) checkAmount(amount domain.Money) []domain.Violation {
	var violations []domain.Violation

	if !amount.IsPositive() {
		violations = append(violations, domain.Violation{
			Kind:    domain.KindAmountNotPositive,
			Message: "amount must be positive",
		})
		// Min/max comparisons against a non-positive amount only repeat the
		// same problem.
		return violations
	}

	limit, ok := v.limits.PerCurrency[amount.Currency()]
	if !ok {
		return violations
	}

	if cmp, err := amount.Cmp(limit.Min); err == nil && cmp < 0 {
		violations = append(violations, domain.Violation{
			Kind:    domain.KindAmountBelowMinimum,
			Message: fmt.Sprintf("amount below minimum %s", limit.Min),
		})
	}
	if cmp, err := amount.Cmp(limit.Max); err == nil && cmp > 0 {
		violations = append(violations, domain.Violation{
			Kind:    domain.KindAmountAboveMaximum,
			Message: fmt.Sprintf("amount exceeds maximum %s", limit.Max),
		})
	}
	return violations
}
