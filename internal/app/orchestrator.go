package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"qpesapay/internal/core/domain"
	"qpesapay/internal/core/ports"
)

// PaymentOrchestrator sequences validator -> fee estimator -> creator into
// the single entry point for starting a payment. Side effects are strictly
// ordered: nothing is persisted until validation has passed and a fee is
// known, so a failure at any early stage leaves no record behind.
//
// The orchestrator does not drive PENDING onward; those transitions belong to
// asynchronous collaborators reacting to external events.
type PaymentOrchestrator struct {
	validator *PaymentValidator
	estimator *FeeEstimator
	creator   *TransactionCreator
	logger    *slog.Logger

	maxCreateRetries uint
}

var _ ports.PaymentService = (*PaymentOrchestrator)(nil)

func NewPaymentOrchestrator(validator *PaymentValidator, estimator *FeeEstimator, creator *TransactionCreator, logger *slog.Logger) *PaymentOrchestrator {
	return &PaymentOrchestrator{
		validator:        validator,
		estimator:        estimator,
		creator:          creator,
		logger:           logger,
		maxCreateRetries: 3,
	}
}

// ProcessPayment runs the create-payment workflow and returns the PENDING
// record. created=false signals an idempotent replay of an earlier attempt.
func (o *PaymentOrchestrator) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (domain.TransactionRecord, bool, error) {
	if violations := o.validator.Validate(req); len(violations) > 0 {
		return domain.TransactionRecord{}, false, &domain.ValidationError{Violations: violations}
	}

	fee, err := o.estimator.EstimateFee(ctx, req.Amount, req.Recipient)
	if err != nil {
		return domain.TransactionRecord{}, false, err
	}

	// Creation is idempotent, so transient storage failures are safe to
	// retry with bounded exponential backoff. State transitions get no such
	// treatment: retrying those automatically could double-apply side
	// effects tied to a transition.
	type result struct {
		rec     domain.TransactionRecord
		created bool
	}
	res, err := backoff.Retry(ctx, func() (result, error) {
		rec, created, err := o.creator.CreatePending(ctx, req, fee)
		if err != nil {
			if errors.Is(err, domain.ErrStorageUnavailable) {
				o.logger.Warn("storage unavailable during create, retrying",
					"idempotency_key", req.IdempotencyKey, "error", err)
				return result{}, err
			}
			return result{}, backoff.Permanent(err)
		}
		return result{rec: rec, created: created}, nil
	},
		backoff.WithBackOff(newCreateBackOff()),
		backoff.WithMaxTries(o.maxCreateRetries),
	)
	if err != nil {
		return domain.TransactionRecord{}, false, err
	}

	o.logger.Info("payment accepted",
		"transaction_id", res.rec.ID,
		"idempotency_key", req.IdempotencyKey,
		"amount", req.Amount.String(),
		"network", req.Recipient.Network(),
		"duplicate", !res.created,
	)
	return res.rec, res.created, nil
}

// MarkConfirmed delegates to the creator; see TransactionCreator.
func (o *PaymentOrchestrator) MarkConfirmed(ctx context.Context, id uuid.UUID, blockchainHash, actor string) (domain.TransactionRecord, error) {
	return o.creator.MarkConfirmed(ctx, id, blockchainHash, actor)
}

// MarkSettled delegates to the creator.
func (o *PaymentOrchestrator) MarkSettled(ctx context.Context, id uuid.UUID, externalReference, actor string) (domain.TransactionRecord, error) {
	return o.creator.MarkSettled(ctx, id, externalReference, actor)
}

// MarkFailed delegates to the creator.
func (o *PaymentOrchestrator) MarkFailed(ctx context.Context, id uuid.UUID, reason, actor string) (domain.TransactionRecord, error) {
	return o.creator.MarkFailed(ctx, id, reason, actor)
}

func newCreateBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}
