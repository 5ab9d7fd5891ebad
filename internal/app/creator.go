package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"qpesapay/internal/core/domain"
	"qpesapay/internal/core/ports"
)

// TransactionCreator owns the TransactionRecord state machine. It is the only
// writer of record: creation and every transition go through here, each one
// appending an audit entry in the same storage transaction as the write.
type TransactionCreator struct {
	repo      ports.TransactionRepository
	publisher ports.EventPublisher
	logger    *slog.Logger
}

func NewTransactionCreator(repo ports.TransactionRepository, publisher ports.EventPublisher, logger *slog.Logger) *TransactionCreator {
	return &TransactionCreator{repo: repo, publisher: publisher, logger: logger}
}

// CreatePending persists the initial PENDING record for a request, exactly
// once per idempotency key. A duplicate submission returns the first writer's
// record with created=false — not an error, by design, so network retries are
// safe by default. First writer wins; everyone else reads the winner's
// result.
func (c *TransactionCreator) CreatePending(ctx context.Context, req domain.PaymentRequest, fee domain.Money) (domain.TransactionRecord, bool, error) {
	rec := domain.NewTransactionRecord(req, fee)
	audit := domain.NewAuditEntry(rec.ID, "", domain.StatusPending, "orchestrator", "payment accepted")

	stored, created, err := c.repo.InsertIfAbsent(ctx, rec, audit)
	if err != nil {
		return domain.TransactionRecord{}, false, fmt.Errorf("create pending transaction: %w", err)
	}
	if created {
		c.publish(ctx, stored, "")
	}
	return stored, created, nil
}

// MarkConfirmed moves PENDING -> CONFIRMED, recording the blockchain hash.
// Confirming an already-CONFIRMED record is a no-op success so at-least-once
// delivery from the chain watcher never produces spurious errors.
func (c *TransactionCreator) MarkConfirmed(ctx context.Context, id uuid.UUID, blockchainHash, actor string) (domain.TransactionRecord, error) {
	return c.transition(ctx, id, domain.StatusConfirmed, actor, func(current domain.TransactionRecord) (domain.TransactionRecord, error) {
		return current.Confirmed(blockchainHash)
	})
}

// MarkSettled moves CONFIRMED -> SETTLED, recording the settlement reference.
func (c *TransactionCreator) MarkSettled(ctx context.Context, id uuid.UUID, externalReference, actor string) (domain.TransactionRecord, error) {
	return c.transition(ctx, id, domain.StatusSettled, actor, func(current domain.TransactionRecord) (domain.TransactionRecord, error) {
		return current.Settled(externalReference)
	})
}

// MarkFailed moves PENDING or CONFIRMED -> FAILED with a client-safe reason.
func (c *TransactionCreator) MarkFailed(ctx context.Context, id uuid.UUID, reason, actor string) (domain.TransactionRecord, error) {
	return c.transition(ctx, id, domain.StatusFailed, actor, func(current domain.TransactionRecord) (domain.TransactionRecord, error) {
		return current.Failed(reason)
	})
}

// transition applies one state-machine step with compare-and-swap semantics.
// Losing the CAS race is re-checked against the target state: if another
// process already applied the same transition the call degrades to a no-op
// success, otherwise the conflict propagates for the caller to re-fetch.
// Transitions are never retried automatically.
func (c *TransactionCreator) transition(
	ctx context.Context,
	id uuid.UUID,
	target domain.Status,
	actor string,
	apply func(domain.TransactionRecord) (domain.TransactionRecord, error),
) (domain.TransactionRecord, error) {
	current, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return domain.TransactionRecord{}, err
	}

	if current.Status == target {
		return current, nil
	}

	next, err := apply(current)
	if err != nil {
		return domain.TransactionRecord{}, err
	}

	audit := domain.NewAuditEntry(id, current.Status, target, actor, "")
	updated, err := c.repo.UpdateStatus(ctx, next, current.Status, audit)
	if err != nil {
		if errors.Is(err, domain.ErrPersistenceConflict) {
			latest, ferr := c.repo.FindByID(ctx, id)
			if ferr == nil && latest.Status == target {
				return latest, nil
			}
		}
		return domain.TransactionRecord{}, err
	}

	c.publish(ctx, updated, current.Status)
	return updated, nil
}

// publish emits the lifecycle event. The record is already durable at this
// point, so a broker failure is logged rather than unwinding the transition.
func (c *TransactionCreator) publish(ctx context.Context, rec domain.TransactionRecord, previous domain.Status) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishStatusChanged(ctx, rec, previous); err != nil {
		c.logger.Warn("failed to publish status event",
			"transaction_id", rec.ID, "status", rec.Status, "error", err)
	}
}
