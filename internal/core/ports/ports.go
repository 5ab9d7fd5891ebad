package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"qpesapay/internal/core/domain"
)

// TransactionRepository is the outgoing port for the single shared mutable
// resource in the system. All TransactionRecord writes go through it; no
// other component touches record fields directly.
type TransactionRepository interface {
	// FindByID returns the record or domain.ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (domain.TransactionRecord, error)

	// FindByIdempotencyKey returns the record for a logical payment attempt
	// or domain.ErrNotFound.
	FindByIdempotencyKey(ctx context.Context, key string) (domain.TransactionRecord, error)

	// InsertIfAbsent atomically inserts rec unless a record with the same
	// idempotency key already exists, in which case the existing record is
	// returned with created=false. The existence check and the insert are one
	// indivisible operation with respect to concurrent callers (unique
	// constraint, not an application-level lock), so it stays correct across
	// process instances. The initial audit entry is appended in the same
	// transaction.
	InsertIfAbsent(ctx context.Context, rec domain.TransactionRecord, audit domain.AuditEntry) (domain.TransactionRecord, bool, error)

	// UpdateStatus applies rec's new state with compare-and-swap semantics:
	// the write only happens if the stored status still equals expected.
	// Returns domain.ErrPersistenceConflict when the CAS loses the race and
	// domain.ErrNotFound when the id is unknown. The audit entry is appended
	// in the same transaction as the update.
	UpdateStatus(ctx context.Context, rec domain.TransactionRecord, expected domain.Status, audit domain.AuditEntry) (domain.TransactionRecord, error)

	// AuditTrail returns the append-only transition log in sequence order.
	AuditTrail(ctx context.Context, id uuid.UUID) ([]domain.AuditEntry, error)
}

// FeeProvider supplies the current per-unit fee rate for a network. Live
// implementations may block on I/O and must honor ctx cancellation.
type FeeProvider interface {
	CurrentRate(ctx context.Context, network domain.Network) (domain.Money, error)
}

// ComplianceChecker is the external KYC/AML collaborator. It is invoked by
// the command layer around orchestration, never inside the core.
type ComplianceChecker interface {
	Check(ctx context.Context, req domain.PaymentRequest) (domain.ComplianceDecision, error)
}

// EventPublisher is the outgoing port for lifecycle events. Consumers are the
// asynchronous collaborators (chain watcher, settlement worker) and the
// analytics pipeline.
type EventPublisher interface {
	PublishStatusChanged(ctx context.Context, rec domain.TransactionRecord, previous domain.Status) error
}

// PaymentService is the incoming port: everything the command/query layer may
// ask of the orchestration core.
type PaymentService interface {
	// ProcessPayment runs validate -> estimate fee -> create pending.
	// created=false means the idempotency key was already used and the
	// existing record is being returned (duplicate submission is not an
	// error).
	ProcessPayment(ctx context.Context, req domain.PaymentRequest) (domain.TransactionRecord, bool, error)

	// State transitions, invoked by asynchronous collaborators. Re-applying a
	// transition that already happened (same target state) is a no-op
	// success, tolerating at-least-once event delivery.
	MarkConfirmed(ctx context.Context, id uuid.UUID, blockchainHash, actor string) (domain.TransactionRecord, error)
	MarkSettled(ctx context.Context, id uuid.UUID, externalReference, actor string) (domain.TransactionRecord, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason, actor string) (domain.TransactionRecord, error)
}

// RateLimiterRepository is the port for request-rate accounting.
type RateLimiterRepository interface {
	IsAllowed(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// VelocityTracker accounts per-user daily spend against configured caps. Cap
// values come from configuration; the accumulated spend lives behind this
// port so the validator itself stays pure.
type VelocityTracker interface {
	// RecordAndCheck adds amount to the user's rolling daily total and
	// reports whether the total is still within the cap.
	RecordAndCheck(ctx context.Context, userID uuid.UUID, amount domain.Money) (bool, error)

	// Refund subtracts a previously recorded amount. Callers invoke it when a
	// debited submission did not create a payment (duplicate replay of an
	// idempotency key, validation failure, fee or storage outage), so retries
	// of one logical payment burn the cap at most once.
	Refund(ctx context.Context, userID uuid.UUID, amount domain.Money) error
}
