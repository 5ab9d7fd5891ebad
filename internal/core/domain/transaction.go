package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a TransactionRecord. Transitions are
// strictly monotonic: PENDING -> CONFIRMED -> SETTLED, with FAILED reachable
// from PENDING or CONFIRMED. Nothing ever moves backward.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusSettled   Status = "SETTLED"
	StatusFailed    Status = "FAILED"
)

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusFailed},
	StatusConfirmed: {StatusSettled, StatusFailed},
	StatusSettled:   {},
	StatusFailed:    {},
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state admits no further transitions.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) String() string { return string(s) }

// TransactionRecord is the persisted outcome of a payment attempt. Amount and
// fee are fixed at creation; only the status and the hash/reference/reason
// fields are appended afterwards, always through a mark operation that
// returns a new copy. Records are never deleted.
type TransactionRecord struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	MerchantID        *uuid.UUID
	IdempotencyKey    string
	Amount            Money
	Fee               Money
	Recipient         Address
	Status            Status
	ExchangeRate      *decimal.Decimal
	BlockchainHash    *string
	ExternalReference *string
	FailureReason     *string
	Description       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewTransactionRecord builds the initial PENDING record for a request.
func NewTransactionRecord(req PaymentRequest, fee Money) TransactionRecord {
	now := time.Now().UTC()
	return TransactionRecord{
		ID:             uuid.New(),
		UserID:         req.UserID,
		MerchantID:     req.MerchantID,
		IdempotencyKey: req.IdempotencyKey,
		Amount:         req.Amount,
		Fee:            fee,
		Recipient:      req.Recipient,
		Status:         StatusPending,
		Description:    req.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// WithExchangeRate records the rate in effect when the record was created.
func (t TransactionRecord) WithExchangeRate(rate decimal.Decimal) TransactionRecord {
	t.ExchangeRate = &rate
	return t
}

// Confirmed returns a CONFIRMED copy carrying the blockchain hash.
func (t TransactionRecord) Confirmed(blockchainHash string) (TransactionRecord, error) {
	if !t.Status.CanTransitionTo(StatusConfirmed) {
		return TransactionRecord{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, t.Status, StatusConfirmed)
	}
	t.Status = StatusConfirmed
	t.BlockchainHash = &blockchainHash
	t.UpdatedAt = time.Now().UTC()
	return t, nil
}

// Settled returns a SETTLED copy carrying the settlement reference.
func (t TransactionRecord) Settled(externalReference string) (TransactionRecord, error) {
	if !t.Status.CanTransitionTo(StatusSettled) {
		return TransactionRecord{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, t.Status, StatusSettled)
	}
	t.Status = StatusSettled
	t.ExternalReference = &externalReference
	t.UpdatedAt = time.Now().UTC()
	return t, nil
}

// Failed returns a FAILED copy carrying a reason safe to surface to clients.
func (t TransactionRecord) Failed(reason string) (TransactionRecord, error) {
	if !t.Status.CanTransitionTo(StatusFailed) {
		return TransactionRecord{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, t.Status, StatusFailed)
	}
	t.Status = StatusFailed
	t.FailureReason = &reason
	t.UpdatedAt = time.Now().UTC()
	return t, nil
}

// AuditEntry is one row of the append-only transition log. The log is part of
// the persisted model: regulatory audit trails are a correctness requirement,
// not telemetry.
type AuditEntry struct {
	TransactionID uuid.UUID
	Seq           int64
	FromStatus    Status
	ToStatus      Status
	Actor         string
	Reason        string
	OccurredAt    time.Time
}

// NewAuditEntry builds an entry for one transition. Seq is assigned by the
// repository at append time.
func NewAuditEntry(txID uuid.UUID, from, to Status, actor, reason string) AuditEntry {
	return AuditEntry{
		TransactionID: txID,
		FromStatus:    from,
		ToStatus:      to,
		Actor:         actor,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	}
}

// ComplianceDecision is the verdict of the external KYC/AML collaborator.
type ComplianceDecision string

const (
	ComplianceApproved    ComplianceDecision = "APPROVED"
	ComplianceRejected    ComplianceDecision = "REJECTED"
	ComplianceNeedsReview ComplianceDecision = "NEEDS_REVIEW"
)
