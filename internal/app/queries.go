package app

import (
	"context"

	"github.com/google/uuid"

	"qpesapay/internal/core/domain"
	"qpesapay/internal/core/ports"
)

// PaymentQueries is the read side of the command/query split: thin,
// side-effect-free lookups over the repository.
type PaymentQueries struct {
	repo ports.TransactionRepository
}

func NewPaymentQueries(repo ports.TransactionRepository) *PaymentQueries {
	return &PaymentQueries{repo: repo}
}

// GetByID returns the record or domain.ErrNotFound.
func (q *PaymentQueries) GetByID(ctx context.Context, id uuid.UUID) (domain.TransactionRecord, error) {
	return q.repo.FindByID(ctx, id)
}

// GetByIdempotencyKey returns the record for a logical payment attempt or
// domain.ErrNotFound.
func (q *PaymentQueries) GetByIdempotencyKey(ctx context.Context, key string) (domain.TransactionRecord, error) {
	return q.repo.FindByIdempotencyKey(ctx, key)
}

// AuditTrail returns the full transition history in sequence order.
func (q *PaymentQueries) AuditTrail(ctx context.Context, id uuid.UUID) ([]domain.AuditEntry, error) {
	return q.repo.AuditTrail(ctx, id)
}
