// Package memory provides an in-process TransactionRepository with the same
// insert-or-fetch and compare-and-swap semantics as the Postgres adapter.
// Used by tests and local development without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"qpesapay/internal/core/domain"
	"qpesapay/internal/core/ports"
)

type Repository struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]domain.TransactionRecord
	byKey  map[string]uuid.UUID
	audits map[uuid.UUID][]domain.AuditEntry
}

var _ ports.TransactionRepository = (*Repository)(nil)

func NewRepository() *Repository {
	return &Repository{
		byID:   make(map[uuid.UUID]domain.TransactionRecord),
		byKey:  make(map[string]uuid.UUID),
		audits: make(map[uuid.UUID][]domain.AuditEntry),
	}
}

func (r *Repository) FindByID(_ context.Context, id uuid.UUID) (domain.TransactionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return domain.TransactionRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (r *Repository) FindByIdempotencyKey(_ context.Context, key string) (domain.TransactionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[key]
	if !ok {
		return domain.TransactionRecord{}, domain.ErrNotFound
	}
	return r.byID[id], nil
}

// InsertIfAbsent mirrors the Postgres unique-constraint behavior: under the
// single mutex the existence check and the insert are indivisible, so exactly
// one of N concurrent callers with the same key creates the record.
func (r *Repository) InsertIfAbsent(_ context.Context, rec domain.TransactionRecord, audit domain.AuditEntry) (domain.TransactionRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existingID, ok := r.byKey[rec.IdempotencyKey]; ok {
		return r.byID[existingID], false, nil
	}

	r.byID[rec.ID] = rec
	r.byKey[rec.IdempotencyKey] = rec.ID
	r.appendAuditLocked(audit)
	return rec, true, nil
}

func (r *Repository) UpdateStatus(_ context.Context, rec domain.TransactionRecord, expected domain.Status, audit domain.AuditEntry) (domain.TransactionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[rec.ID]
	if !ok {
		return domain.TransactionRecord{}, domain.ErrNotFound
	}
	if current.Status != expected {
		return domain.TransactionRecord{}, domain.ErrPersistenceConflict
	}

	r.byID[rec.ID] = rec
	r.appendAuditLocked(audit)
	return rec, nil
}

func (r *Repository) AuditTrail(_ context.Context, id uuid.UUID) ([]domain.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]domain.AuditEntry, len(r.audits[id]))
	copy(entries, r.audits[id])
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries, nil
}

func (r *Repository) appendAuditLocked(audit domain.AuditEntry) {
	audit.Seq = int64(len(r.audits[audit.TransactionID])) + 1
	r.audits[audit.TransactionID] = append(r.audits[audit.TransactionID], audit)
}
