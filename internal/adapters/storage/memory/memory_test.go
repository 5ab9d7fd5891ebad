package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qpesapay/internal/core/domain"
)

func pendingRecord(t *testing.T, key string) domain.TransactionRecord {
	t.Helper()
	recipient, err := domain.NewAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", domain.NetworkEthereum)
	require.NoError(t, err)
	req, err := domain.NewPaymentRequest(uuid.New(), domain.MustMoney("100.000000", domain.USDT), recipient, key)
	require.NoError(t, err)
	return domain.NewTransactionRecord(req, domain.MustMoney("0.84", domain.USD))
}

func initialAudit(rec domain.TransactionRecord) domain.AuditEntry {
	return domain.NewAuditEntry(rec.ID, "", domain.StatusPending, "orchestrator", "payment accepted")
}

func TestInsertIfAbsent_ConcurrentSingleWinner(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	createdCount := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := pendingRecord(t, "shared-key")
			_, created, err := repo.InsertIfAbsent(ctx, rec, initialAudit(rec))
			if err == nil {
				createdCount <- created
			}
		}()
	}
	wg.Wait()
	close(createdCount)

	winners := 0
	for created := range createdCount {
		if created {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	stored, err := repo.FindByIdempotencyKey(ctx, "shared-key")
	require.NoError(t, err)

	// Exactly one audit entry for the single insert.
	trail, err := repo.AuditTrail(ctx, stored.ID)
	require.NoError(t, err)
	assert.Len(t, trail, 1)
}

func TestUpdateStatus_CASConflict(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	rec := pendingRecord(t, "cas-key")
	stored, created, err := repo.InsertIfAbsent(ctx, rec, initialAudit(rec))
	require.NoError(t, err)
	require.True(t, created)

	confirmed, err := stored.Confirmed("0xabc")
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, confirmed, domain.StatusPending,
		domain.NewAuditEntry(stored.ID, domain.StatusPending, domain.StatusConfirmed, "test", ""))
	require.NoError(t, err)

	// A second writer still expecting PENDING loses the race.
	failed, err := stored.Failed("late failure")
	require.NoError(t, err)
	_, err = repo.UpdateStatus(ctx, failed, domain.StatusPending,
		domain.NewAuditEntry(stored.ID, domain.StatusPending, domain.StatusFailed, "test", ""))
	assert.ErrorIs(t, err, domain.ErrPersistenceConflict)
}

func TestUpdateStatus_UnknownID(t *testing.T) {
	repo := NewRepository()
	rec := pendingRecord(t, "missing")

	_, err := repo.UpdateStatus(context.Background(), rec, domain.StatusPending,
		domain.NewAuditEntry(rec.ID, domain.StatusPending, domain.StatusConfirmed, "test", ""))

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
