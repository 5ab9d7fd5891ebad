package app

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qpesapay/internal/adapters/storage/memory"
	"qpesapay/internal/core/domain"
)

func newOrchestrator(t *testing.T) (*PaymentOrchestrator, *memory.Repository, *recordingPublisher) {
	t.Helper()
	repo := memory.NewRepository()
	pub := &recordingPublisher{}
	creator := NewTransactionCreator(repo, pub, slog.Default())
	estimator := NewFeeEstimator(NewStaticFeeProvider(nil), time.Second)
	orchestrator := NewPaymentOrchestrator(NewPaymentValidator(DefaultLimits()), estimator, creator, slog.Default())
	return orchestrator, repo, pub
}

func TestProcessPayment_HappyPath(t *testing.T) {
	orchestrator, _, _ := newOrchestrator(t)

	rec, created, err := orchestrator.ProcessPayment(context.Background(), validRequest(t))

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.StatusPending, rec.Status)
	assert.True(t, rec.Fee.Equal(domain.MustMoney("0.84", domain.USD)))
}

func TestProcessPayment_ValidationFailureLeavesNoRecord(t *testing.T) {
	orchestrator, repo, pub := newOrchestrator(t)

	req := validRequest(t)
	req.Amount = domain.MustMoney("-5.000000", domain.USDT)

	_, _, err := orchestrator.ProcessPayment(context.Background(), req)

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.NotEmpty(t, vErr.Violations)

	// Nothing persisted, nothing published.
	_, err = repo.FindByIdempotencyKey(context.Background(), req.IdempotencyKey)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, pub.published())
}

func TestProcessPayment_FeeFailureLeavesNoRecord(t *testing.T) {
	repo := memory.NewRepository()
	pub := &recordingPublisher{}
	creator := NewTransactionCreator(repo, pub, slog.Default())
	estimator := NewFeeEstimator(failingProvider{err: domain.ErrFeeUnavailable}, time.Second)
	orchestrator := NewPaymentOrchestrator(NewPaymentValidator(DefaultLimits()), estimator, creator, slog.Default())

	req := validRequest(t)
	_, _, err := orchestrator.ProcessPayment(context.Background(), req)

	assert.ErrorIs(t, err, domain.ErrFeeUnavailable)
	_, err = repo.FindByIdempotencyKey(context.Background(), req.IdempotencyKey)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProcessPayment_DuplicateSubmission(t *testing.T) {
	orchestrator, _, _ := newOrchestrator(t)
	ctx := context.Background()
	req := validRequest(t)

	first, created, err := orchestrator.ProcessPayment(ctx, req)
	require.NoError(t, err)
	require.True(t, created)

	retry, err := domain.NewPaymentRequest(req.UserID, req.Amount, req.Recipient, req.IdempotencyKey)
	require.NoError(t, err)

	second, created, err := orchestrator.ProcessPayment(ctx, retry)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestProcessPayment_ConcurrentSameKey(t *testing.T) {
	orchestrator, repo, _ := newOrchestrator(t)
	ctx := context.Background()
	base := validRequest(t)

	const workers = 20
	var wg sync.WaitGroup
	ids := make([]string, workers)
	createdFlags := make([]bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := domain.NewPaymentRequest(base.UserID, base.Amount, base.Recipient, base.IdempotencyKey)
			if err != nil {
				return
			}
			rec, created, err := orchestrator.ProcessPayment(ctx, req)
			if err != nil {
				return
			}
			ids[i] = rec.ID.String()
			createdFlags[i] = created
		}(i)
	}
	wg.Wait()

	// Exactly one goroutine created; everyone saw the same record.
	createdCount := 0
	for _, c := range createdFlags {
		if c {
			createdCount++
		}
	}
	assert.Equal(t, 1, createdCount)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	stored, err := repo.FindByIdempotencyKey(ctx, base.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, ids[0], stored.ID.String())
}
