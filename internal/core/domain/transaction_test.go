package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest(t *testing.T) PaymentRequest {
	t.Helper()
	recipient, err := NewAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", NetworkEthereum)
	require.NoError(t, err)
	req, err := NewPaymentRequest(uuid.New(), MustMoney("100.000000", USDT), recipient, "key-1")
	require.NoError(t, err)
	return req
}

func TestStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusConfirmed))
	assert.True(t, StatusPending.CanTransitionTo(StatusFailed))
	assert.True(t, StatusConfirmed.CanTransitionTo(StatusSettled))
	assert.True(t, StatusConfirmed.CanTransitionTo(StatusFailed))

	assert.False(t, StatusPending.CanTransitionTo(StatusSettled))
	assert.False(t, StatusConfirmed.CanTransitionTo(StatusPending))
	assert.False(t, StatusSettled.CanTransitionTo(StatusFailed))
	assert.False(t, StatusFailed.CanTransitionTo(StatusPending))
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusConfirmed.Terminal())
	assert.True(t, StatusSettled.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestNewTransactionRecord(t *testing.T) {
	req := testRequest(t)
	rec := NewTransactionRecord(req, MustMoney("0.84", USD))

	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, req.UserID, rec.UserID)
	assert.Equal(t, req.IdempotencyKey, rec.IdempotencyKey)
	assert.True(t, rec.Amount.Equal(req.Amount))
	assert.Nil(t, rec.BlockchainHash)
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
}

func TestTransactionRecord_FullLifecycle(t *testing.T) {
	rec := NewTransactionRecord(testRequest(t), MustMoney("0.84", USD))

	confirmed, err := rec.Confirmed("0xabc123")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.BlockchainHash)
	assert.Equal(t, "0xabc123", *confirmed.BlockchainHash)
	// The original copy is untouched.
	assert.Equal(t, StatusPending, rec.Status)

	settled, err := confirmed.Settled("MPESA-REF-42")
	require.NoError(t, err)
	assert.Equal(t, StatusSettled, settled.Status)
	require.NotNil(t, settled.ExternalReference)
	assert.Equal(t, "MPESA-REF-42", *settled.ExternalReference)
}

func TestTransactionRecord_InvalidTransitions(t *testing.T) {
	rec := NewTransactionRecord(testRequest(t), MustMoney("0.84", USD))

	// PENDING cannot settle directly.
	_, err := rec.Settled("ref")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	settled, err := rec.Confirmed("0xabc")
	require.NoError(t, err)
	settled, err = settled.Settled("ref")
	require.NoError(t, err)

	// SETTLED is terminal.
	_, err = settled.Failed("too late")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	_, err = settled.Confirmed("0xdef")
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestTransactionRecord_FailedFromEitherActiveState(t *testing.T) {
	rec := NewTransactionRecord(testRequest(t), MustMoney("0.84", USD))

	failed, err := rec.Failed("broadcast failed")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)
	assert.Equal(t, "broadcast failed", *failed.FailureReason)

	confirmed, err := rec.Confirmed("0xabc")
	require.NoError(t, err)
	_, err = confirmed.Failed("settlement failed")
	assert.NoError(t, err)
}

func TestNewPaymentRequest_RequiresIdempotencyKey(t *testing.T) {
	recipient, err := NewAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", NetworkEthereum)
	require.NoError(t, err)

	_, err = NewPaymentRequest(uuid.New(), MustMoney("1.00", USD), recipient, "")
	assert.Error(t, err)
}

func TestNewPaymentRequest_PermitsNonPositiveAmount(t *testing.T) {
	// Positivity is the validator's rule; construction must not pre-empt it.
	recipient, err := NewAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", NetworkEthereum)
	require.NoError(t, err)

	_, err = NewPaymentRequest(uuid.New(), MustMoney("-5.000000", USDT), recipient, "key-1")
	assert.NoError(t, err)
}
