package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// PaymentRequest is one logical payment attempt. It is immutable once built:
// a corrected request is a new PaymentRequest with a new idempotency key.
//
// The idempotency key is caller-supplied and is the sole deduplication key
// for the attempt. The constructor does not enforce amount positivity — that
// is the validator's job, so a bad amount surfaces as a violation rather
// than a construction failure.
type PaymentRequest struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Amount         Money
	Recipient      Address
	IdempotencyKey string
	MerchantID     *uuid.UUID
	Description    string
	CreatedAt      time.Time
}

// NewPaymentRequest assembles a request from already-validated value objects.
func NewPaymentRequest(userID uuid.UUID, amount Money, recipient Address, idempotencyKey string) (PaymentRequest, error) {
	if idempotencyKey == "" {
		return PaymentRequest{}, errors.New("idempotency key is required")
	}
	return PaymentRequest{
		ID:             uuid.New(),
		UserID:         userID,
		Amount:         amount,
		Recipient:      recipient,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// WithMerchant returns a copy tied to a merchant.
func (r PaymentRequest) WithMerchant(merchantID uuid.UUID) PaymentRequest {
	r.MerchantID = &merchantID
	return r
}

// WithDescription returns a copy carrying a free-text description.
func (r PaymentRequest) WithDescription(desc string) PaymentRequest {
	r.Description = desc
	return r
}
