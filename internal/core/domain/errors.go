package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Messages are safe to log and to return to API clients:
// they never contain addresses, phone numbers or keys.
var (
	ErrUnknownCurrency        = errors.New("unknown currency")
	ErrPrecision              = errors.New("amount exceeds canonical precision")
	ErrCurrencyMismatch       = errors.New("currency mismatch")
	ErrInvalidRate            = errors.New("invalid exchange rate")
	ErrInvalidAddress         = errors.New("invalid address format")
	ErrUnsupportedNetwork     = errors.New("unsupported network")
	ErrInvalidPhone           = errors.New("invalid phone number format")
	ErrFeeUnavailable         = errors.New("fee source unavailable")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPersistenceConflict    = errors.New("concurrent update conflict")
	ErrNotFound               = errors.New("transaction not found")
	ErrStorageUnavailable     = errors.New("storage unavailable")
)

// ErrorKind is the stable machine-readable tag attached to each validation
// violation. Kinds are part of the API contract; renaming one is a breaking
// change.
type ErrorKind string

const (
	KindAmountNotPositive     ErrorKind = "AMOUNT_NOT_POSITIVE"
	KindAmountBelowMinimum    ErrorKind = "AMOUNT_BELOW_MINIMUM"
	KindAmountAboveMaximum    ErrorKind = "AMOUNT_ABOVE_MAXIMUM"
	KindUnsupportedNetwork    ErrorKind = "UNSUPPORTED_NETWORK"
	KindDescriptionTooLong    ErrorKind = "DESCRIPTION_TOO_LONG"
	KindMissingIdempotencyKey ErrorKind = "MISSING_IDEMPOTENCY_KEY"
)

// Violation is one failed business rule.
type Violation struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// ValidationError carries the complete, ordered violation set for a request.
// All rules are evaluated before it is built, so a caller fixing input sees
// every problem in one round trip.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = fmt.Sprintf("%s: %s", v.Kind, v.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}
