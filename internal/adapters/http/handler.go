// Package http is the REST surface of the payment gateway: payment
// submission, lifecycle transitions, queries, and the middleware that guards
// them.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"qpesapay/internal/app"
	"qpesapay/internal/core/domain"
	"qpesapay/internal/core/ports"
	"qpesapay/internal/observability"
)

// PaymentHandler exposes the payment workflow over HTTP. Compliance
// screening and velocity accounting happen here, before orchestration: they
// are policy around the core, not part of it.
type PaymentHandler struct {
	service    ports.PaymentService
	queries    *app.PaymentQueries
	compliance ports.ComplianceChecker
	velocity   ports.VelocityTracker
	logger     *slog.Logger
}

func NewPaymentHandler(service ports.PaymentService, queries *app.PaymentQueries, compliance ports.ComplianceChecker, velocity ports.VelocityTracker, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service:    service,
		queries:    queries,
		compliance: compliance,
		velocity:   velocity,
		logger:     logger,
	}
}

type createPaymentRequest struct {
	UserID           string `json:"user_id"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
	Network          string `json:"network"`
	RecipientAddress string `json:"recipient_address"`
	IdempotencyKey   string `json:"idempotency_key"`
	MerchantID       string `json:"merchant_id,omitempty"`
	Description      string `json:"description,omitempty"`
}

type paymentResponse struct {
	ID                string  `json:"id"`
	UserID            string  `json:"user_id"`
	MerchantID        *string `json:"merchant_id,omitempty"`
	IdempotencyKey    string  `json:"idempotency_key"`
	Amount            string  `json:"amount"`
	Currency          string  `json:"currency"`
	Fee               string  `json:"fee"`
	FeeCurrency       string  `json:"fee_currency"`
	Network           string  `json:"network"`
	Recipient         string  `json:"recipient"`
	Status            string  `json:"status"`
	ExchangeRate      *string `json:"exchange_rate,omitempty"`
	BlockchainHash    *string `json:"blockchain_hash,omitempty"`
	ExternalReference *string `json:"external_reference,omitempty"`
	FailureReason     *string `json:"failure_reason,omitempty"`
	Description       string  `json:"description,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

func toPaymentResponse(rec domain.TransactionRecord) paymentResponse {
	out := paymentResponse{
		ID:                rec.ID.String(),
		UserID:            rec.UserID.String(),
		IdempotencyKey:    rec.IdempotencyKey,
		Amount:            rec.Amount.String(),
		Currency:          rec.Amount.Currency().String(),
		Fee:               rec.Fee.String(),
		FeeCurrency:       rec.Fee.Currency().String(),
		Network:           rec.Recipient.Network().String(),
		Recipient:         rec.Recipient.Value(),
		Status:            rec.Status.String(),
		BlockchainHash:    rec.BlockchainHash,
		ExternalReference: rec.ExternalReference,
		FailureReason:     rec.FailureReason,
		Description:       rec.Description,
		CreatedAt:         rec.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:         rec.UpdatedAt.Format(time.RFC3339Nano),
	}
	if rec.MerchantID != nil {
		s := rec.MerchantID.String()
		out.MerchantID = &s
	}
	if rec.ExchangeRate != nil {
		s := rec.ExchangeRate.String()
		out.ExchangeRate = &s
	}
	return out
}

type violationResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// HandleCreatePayment is POST /api/v1/payments. Duplicate submissions with a
// known idempotency key return the existing record with 200 instead of 201;
// they are not errors.
func (h *PaymentHandler) HandleCreatePayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var in createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(in.UserID)
	if err != nil {
		writeJSONError(w, "invalid user_id", http.StatusBadRequest)
		return
	}

	amountDec, err := decimal.NewFromString(in.Amount)
	if err != nil {
		writeJSONError(w, "invalid amount", http.StatusBadRequest)
		return
	}
	currency, err := domain.ParseCurrency(in.Currency)
	if err != nil {
		writeJSONError(w, "unknown currency", http.StatusBadRequest)
		return
	}
	amount, err := domain.NewMoney(amountDec, currency)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	network, err := domain.ParseNetwork(in.Network)
	if err != nil {
		writeJSONError(w, "unknown network", http.StatusBadRequest)
		return
	}
	recipient, err := domain.NewAddress(in.RecipientAddress, network)
	if err != nil {
		writeJSONError(w, "invalid recipient address", http.StatusBadRequest)
		return
	}

	req, err := domain.NewPaymentRequest(userID, amount, recipient, in.IdempotencyKey)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if in.MerchantID != "" {
		merchantID, err := uuid.Parse(in.MerchantID)
		if err != nil {
			writeJSONError(w, "invalid merchant_id", http.StatusBadRequest)
			return
		}
		req = req.WithMerchant(merchantID)
	}
	if in.Description != "" {
		req = req.WithDescription(in.Description)
	}

	decision, err := h.compliance.Check(r.Context(), req)
	if err != nil {
		h.logger.Warn("compliance screening unavailable", "error", err)
		writeJSONError(w, "service temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	switch decision {
	case domain.ComplianceRejected:
		writeJSONError(w, "payment rejected by compliance screening", http.StatusForbidden)
		return
	case domain.ComplianceNeedsReview:
		// No record yet: the payment re-enters through this endpoint once a
		// reviewer clears it.
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "NEEDS_REVIEW"})
		return
	}

	withinCap, err := h.velocity.RecordAndCheck(r.Context(), userID, amount)
	if err != nil {
		h.logger.Warn("velocity tracker unavailable", "error", err)
		writeJSONError(w, "service temporarily unavailable", http.StatusServiceUnavailable)
		return
	}
	if !withinCap {
		writeJSONError(w, "daily spend cap exceeded", http.StatusTooManyRequests)
		return
	}

	rec, created, err := h.service.ProcessPayment(r.Context(), req)
	if err != nil {
		h.refundVelocity(r.Context(), userID, amount)
		h.writeProcessError(w, err)
		return
	}
	if !created {
		// Duplicate replay of an idempotency key: only the first submission
		// counts against the daily cap.
		h.refundVelocity(r.Context(), userID, amount)
	}

	observability.RecordPaymentCreated(currency.String(), network.String(), created)
	observability.ObserveProcessingDuration(time.Since(start))

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toPaymentResponse(rec))
}

// refundVelocity gives back a daily-spend debit for a submission that created
// nothing. Best effort: a failed refund leaves the counter slightly high,
// never low.
func (h *PaymentHandler) refundVelocity(ctx context.Context, userID uuid.UUID, amount domain.Money) {
	if err := h.velocity.Refund(ctx, userID, amount); err != nil {
		h.logger.Warn("velocity refund failed", "user_id", userID, "error", err)
	}
}

func (h *PaymentHandler) writeProcessError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		violations := make([]violationResponse, 0, len(vErr.Violations))
		for _, v := range vErr.Violations {
			violations = append(violations, violationResponse{Kind: string(v.Kind), Message: v.Message})
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":      "validation failed",
			"violations": violations,
		})

	case errors.Is(err, domain.ErrFeeUnavailable),
		errors.Is(err, domain.ErrStorageUnavailable):
		h.logger.Warn("temporary failure in external dependency", "error", err)
		writeJSONError(w, "service temporarily unavailable", http.StatusServiceUnavailable)

	default:
		h.logger.Error("unexpected error during payment creation", "error", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}

// HandleGetPayment is GET /api/v1/payments/{id}.
func (h *PaymentHandler) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.queries.GetByID(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(rec))
}

// HandleGetPaymentByKey is GET /api/v1/payments?idempotency_key=...
func (h *PaymentHandler) HandleGetPaymentByKey(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("idempotency_key")
	if key == "" {
		writeJSONError(w, "idempotency_key query parameter required", http.StatusBadRequest)
		return
	}
	rec, err := h.queries.GetByIdempotencyKey(r.Context(), key)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(rec))
}

type auditEntryResponse struct {
	Seq        int64  `json:"seq"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status"`
	Actor      string `json:"actor"`
	Reason     string `json:"reason,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// HandleAuditTrail is GET /api/v1/payments/{id}/audit.
func (h *PaymentHandler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	entries, err := h.queries.AuditTrail(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			Seq:        e.Seq,
			FromStatus: e.FromStatus.String(),
			ToStatus:   e.ToStatus.String(),
			Actor:      e.Actor,
			Reason:     e.Reason,
			OccurredAt: e.OccurredAt.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type confirmRequest struct {
	BlockchainHash string `json:"blockchain_hash"`
}

// HandleConfirm is POST /api/v1/payments/{id}/confirm.
func (h *PaymentHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.BlockchainHash == "" {
		writeJSONError(w, "blockchain_hash required", http.StatusBadRequest)
		return
	}
	rec, err := h.service.MarkConfirmed(r.Context(), id, in.BlockchainHash, actorFromContext(r.Context()))
	h.writeTransitionResult(w, rec, err)
}

type settleRequest struct {
	ExternalReference string `json:"external_reference"`
}

// HandleSettle is POST /api/v1/payments/{id}/settle.
func (h *PaymentHandler) HandleSettle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in settleRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ExternalReference == "" {
		writeJSONError(w, "external_reference required", http.StatusBadRequest)
		return
	}
	rec, err := h.service.MarkSettled(r.Context(), id, in.ExternalReference, actorFromContext(r.Context()))
	h.writeTransitionResult(w, rec, err)
}

type failRequest struct {
	Reason string `json:"reason"`
}

// HandleFail is POST /api/v1/payments/{id}/fail.
func (h *PaymentHandler) HandleFail(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in failRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Reason == "" {
		writeJSONError(w, "reason required", http.StatusBadRequest)
		return
	}
	rec, err := h.service.MarkFailed(r.Context(), id, in.Reason, actorFromContext(r.Context()))
	h.writeTransitionResult(w, rec, err)
}

func (h *PaymentHandler) writeTransitionResult(w http.ResponseWriter, rec domain.TransactionRecord, err error) {
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeJSONError(w, "payment not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidStateTransition),
			errors.Is(err, domain.ErrPersistenceConflict):
			writeJSONError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrStorageUnavailable):
			h.logger.Warn("storage unavailable during transition", "error", err)
			writeJSONError(w, "service temporarily unavailable", http.StatusServiceUnavailable)
		default:
			h.logger.Error("unexpected error during transition", "error", err)
			writeJSONError(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}
	observability.RecordStateTransition(rec.Status.String())
	writeJSON(w, http.StatusOK, toPaymentResponse(rec))
}

func (h *PaymentHandler) writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSONError(w, "payment not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrStorageUnavailable):
		h.logger.Warn("storage unavailable during lookup", "error", err)
		writeJSONError(w, "service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Error("unexpected error during lookup", "error", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *PaymentHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, "invalid payment id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Default().Error("failed to write JSON response", "error", err)
	}
}
