// Package compliance holds the HTTP client for the external KYC/AML
// screening service.
package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"qpesapay/internal/core/domain"
	"qpesapay/internal/core/ports"
)

// HTTPChecker screens payment requests against an external compliance API.
// Unlike advisory collaborators, a screening failure is an error, not a
// silent approval: the command layer decides what a degraded screening
// service means for the request.
type HTTPChecker struct {
	client  *http.Client
	baseURL string
}

var _ ports.ComplianceChecker = (*HTTPChecker)(nil)

func NewHTTPChecker(baseURL string, timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type screeningRequest struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Network   string `json:"network"`
	// The full recipient address goes to the screening service; it never
	// appears in our own logs or events.
	RecipientAddress string `json:"recipient_address"`
}

type screeningResponse struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

func (c *HTTPChecker) Check(ctx context.Context, req domain.PaymentRequest) (domain.ComplianceDecision, error) {
	body, err := json.Marshal(screeningRequest{
		RequestID:        req.ID.String(),
		UserID:           req.UserID.String(),
		Amount:           req.Amount.Amount().String(),
		Currency:         req.Amount.Currency().String(),
		Network:          req.Recipient.Network().String(),
		RecipientAddress: req.Recipient.Value(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal screening request: %w", err)
	}

	url := c.baseURL + "/v1/screenings"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create screening request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("compliance service call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("compliance service returned %s", resp.Status)
	}

	var out screeningResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode screening response: %w", err)
	}

	switch out.Decision {
	case "APPROVED":
		return domain.ComplianceApproved, nil
	case "REJECTED":
		return domain.ComplianceRejected, nil
	case "NEEDS_REVIEW":
		return domain.ComplianceNeedsReview, nil
	default:
		return "", fmt.Errorf("compliance service returned unknown decision %q", out.Decision)
	}
}
