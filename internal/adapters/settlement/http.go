// Package settlement holds the HTTP client for the external fiat payout
// collaborator (an M-Pesa B2C style interface; the mobile-money protocol
// itself lives on the far side of this API).
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"qpesapay/internal/core/domain"
)

// Client initiates fiat payouts for confirmed payments and returns the
// settlement receipt reference.
type Client struct {
	client  *http.Client
	baseURL string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type payoutRequest struct {
	TransactionID  string `json:"transaction_id"`
	IdempotencyKey string `json:"idempotency_key"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
}

type payoutResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Settle requests a payout for rec and returns the external receipt
// reference. The payment's idempotency key travels with the request so the
// payout side can dedupe redelivered events on its own.
func (c *Client) Settle(ctx context.Context, rec domain.TransactionRecord) (string, error) {
	body, err := json.Marshal(payoutRequest{
		TransactionID:  rec.ID.String(),
		IdempotencyKey: rec.IdempotencyKey,
		Amount:         rec.Amount.Amount().String(),
		Currency:       rec.Amount.Currency().String(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal payout request: %w", err)
	}

	url := c.baseURL + "/v1/payouts"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create payout request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("settlement service call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("settlement service returned %s", resp.Status)
	}

	var out payoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode payout response: %w", err)
	}
	if out.Reference == "" {
		return "", fmt.Errorf("settlement service returned empty reference")
	}
	return out.Reference, nil
}
