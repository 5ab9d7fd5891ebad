// Package chain holds the HTTP client for the blockchain gateway that
// broadcasts crypto transfers and reports their confirmation state.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"qpesapay/internal/core/domain"
)

// Client talks to the blockchain gateway. Broadcast submits a transfer and
// returns its on-chain hash; Confirmations reports how deep the transfer is.
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

type broadcastRequest struct {
	TransactionID  string `json:"transaction_id"`
	IdempotencyKey string `json:"idempotency_key"`
	Network        string `json:"network"`
	Address        string `json:"address"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
}

type broadcastResponse struct {
	Hash string `json:"hash"`
}

// Broadcast submits the transfer for rec. The gateway dedupes on the
// idempotency key, so redelivered events do not double-spend.
func (c *Client) Broadcast(ctx context.Context, rec domain.TransactionRecord) (string, error) {
	body, err := json.Marshal(broadcastRequest{
		TransactionID:  rec.ID.String(),
		IdempotencyKey: rec.IdempotencyKey,
		Network:        rec.Recipient.Network().String(),
		Address:        rec.Recipient.Value(),
		Amount:         rec.Amount.Amount().String(),
		Currency:       rec.Amount.Currency().String(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal broadcast request: %w", err)
	}

	url := c.baseURL + "/v1/transfers"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create broadcast request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chain gateway call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("chain gateway returned %s", resp.Status)
	}

	var out broadcastResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode broadcast response: %w", err)
	}
	if out.Hash == "" {
		return "", fmt.Errorf("chain gateway returned empty hash")
	}
	return out.Hash, nil
}

type confirmationsResponse struct {
	Confirmations int `json:"confirmations"`
}

// Confirmations returns how many blocks deep the given hash is.
func (c *Client) Confirmations(ctx context.Context, network domain.Network, hash string) (int, error) {
	url := fmt.Sprintf("%s/v1/transfers/%s/%s/confirmations", c.baseURL, network, hash)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create confirmations request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("chain gateway call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("chain gateway returned %s", resp.Status)
	}

	var out confirmationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode confirmations response: %w", err)
	}
	return out.Confirmations, nil
}
