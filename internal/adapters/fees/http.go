// Package fees holds FeeProvider implementations that live at the edge of
// the system: the live HTTP rate source and a Redis-backed snapshot cache.
// The static and fallback providers live in the app package next to the
// estimator.
package fees

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"qpesapay/internal/core/domain"
	"qpesapay/internal/core/ports"
)

// HTTPProvider fetches the current per-unit rate from an external fee API.
// Any failure surfaces as domain.ErrFeeUnavailable; it never silently serves
// stale data — composing a fallback is the caller's explicit choice.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
}

var _ ports.FeeProvider = (*HTTPProvider)(nil)

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type rateResponse struct {
	Rate     string `json:"rate"`
	Currency string `json:"currency"`
}

func (p *HTTPProvider) CurrentRate(ctx context.Context, network domain.Network) (domain.Money, error) {
	url := fmt.Sprintf("%s/v1/rates/%s", p.baseURL, network)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Money{}, fmt.Errorf("%w: %v", domain.ErrFeeUnavailable, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.Money{}, fmt.Errorf("%w: %v", domain.ErrFeeUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Money{}, fmt.Errorf("%w: fee API returned %s", domain.ErrFeeUnavailable, resp.Status)
	}

	var body rateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Money{}, fmt.Errorf("%w: malformed fee API response", domain.ErrFeeUnavailable)
	}

	amount, err := decimal.NewFromString(body.Rate)
	if err != nil {
		return domain.Money{}, fmt.Errorf("%w: malformed rate %q", domain.ErrFeeUnavailable, body.Rate)
	}
	currency, err := domain.ParseCurrency(body.Currency)
	if err != nil {
		return domain.Money{}, fmt.Errorf("%w: %v", domain.ErrFeeUnavailable, err)
	}

	rate, err := domain.NewMoney(amount.Truncate(currency.Decimals()), currency)
	if err != nil {
		return domain.Money{}, fmt.Errorf("%w: %v", domain.ErrFeeUnavailable, err)
	}
	return rate, nil
}
