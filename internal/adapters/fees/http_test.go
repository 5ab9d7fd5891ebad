package fees

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qpesapay/internal/core/domain"
)

func TestHTTPProvider_CurrentRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/rates/ethereum", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rate":"0.000040","currency":"USD"}`))
	}))
	defer srv.Close()

	provider := NewHTTPProvider(srv.URL, time.Second)
	rate, err := provider.CurrentRate(context.Background(), domain.NetworkEthereum)

	require.NoError(t, err)
	assert.True(t, rate.Equal(domain.MustMoney("0.000040", domain.USD)))
}

func TestHTTPProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	provider := NewHTTPProvider(srv.URL, time.Second)
	_, err := provider.CurrentRate(context.Background(), domain.NetworkEthereum)

	assert.ErrorIs(t, err, domain.ErrFeeUnavailable)
}

func TestHTTPProvider_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rate":"not-a-number","currency":"USD"}`))
	}))
	defer srv.Close()

	provider := NewHTTPProvider(srv.URL, time.Second)
	_, err := provider.CurrentRate(context.Background(), domain.NetworkEthereum)

	assert.ErrorIs(t, err, domain.ErrFeeUnavailable)
}

func TestHTTPProvider_Unreachable(t *testing.T) {
	provider := NewHTTPProvider("http://127.0.0.1:1", 100*time.Millisecond)

	_, err := provider.CurrentRate(context.Background(), domain.NetworkEthereum)

	assert.ErrorIs(t, err, domain.ErrFeeUnavailable)
}
