package compliance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qpesapay/internal/core/domain"
)

func screeningSubject(t *testing.T) domain.PaymentRequest {
	t.Helper()
	recipient, err := domain.NewAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", domain.NetworkEthereum)
	require.NoError(t, err)
	req, err := domain.NewPaymentRequest(uuid.New(), domain.MustMoney("100.000000", domain.USDT), recipient, "key-1")
	require.NoError(t, err)
	return req
}

func TestCheck_DecisionMapping(t *testing.T) {
	for wire, want := range map[string]domain.ComplianceDecision{
		"APPROVED":     domain.ComplianceApproved,
		"REJECTED":     domain.ComplianceRejected,
		"NEEDS_REVIEW": domain.ComplianceNeedsReview,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/screenings", r.URL.Path)

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.NotEmpty(t, body["recipient_address"])

			_, _ = w.Write([]byte(`{"decision":"` + wire + `"}`))
		}))

		checker := NewHTTPChecker(srv.URL, time.Second)
		got, err := checker.Check(context.Background(), screeningSubject(t))

		require.NoError(t, err, wire)
		assert.Equal(t, want, got)
		srv.Close()
	}
}

func TestCheck_UnknownDecision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"decision":"MAYBE"}`))
	}))
	defer srv.Close()

	checker := NewHTTPChecker(srv.URL, time.Second)
	_, err := checker.Check(context.Background(), screeningSubject(t))

	assert.Error(t, err)
}

func TestCheck_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	checker := NewHTTPChecker(srv.URL, time.Second)
	_, err := checker.Check(context.Background(), screeningSubject(t))

	assert.Error(t, err)
}
