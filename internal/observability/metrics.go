package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	paymentsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_created_total",
			Help: "Accepted payment creations, by currency. Duplicates excluded.",
		},
		[]string{"currency", "network"},
	)
	paymentsDuplicateTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_duplicate_total",
			Help: "Submissions answered with an existing record via idempotency key.",
		},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_state_transitions_total",
			Help: "Applied state transitions, by target status.",
		},
		[]string{"to"},
	)
	processingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_processing_duration_seconds",
			Help:    "End-to-end duration of the create pipeline.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// RecordPaymentCreated increments the creation counter, or the duplicate
// counter when the idempotency key matched an existing record.
func RecordPaymentCreated(currency, network string, created bool) {
	if created {
		paymentsCreatedTotal.WithLabelValues(currency, network).Inc()
	} else {
		paymentsDuplicateTotal.Inc()
	}
}

// RecordStateTransition counts one applied transition.
func RecordStateTransition(to string) {
	stateTransitionsTotal.WithLabelValues(to).Inc()
}

// ObserveProcessingDuration records one create-pipeline latency sample.
func ObserveProcessingDuration(d time.Duration) {
	processingDuration.Observe(d.Seconds())
}

// NewMetricsMiddleware creates HTTP middleware for collecting Prometheus metrics.
func NewMetricsMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				duration := time.Since(start)
				path := r.URL.Path

				httpRequestDuration.WithLabelValues(serviceName, r.Method, path).Observe(duration.Seconds())
				httpRequestsTotal.WithLabelValues(serviceName, r.Method, path, strconv.Itoa(ww.Status())).Inc()
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
