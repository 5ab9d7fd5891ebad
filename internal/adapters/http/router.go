package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qpesapay/internal/observability"
)

// RouterDeps carries everything the router mounts. Auth is one of Auth (JWT)
// or OIDC; whichever is non-nil guards the API routes.
type RouterDeps struct {
	Handler     *PaymentHandler
	Auth        func(http.Handler) http.Handler
	RateLimiter func(http.Handler) http.Handler
	Logger      func(http.Handler) http.Handler
	ServiceName string
}

// NewRouter assembles the gateway's routes and middleware chain.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	if deps.Logger != nil {
		r.Use(deps.Logger)
	}
	r.Use(observability.NewTracingMiddleware(deps.ServiceName))
	r.Use(observability.NewMetricsMiddleware(deps.ServiceName))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/payments", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter)
		}
		if deps.Auth != nil {
			r.Use(deps.Auth)
		}

		r.Post("/", deps.Handler.HandleCreatePayment)
		r.Get("/", deps.Handler.HandleGetPaymentByKey)
		r.Get("/{id}", deps.Handler.HandleGetPayment)
		r.Get("/{id}/audit", deps.Handler.HandleAuditTrail)
		r.Post("/{id}/confirm", deps.Handler.HandleConfirm)
		r.Post("/{id}/settle", deps.Handler.HandleSettle)
		r.Post("/{id}/fail", deps.Handler.HandleFail)
	})

	return r
}
