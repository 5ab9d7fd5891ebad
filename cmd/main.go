package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"qpesapay/internal/adapters/compliance"
	"qpesapay/internal/adapters/fees"
	httpadapter "qpesapay/internal/adapters/http"
	"qpesapay/internal/adapters/messaging/kafka"
	"qpesapay/internal/adapters/storage/postgres"
	redisadapter "qpesapay/internal/adapters/storage/redis"
	"qpesapay/internal/app"
	"qpesapay/internal/config"
	"qpesapay/internal/core/domain"
	"qpesapay/internal/observability"
)

func main() {
	fallbackLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fallbackLogger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.App.Env)
	logger.Info("payment gateway starting", "env", cfg.App.Env, "port", cfg.Server.Port)

	if cfg.JWT.Secret == "" && cfg.OIDC.URL == "" {
		logger.Error("neither JWT secret nor OIDC provider configured")
		os.Exit(1)
	}

	shutdownTracer, err := observability.InitTracer(cfg.Jaeger.Endpoint, cfg.App.Name, cfg.App.Env)
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("Failed to shutdown tracer", "error", err)
		}
	}()

	ctx := context.Background()

	repo, err := postgres.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("Connected to PostgreSQL")

	rdb, err := redisadapter.NewClient(cfg.Redis.Addr)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("Failed to close Redis connection", "error", err)
		}
	}()

	publisher, err := kafka.NewPublisher(strings.Split(cfg.Kafka.BootstrapServers, ","), cfg.Kafka.Topic, logger)
	if err != nil {
		logger.Error("Failed to create Kafka publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()
	logger.Info("Kafka publisher created", "topic", cfg.Kafka.Topic)

	limits, err := limitsFromConfig(cfg.Limits)
	if err != nil {
		logger.Error("Invalid limits configuration", "error", err)
		os.Exit(1)
	}
	caps, err := capsFromConfig(cfg.VelocityCaps)
	if err != nil {
		logger.Error("Invalid velocity caps configuration", "error", err)
		os.Exit(1)
	}

	// Fee rates come from the live provider behind a Redis snapshot cache,
	// with static rates as the last line of defense.
	var feeProvider = fees.NewCachingProvider(
		fees.NewHTTPProvider(cfg.Fees.ProviderURL, cfg.Fees.Timeout()),
		rdb,
		cfg.Fees.CacheTTL(),
	)
	estimator := app.NewFeeEstimator(
		app.NewFallbackFeeProvider(feeProvider, app.NewStaticFeeProvider(nil)),
		cfg.Fees.Timeout(),
	)

	validator := app.NewPaymentValidator(limits)
	creator := app.NewTransactionCreator(repo, publisher, logger)
	orchestrator := app.NewPaymentOrchestrator(validator, estimator, creator, logger)
	queries := app.NewPaymentQueries(repo)

	checker := compliance.NewHTTPChecker(cfg.Compliance.URL, time.Duration(cfg.Compliance.TimeoutSeconds)*time.Second)
	velocity := redisadapter.NewVelocityTracker(rdb, caps)
	limiter := redisadapter.NewRateLimiterAdapter(rdb)

	handler := httpadapter.NewPaymentHandler(orchestrator, queries, checker, velocity, logger)

	var auth func(http.Handler) http.Handler
	if cfg.OIDC.URL != "" {
		authenticator, err := httpadapter.NewOIDCAuthenticator(ctx, cfg.OIDC.URL, cfg.OIDC.ClientID)
		if err != nil {
			logger.Error("Failed to create OIDC authenticator", "error", err)
			os.Exit(1)
		}
		auth = authenticator.Middleware
	} else {
		auth = httpadapter.JWTMiddleware([]byte(cfg.JWT.Secret), logger)
	}

	router := httpadapter.NewRouter(httpadapter.RouterDeps{
		Handler:     handler,
		Auth:        auth,
		RateLimiter: httpadapter.RateLimiterMiddleware(limiter, cfg.RateLimit.Limit, cfg.RateLimit.Window(), logger),
		Logger:      observability.NewLoggerMiddleware(logger),
		ServiceName: cfg.App.Name,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Server exited properly")
}

// limitsFromConfig turns the string-typed YAML policy into domain limits,
// falling back to the defaults when the section is absent.
func limitsFromConfig(lc config.LimitsConfig) (app.Limits, error) {
	if len(lc.PerCurrency) == 0 {
		return app.DefaultLimits(), nil
	}

	limits := app.Limits{
		PerCurrency:       make(map[domain.Currency]app.AmountLimit, len(lc.PerCurrency)),
		EnabledNetworks:   make(map[domain.Network]bool, len(lc.EnabledNetworks)),
		MaxDescriptionLen: lc.MaxDescriptionLen,
	}
	for code, bounds := range lc.PerCurrency {
		currency, err := domain.ParseCurrency(code)
		if err != nil {
			return app.Limits{}, err
		}
		min, err := parseMoney(bounds.Min, currency)
		if err != nil {
			return app.Limits{}, err
		}
		max, err := parseMoney(bounds.Max, currency)
		if err != nil {
			return app.Limits{}, err
		}
		limits.PerCurrency[currency] = app.AmountLimit{Min: min, Max: max}
	}
	for _, name := range lc.EnabledNetworks {
		network, err := domain.ParseNetwork(name)
		if err != nil {
			return app.Limits{}, err
		}
		limits.EnabledNetworks[network] = true
	}
	return limits, nil
}

func capsFromConfig(caps map[string]string) (map[domain.Currency]domain.Money, error) {
	out := make(map[domain.Currency]domain.Money, len(caps))
	for code, raw := range caps {
		currency, err := domain.ParseCurrency(code)
		if err != nil {
			return nil, err
		}
		cap, err := parseMoney(raw, currency)
		if err != nil {
			return nil, err
		}
		out[currency] = cap
	}
	return out, nil
}

func parseMoney(raw string, currency domain.Currency) (domain.Money, error) {
	dec, err := decimal.NewFromString(raw)
	if err != nil {
		return domain.Money{}, err
	}
	return domain.NewMoney(dec, currency)
}
