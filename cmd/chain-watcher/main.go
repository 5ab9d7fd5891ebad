// chain-watcher drives PENDING payments onto the blockchain: it consumes
// creation events, broadcasts the transfer through the chain gateway, waits
// for enough confirmations, and records the outcome.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"qpesapay/internal/adapters/chain"
	"qpesapay/internal/adapters/messaging/kafka"
	"qpesapay/internal/adapters/storage/postgres"
	"qpesapay/internal/app"
	"qpesapay/internal/config"
	"qpesapay/internal/core/domain"
	"qpesapay/internal/observability"
)

const actor = "chain-watcher"

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.App.Env)
	logger.Info("chain watcher starting", "env", cfg.App.Env)

	brokers := strings.Split(cfg.Kafka.BootstrapServers, ",")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := postgres.NewRepository(ctx, cfg.Postgres.DSN)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	publisher, err := kafka.NewPublisher(brokers, cfg.Kafka.Topic, logger)
	if err != nil {
		logger.Error("failed to create Kafka publisher", "error", err)
		os.Exit(1)
	}
	defer publisher.Close()

	dlqProducer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		logger.Error("failed to create DLQ producer", "error", err)
		os.Exit(1)
	}
	defer dlqProducer.Close()

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup("chain-watcher-group"),
		kgo.ConsumeTopics(cfg.Kafka.Topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		logger.Error("failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	w := &watcher{
		creator:          app.NewTransactionCreator(repo, publisher, logger),
		queries:          app.NewPaymentQueries(repo),
		gateway:          chain.NewClient(cfg.Chain.GatewayURL, time.Duration(cfg.Chain.TimeoutSeconds)*time.Second),
		minConfirmations: cfg.Chain.MinConfirmations,
		pollInterval:     time.Duration(cfg.Chain.PollSeconds) * time.Second,
		logger:           logger,
	}

	logger.Info("chain watcher ready", "topic", cfg.Kafka.Topic)

	for {
		select {
		case <-ctx.Done():
			logger.Info("chain watcher stopping...")
			return
		default:
		}

		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			logger.Info("chain watcher stopping...")
			return
		}

		fetches.EachError(func(t string, p int32, err error) {
			logger.Error("kafka fetch error", "topic", t, "partition", p, "error", err)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			var event kafka.StatusEvent
			if err := json.Unmarshal(record.Value, &event); err != nil {
				logger.Error("malformed event, sending to DLQ", "error", err)
				sendToDLQ(dlqProducer, cfg.Kafka.DLQTopic, record, "unmarshal_error", err.Error(), logger)
				return
			}
			w.handle(ctx, event)
		})

		if err := consumer.CommitUncommittedOffsets(ctx); err != nil {
			logger.Error("error committing offsets", "error", err)
		}
	}
}

type watcher struct {
	creator          *app.TransactionCreator
	queries          *app.PaymentQueries
	gateway          *chain.Client
	minConfirmations int
	pollInterval     time.Duration
	logger           *slog.Logger
}

// handle reacts only to freshly created PENDING payments; every other event
// on the topic belongs to someone else.
func (w *watcher) handle(ctx context.Context, event kafka.StatusEvent) {
	if event.Status != domain.StatusPending.String() {
		return
	}

	id, err := uuid.Parse(event.TransactionID)
	if err != nil {
		w.logger.Error("event carries invalid transaction id", "transaction_id", event.TransactionID)
		return
	}

	rec, err := w.queries.GetByID(ctx, id)
	if err != nil {
		w.logger.Error("failed to load payment", "transaction_id", id, "error", err)
		return
	}
	// Redelivered event after a restart; the payment already moved on.
	if rec.Status != domain.StatusPending {
		return
	}

	hash, err := w.gateway.Broadcast(ctx, rec)
	if err != nil {
		w.logger.Warn("broadcast failed", "transaction_id", id, "error", err)
		w.fail(ctx, id, "broadcast failed: "+err.Error())
		return
	}

	if err := w.awaitConfirmations(ctx, rec.Recipient.Network(), hash); err != nil {
		w.logger.Warn("confirmation wait failed", "transaction_id", id, "hash", hash, "error", err)
		w.fail(ctx, id, "confirmation timeout")
		return
	}

	if _, err := w.creator.MarkConfirmed(ctx, id, hash, actor); err != nil {
		w.logger.Error("failed to mark confirmed", "transaction_id", id, "error", err)
		return
	}
	w.logger.Info("payment confirmed", "transaction_id", id, "hash", hash)
}

// awaitConfirmations polls until the transfer is deep enough. The bound is
// generous; a transfer that stalls past it gets failed and can be retried as
// a fresh payment.
func (w *watcher) awaitConfirmations(ctx context.Context, network domain.Network, hash string) error {
	const maxAttempts = 120

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		confirmations, err := w.gateway.Confirmations(ctx, network, hash)
		if err == nil && confirmations >= w.minConfirmations {
			return nil
		}
		if err != nil {
			w.logger.Warn("confirmation poll failed", "hash", hash, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return errors.New("confirmation limit reached")
}

func (w *watcher) fail(ctx context.Context, id uuid.UUID, reason string) {
	if _, err := w.creator.MarkFailed(ctx, id, reason, actor); err != nil {
		w.logger.Error("failed to mark failed", "transaction_id", id, "error", err)
	}
}

// sendToDLQ forwards the original malformed message to the dead-letter topic
// with failure metadata in the headers.
func sendToDLQ(p *kgo.Client, topic string, originalRecord *kgo.Record, errorType, errorString string, logger *slog.Logger) {
	dlqRecord := &kgo.Record{
		Topic: topic,
		Value: originalRecord.Value,
		Key:   originalRecord.Key,
		Headers: []kgo.RecordHeader{
			{Key: "error_type", Value: []byte(errorType)},
			{Key: "error_string", Value: []byte(errorString)},
			{Key: "original_topic", Value: []byte(originalRecord.Topic)},
		},
	}
	p.Produce(context.Background(), dlqRecord, func(r *kgo.Record, err error) {
		if err != nil {
			logger.Error("failed to send message to DLQ", "error", err)
		}
	})
}
