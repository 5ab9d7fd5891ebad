// settlement-worker completes confirmed payments: it consumes CONFIRMED
// events, requests the fiat payout from the settlement collaborator, records
// the receipt reference, and mirrors the outcome into ClickHouse for
// reporting.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"qpesapay/internal/adapters/messaging/kafka"
	"qpesapay/internal/adapters/settlement"
	"qpesapay/internal/adapters/storage/postgres"
	"qpesapay/internal/app"
	"qpesapay/internal/config"
	"qpesapay/internal/core/domain"
	"qpesapay/internal/observability"
)

const actor = "settlement-worker"

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.App.Env)
	logger.Info("settlement worker starting", "env", cfg.App.Env)

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

	chConn, err := clickhouse.Open(&clickhouse.Options{Addr: []string{cfg.ClickHouse.Addr}})
	if err != nil {
		logger.Error("failed to connect to ClickHouse", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := chConn.Close(); err != nil {
			logger.Error("failed to close ClickHouse connection", "error", err)
		}
	}()

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
		kgo.ConsumerGroup("settlement-worker-group"),
		kgo.ConsumeTopics(cfg.Kafka.Topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		logger.Error("failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	w := &worker{
		creator: app.NewTransactionCreator(repo, publisher, logger),
		queries: app.NewPaymentQueries(repo),
		payouts: settlement.NewClient(cfg.Settlement.URL, time.Duration(cfg.Settlement.TimeoutSeconds)*time.Second),
		sink:    chConn,
		logger:  logger,
	}

	logger.Info("settlement worker ready", "topic", cfg.Kafka.Topic)

	for {
		select {
		case <-ctx.Done():
			logger.Info("settlement worker stopping...")
			return
		default:
		}

		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			logger.Info("settlement worker stopping...")
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

type worker struct {
	creator *app.TransactionCreator
	queries *app.PaymentQueries
	payouts *settlement.Client
	sink    clickhouse.Conn
	logger  *slog.Logger
}

func (w *worker) handle(ctx context.Context, event kafka.StatusEvent) {
	if event.Status != domain.StatusConfirmed.String() {
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
	// Redelivered event; settlement already happened or the payment failed.
	if rec.Status != domain.StatusConfirmed {
		return
	}

	reference, err := w.payouts.Settle(ctx, rec)
	if err != nil {
		// The payout side dedupes on the idempotency key, so failing here and
		// letting the operator retry the event is safe.
		w.logger.Warn("payout failed", "transaction_id", id, "error", err)
		if _, err := w.creator.MarkFailed(ctx, id, "settlement failed", actor); err != nil {
			w.logger.Error("failed to mark failed", "transaction_id", id, "error", err)
		}
		return
	}

	settled, err := w.creator.MarkSettled(ctx, id, reference, actor)
	if err != nil {
		w.logger.Error("failed to mark settled", "transaction_id", id, "error", err)
		return
	}
	w.logger.Info("payment settled", "transaction_id", id, "reference", reference)

	w.report(ctx, settled)
}

// report mirrors the settled payment into the analytics store. Reporting is
// best effort: the settlement itself is already durable in Postgres.
func (w *worker) report(ctx context.Context, rec domain.TransactionRecord) {
	reference := ""
	if rec.ExternalReference != nil {
		reference = *rec.ExternalReference
	}
	err := w.sink.Exec(ctx, `
		INSERT INTO default.settled_payments
			(transaction_id, user_id, amount, currency, fee, network, reference, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(),
		rec.UserID.String(),
		rec.Amount.Amount().String(),
		rec.Amount.Currency().String(),
		rec.Fee.Amount().String(),
		rec.Recipient.Network().String(),
		reference,
		rec.UpdatedAt,
	)
	if err != nil {
		w.logger.Error("failed to insert into ClickHouse", "transaction_id", rec.ID, "error", err)
	}
}

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
