// Package kafka implements the EventPublisher port and the consumer used by
// the asynchronous collaborators (chain watcher, settlement worker).
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"qpesapay/internal/core/domain"
	"qpesapay/internal/core/ports"
)

// StatusEvent is the wire form of one lifecycle change on the payments
// events topic. It intentionally carries no addresses or phone numbers.
type StatusEvent struct {
	TransactionID     string `json:"transaction_id"`
	IdempotencyKey    string `json:"idempotency_key"`
	UserID            string `json:"user_id"`
	Status            string `json:"status"`
	PreviousStatus    string `json:"previous_status,omitempty"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	Fee               string `json:"fee"`
	FeeCurrency       string `json:"fee_currency"`
	Network           string `json:"network"`
	BlockchainHash    string `json:"blockchain_hash,omitempty"`
	ExternalReference string `json:"external_reference,omitempty"`
	OccurredAt        string `json:"occurred_at"`
}

// Publisher is the franz-go implementation of the EventPublisher port.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
	wg     sync.WaitGroup
}

var _ ports.EventPublisher = (*Publisher)(nil)

func NewPublisher(bootstrapServers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(bootstrapServers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordDeliveryTimeout(10 * time.Second),
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	if err := client.Ping(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach kafka: %w", err)
	}
	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// PublishStatusChanged emits one event per accepted creation or transition.
// Records are keyed by transaction id so all events for one payment land in
// the same partition, in order.
func (p *Publisher) PublishStatusChanged(ctx context.Context, rec domain.TransactionRecord, previous domain.Status) error {
	event := StatusEvent{
		TransactionID:  rec.ID.String(),
		IdempotencyKey: rec.IdempotencyKey,
		UserID:         rec.UserID.String(),
		Status:         rec.Status.String(),
		PreviousStatus: previous.String(),
		Amount:         rec.Amount.Amount().String(),
		Currency:       rec.Amount.Currency().String(),
		Fee:            rec.Fee.Amount().String(),
		FeeCurrency:    rec.Fee.Currency().String(),
		Network:        rec.Recipient.Network().String(),
		OccurredAt:     rec.UpdatedAt.Format(time.RFC3339Nano),
	}
	if rec.BlockchainHash != nil {
		event.BlockchainHash = *rec.BlockchainHash
	}
	if rec.ExternalReference != nil {
		event.ExternalReference = *rec.ExternalReference
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal status event: %w", err)
	}

	record := &kgo.Record{
		Key:   []byte(rec.ID.String()),
		Value: payload,
	}

	p.wg.Add(1)
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		defer p.wg.Done()
		if err != nil {
			p.logger.Error("failed to deliver status event", "topic", r.Topic, "error", err)
		} else {
			p.logger.Debug("status event delivered", "topic", r.Topic, "partition", r.Partition, "offset", r.Offset)
		}
	})
	return nil
}

// Close waits for in-flight deliveries before shutting the client down.
func (p *Publisher) Close() {
	p.wg.Wait()
	p.client.Close()
}
