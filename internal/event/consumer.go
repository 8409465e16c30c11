package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	pkgkafka "github.com/Arya602/craft-heart-connect/pkg/kafka"
)

// Defaults for the order status subscription.
const (
	DefaultOrderStatusTopic = "orders.status_changed"
	DefaultConsumerGroupID  = "storefront-order-sync"
)

// StatusSyncer applies an order status change to the local receipt.
type StatusSyncer interface {
	ApplyStatusChange(ctx context.Context, orderID, status string, at time.Time) error
}

// orderStatusChangedPayload is the data of an order status change published
// by the order service.
type orderStatusChangedPayload struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
}

// ConsumerHandler decodes order status events and hands them to a StatusSyncer.
type ConsumerHandler struct {
	syncer StatusSyncer
	logger *slog.Logger
}

// NewConsumerHandler creates a new event consumer handler.
func NewConsumerHandler(syncer StatusSyncer, logger *slog.Logger) *ConsumerHandler {
	return &ConsumerHandler{
		syncer: syncer,
		logger: logger,
	}
}

// Handle processes one order status event. Errors are retried by the consumer
// and end up on the dead-letter topic once retries are exhausted.
func (h *ConsumerHandler) Handle(ctx context.Context, event *pkgkafka.Event) error {
	var payload orderStatusChangedPayload
	if err := event.UnmarshalData(&payload); err != nil {
		return fmt.Errorf("decode order status payload: %w", err)
	}

	if payload.OrderID == "" {
		payload.OrderID = event.AggregateID
	}
	if payload.OrderID == "" {
		return errors.New("order status event carries no order id")
	}

	at := payload.ChangedAt
	if at.IsZero() {
		at = event.Timestamp
	}

	h.logger.DebugContext(ctx, "received order status change",
		slog.String("event_id", event.EventID),
		slog.String("order_id", payload.OrderID),
		slog.String("status", payload.Status),
	)
	return h.syncer.ApplyStatusChange(ctx, payload.OrderID, payload.Status, at)
}

// ConsumerConfig selects the order status subscription.
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// NewOrderStatusConsumer creates the consumer for order status events. Events
// already recorded in store are skipped and exhausted messages go to dlq.
func NewOrderStatusConsumer(
	cfg ConsumerConfig,
	handler *ConsumerHandler,
	store pkgkafka.IdempotencyStore,
	dlq pkgkafka.DeadLetterPublisher,
	logger *slog.Logger,
) *pkgkafka.Consumer {
	if cfg.Topic == "" {
		cfg.Topic = DefaultOrderStatusTopic
	}
	if cfg.GroupID == "" {
		cfg.GroupID = DefaultConsumerGroupID
	}

	h := pkgkafka.IdempotentHandler(store, cfg.Topic, cfg.GroupID, handler.Handle, logger)
	return pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, h, dlq, logger)
}
