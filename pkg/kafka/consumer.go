package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

const maxHandlerRetries = 3

// Handler processes one event. Returning an error triggers a retry.
type Handler func(ctx context.Context, event *Event) error

// ConsumerConfig holds Kafka consumer configuration.
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int
}

// DeadLetterPublisher receives messages whose handler kept failing.
type DeadLetterPublisher interface {
	Publish(ctx context.Context, msg kafka.Message, lastErr error, consumerGroup string) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads one topic within a consumer group, retries failing messages
// with backoff and then parks them on the dead-letter topic.
type Consumer struct {
	reader    messageReader
	topic     string
	group     string
	logger    *slog.Logger
	handler   Handler
	dlq       DeadLetterPublisher
	backoff   time.Duration
	closeOnce sync.Once
}

// NewConsumer creates a new Kafka consumer for a specific topic and group.
// dlq may be nil, in which case exhausted messages are committed and dropped.
func NewConsumer(cfg ConsumerConfig, handler Handler, dlq DeadLetterPublisher, logger *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	return newConsumer(r, cfg.Topic, cfg.GroupID, handler, dlq, logger)
}

func newConsumer(r messageReader, topic, group string, handler Handler, dlq DeadLetterPublisher, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader:  r,
		topic:   topic,
		group:   group,
		logger:  logger,
		handler: handler,
		dlq:     dlq,
		backoff: 100 * time.Millisecond,
	}
}

// Start consumes messages until ctx is canceled.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started",
		slog.String("topic", c.topic),
		slog.String("group", c.group),
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.Info("consumer stopping", slog.String("topic", c.topic))
				return c.Close()
			}
			c.logger.Error("failed to fetch message", slog.String("error", err.Error()))
			continue
		}

		if !c.process(ctx, msg) {
			return c.Close()
		}
	}
}

// process handles one message and reports whether the loop should continue.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	log := c.logger.With(
		slog.String("topic", msg.Topic),
		slog.Int("partition", msg.Partition),
		slog.Int64("offset", msg.Offset),
	)

	event, err := UnmarshalEvent(msg.Value)
	if err != nil {
		log.Error("failed to unmarshal event", slog.String("error", err.Error()))
		c.deadLetter(ctx, msg, err, log)
		c.commit(ctx, msg, log)
		return true
	}

	hctx := otel.GetTextMapPropagator().Extract(ctx, NewHeaderCarrier(&msg.Headers))

	var lastErr error
	for attempt := 1; attempt <= maxHandlerRetries; attempt++ {
		lastErr = c.handler(hctx, event)
		if lastErr == nil {
			break
		}
		log.Warn("handler failed",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
			slog.Int("attempt", attempt),
		)
		if attempt < maxHandlerRetries {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
	}

	if lastErr != nil {
		consumerMessagesFailed.WithLabelValues(msg.Topic, c.group).Inc()
		log.Error("handler failed after all retries",
			slog.String("event_type", event.EventType),
			slog.String("aggregate_id", event.AggregateID),
			slog.String("error", lastErr.Error()),
		)
		c.deadLetter(ctx, msg, lastErr, log)
	} else {
		consumerMessagesProcessed.WithLabelValues(msg.Topic, c.group).Inc()
	}

	c.commit(ctx, msg, log)
	return true
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error, log *slog.Logger) {
	if c.dlq == nil {
		return
	}
	if err := c.dlq.Publish(ctx, msg, cause, c.group); err != nil {
		log.Error("failed to dead-letter message", slog.String("error", err.Error()))
		return
	}
	consumerDLQPublished.WithLabelValues(msg.Topic, c.group).Inc()
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message, log *slog.Logger) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		log.Error("failed to commit message", slog.String("error", err.Error()))
	}
}

// Close closes the consumer. It is safe to call multiple times.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.reader.Close()
	})
	return err
}
