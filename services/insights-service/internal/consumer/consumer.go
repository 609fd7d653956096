// Package consumer runs Kafka group readers that feed the read model.
// The Postgres inbox screens out already-processed events and is written
// only after a successful handle, so redeliveries neither double-count
// metrics nor get lost to a transient handler failure.
package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/salonpulse/salonpulse/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const readRetryDelay = time.Second

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox is the dedupe surface the consumer needs; *inbox.Repository
// implements it.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID, eventType string) (bool, error)
}

type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	inbox   Inbox
	handler Handler
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, inboxRepo Inbox, cfg Config, handler Handler) *Consumer {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader:  reader,
		logger:  logger,
		inbox:   inboxRepo,
		handler: handler,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err, "topic", c.reader.Config().Topic)
			time.Sleep(readRetryDelay)
			continue
		}

		c.process(ctx, msg)
	}
}

// process applies one message. The inbox row is written only after the
// handler succeeds, so a transient handler failure leaves the event
// unrecorded and the redelivery gets a second chance. Handlers upsert, so a
// crash between handle and record at worst re-applies an idempotent write.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)

	seen, err := c.inbox.Seen(ctxSpan, meta.EventID)
	if err != nil {
		c.logger.Error("inbox lookup failed", "err", err)
		span.RecordError(err)
		return
	}
	if seen {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
		return
	}

	if _, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType); err != nil {
		c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
	}
}
