package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox deduplicates events across redeliveries.
type Inbox interface {
	Record(ctx context.Context, eventID, eventType string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// MessageReader is the subset of *kafka.Reader the consumer drives.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader  MessageReader
	logger  *slog.Logger
	inbox   Inbox
	handler Handler
	metrics *metrics.Metrics
	backoff time.Duration

	// attempts bounds in-place retries of one message before it is committed and dropped.
	attempts int
}

type Config struct {
	Brokers []string
	GroupID string
	Topics  []string
}

func NewReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
}

func New(reader MessageReader, logger *slog.Logger, inbox Inbox, m *metrics.Metrics, handler Handler) *Consumer {
	return &Consumer{
		reader:  reader,
		logger:  logger,
		inbox:   inbox,
		handler: handler,
		metrics: m,
		backoff: time.Second,

		attempts: 5,
	}
}

// Run consumes until ctx is cancelled. A failed event is forgotten by the inbox and retried in
// place; its offset is committed once it is handled, recognised as a duplicate, or out of attempts.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			c.sleep(ctx)
			continue
		}

		for attempt := 1; !c.process(ctx, msg); attempt++ {
			if ctx.Err() != nil {
				return
			}
			if attempt >= c.attempts {
				c.logger.Error("dropping event after retries", "topic", msg.Topic, "offset", msg.Offset, "attempts", attempt)
				c.metrics.InboxEvent(msg.Topic, "dropped")
				break
			}
			c.sleep(ctx)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

// process reports whether msg can be committed.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	ctxSpan, span := otel.Tracer("kafka").Start(kafkax.ExtractTraceContext(ctx, msg), "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	// Without an event id there is nothing safe to dedup on; the handlers are idempotent upserts.
	dedup := meta.EventID != ""
	if dedup {
		fresh, err := c.inbox.Record(ctxSpan, meta.EventID, meta.EventType)
		if err != nil {
			c.logger.Error("inbox record failed", "err", err, "event_id", meta.EventID)
			span.RecordError(err)
			c.metrics.InboxEvent(msg.Topic, "inbox_error")
			return false
		}
		if !fresh {
			c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
			c.metrics.InboxEvent(msg.Topic, "duplicate")
			return true
		}
	}

	if err := c.handler(ctxSpan, msg); err != nil {
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID, "topic", msg.Topic, "offset", msg.Offset)
		span.RecordError(err)
		c.metrics.InboxEvent(msg.Topic, "handler_error")
		if dedup {
			if ferr := c.inbox.Forget(ctxSpan, meta.EventID); ferr != nil {
				c.logger.Error("inbox forget failed", "err", ferr, "event_id", meta.EventID)
			}
		}
		return false
	}
	c.metrics.InboxEvent(msg.Topic, "ok")
	return true
}

func (c *Consumer) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(c.backoff):
	}
}
