package outbox

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPSink publishes to a topic exchange with the event type as routing key.
// Confirms are enabled so a batch only counts as delivered once the broker acks it.
type AMQPSink struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPSink(url, exchange string) *AMQPSink {
	return &AMQPSink{url: url, exchange: exchange}
}

func (s *AMQPSink) channel() (*amqp.Channel, error) {
	if s.ch != nil && !s.ch.IsClosed() {
		return s.ch, nil
	}
	if s.conn == nil || s.conn.IsClosed() {
		conn, err := amqp.Dial(s.url)
		if err != nil {
			return nil, fmt.Errorf("amqp dial: %w", err)
		}
		s.conn = conn
	}
	ch, err := s.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(s.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("amqp exchange declare: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("amqp confirm mode: %w", err)
	}
	s.ch = ch
	return ch, nil
}

func (s *AMQPSink) Publish(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, err := s.channel()
	if err != nil {
		return err
	}
	confirms := make([]*amqp.DeferredConfirmation, 0, len(records))
	for _, r := range records {
		dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, s.exchange, r.EventType, false, false, toAMQPPublishing(r))
		if err != nil {
			return fmt.Errorf("amqp publish %s: %w", r.EventID, err)
		}
		confirms = append(confirms, dc)
	}
	for i, dc := range confirms {
		acked, err := dc.WaitContext(ctx)
		if err != nil {
			return err
		}
		if !acked {
			return fmt.Errorf("amqp broker nacked event %s", records[i].EventID)
		}
	}
	return nil
}

func toAMQPPublishing(r Record) amqp.Publishing {
	headers := amqp.Table{"event_type": r.EventType, "aggregate_id": r.AggregateID}
	if r.Traceparent != "" {
		headers["traceparent"] = r.Traceparent
	}
	if r.Tracestate != "" {
		headers["tracestate"] = r.Tracestate
	}
	return amqp.Publishing{
		MessageId:    r.EventID,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    r.CreatedAt,
		Type:         r.EventType,
		Headers:      headers,
		Body:         r.Payload,
	}
}

func (s *AMQPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

