package outbox

import (
	"context"
	"time"
)

const (
	TopicAppointmentBooked  = "booking.appointment.booked.v1"
	TopicAppointmentSettled = "booking.appointment.settled.v1"
)

// Event is the envelope written to the outbox. The topic (or routing key) equals EventType.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
}

// Record is a stored, not yet relayed event.
type Record struct {
	ID int64
	Event
	CreatedAt time.Time
}

// Store persists events and hands unpublished batches to a relay.
type Store interface {
	Append(ctx context.Context, evt Event) error
	// Relay passes up to limit unpublished records to deliver and marks them published
	// only if deliver succeeds. It returns the number of records relayed.
	Relay(ctx context.Context, limit int, deliver func(context.Context, []Record) error) (int, error)
}
