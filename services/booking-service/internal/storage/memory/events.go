package memory

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

func (s *Store) Append(_ context.Context, evt outbox.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOutboxID++
	s.outbox = append(s.outbox, outboxRow{rec: outbox.Record{ID: s.nextOutboxID, Event: evt, CreatedAt: time.Now()}})
	return nil
}

// Relay delivers outside the store lock so a slow sink does not stall bookings.
// Rows are only appended, so the collected indexes stay valid until they are marked.
func (s *Store) Relay(ctx context.Context, limit int, deliver func(context.Context, []outbox.Record) error) (int, error) {
	s.relayMu.Lock()
	defer s.relayMu.Unlock()

	s.mu.Lock()
	var idx []int
	var batch []outbox.Record
	for i := range s.outbox {
		if len(batch) == limit {
			break
		}
		if !s.outbox[i].published {
			idx = append(idx, i)
			batch = append(batch, s.outbox[i].rec)
		}
	}
	s.mu.Unlock()

	if len(batch) == 0 {
		return 0, nil
	}
	if err := deliver(ctx, batch); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range idx {
		s.outbox[i].published = true
	}
	return len(batch), nil
}

// Record notes an inbox event id; false means it was seen before.
func (s *Store) Record(_ context.Context, eventID, eventType string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.inbox[eventID]; seen {
		return false, nil
	}
	s.inbox[eventID] = eventType
	return true, nil
}

func (s *Store) Forget(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inbox, eventID)
	return nil
}
