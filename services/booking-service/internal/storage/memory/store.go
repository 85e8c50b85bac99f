// Package memory is a process-local implementation of the booking store, catalog,
// outbox and inbox. One mutex serialises every write, which makes admission's
// check-then-insert atomic.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
)

type idemKey struct {
	unitID string
	key    string
}

type Store struct {
	mu      sync.Mutex
	// relayMu serialises outbox relays so a batch is never delivered twice concurrently.
	relayMu sync.Mutex

	services      map[string]model.Service
	professionals map[string]model.Professional
	blocked       map[string]model.BlockedTime
	appointments  map[string]model.Appointment
	idempotency   map[idemKey]string
	ledger        []model.Transaction

	outbox       []outboxRow
	nextOutboxID int64
	inbox        map[string]string
}

type outboxRow struct {
	rec       outbox.Record
	published bool
}

func New() *Store {
	return &Store{
		services:      map[string]model.Service{},
		professionals: map[string]model.Professional{},
		blocked:       map[string]model.BlockedTime{},
		appointments:  map[string]model.Appointment{},
		idempotency:   map[idemKey]string{},
		inbox:         map[string]string{},
	}
}

// Catalog

func (s *Store) ServiceByID(_ context.Context, id string) (model.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[id]
	if !ok {
		return model.Service{}, fmt.Errorf("%w: service %s", booking.ErrNotFound, id)
	}
	return svc, nil
}

func (s *Store) ProfessionalByID(_ context.Context, id string) (model.Professional, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.professionals[id]
	if !ok {
		return model.Professional{}, fmt.Errorf("%w: professional %s", booking.ErrNotFound, id)
	}
	return p, nil
}

// UpsertService keeps the newer of the stored and incoming versions.
func (s *Store) UpsertService(_ context.Context, svc model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.services[svc.ID]; ok && cur.UpdatedAt.After(svc.UpdatedAt) {
		return nil
	}
	s.services[svc.ID] = svc
	return nil
}

func (s *Store) UpsertProfessional(_ context.Context, p model.Professional) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.professionals[p.ID]; ok && cur.UpdatedAt.After(p.UpdatedAt) {
		return nil
	}
	s.professionals[p.ID] = p
	return nil
}

func (s *Store) AddBlockedTime(_ context.Context, b model.BlockedTime) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked[b.ID] = b
	return nil
}

func (s *Store) DeleteBlockedTime(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocked, id)
	return nil
}

func (s *Store) BlockedBetween(_ context.Context, professionalID string, from, to time.Time) ([]model.BlockedTime, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.BlockedTime
	for _, b := range s.blocked {
		if b.ProfessionalID == professionalID && availability.OverlapsTime(b.Start, b.End, from, to) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b model.BlockedTime) int { return a.Start.Compare(b.Start) })
	return out, nil
}

// Appointments

func (s *Store) ActiveAppointments(_ context.Context, professionalID, date string) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dayLocked(professionalID, date, true), nil
}

func (s *Store) ListAppointments(_ context.Context, professionalID, date string) ([]model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dayLocked(professionalID, date, false), nil
}

func (s *Store) dayLocked(professionalID, date string, activeOnly bool) []model.Appointment {
	var out []model.Appointment
	for _, a := range s.appointments {
		if a.ProfessionalID != professionalID || a.Date != date {
			continue
		}
		if activeOnly && !a.Status.Active() {
			continue
		}
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b model.Appointment) int {
		return cmp.Or(cmp.Compare(a.StartMinute, b.StartMinute), cmp.Compare(a.ID, b.ID))
	})
	return out
}

func (s *Store) InsertAppointment(_ context.Context, appt model.Appointment, idempotencyKey string) (model.Appointment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idempotencyKey != "" {
		if id, ok := s.idempotency[idemKey{appt.UnitID, idempotencyKey}]; ok {
			return s.appointments[id], true, nil
		}
	}
	for _, other := range s.dayLocked(appt.ProfessionalID, appt.Date, true) {
		if availability.Overlaps(appt.StartMinute, appt.EndMinute, other.StartMinute, other.EndMinute) {
			return model.Appointment{}, false, fmt.Errorf("%w: overlaps appointment %s", booking.ErrConflict, other.ID)
		}
	}
	s.appointments[appt.ID] = appt
	if idempotencyKey != "" {
		s.idempotency[idemKey{appt.UnitID, idempotencyKey}] = appt.ID
	}
	return appt, false, nil
}

func (s *Store) GetAppointment(_ context.Context, id string) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", booking.ErrNotFound, id)
	}
	return a, nil
}

func (s *Store) CompleteAppointment(_ context.Context, id string, settle booking.SettleFunc) (model.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return model.Settlement{}, fmt.Errorf("%w: appointment %s", booking.ErrNotFound, id)
	}
	if err := rejectTransition(a, model.StatusPending, model.StatusConfirmed); err != nil {
		return model.Settlement{}, err
	}

	now := time.Now()
	a.Status = model.StatusCompleted
	a.UpdatedAt = now
	a.CompletedAt = &now
	settlement, err := settle(a)
	if err != nil {
		return model.Settlement{}, err
	}
	// Nothing is written until settle succeeds.
	s.appointments[id] = a
	s.ledger = append(s.ledger, settlement.Income, settlement.Commission)
	return settlement, nil
}

func (s *Store) TransitionStatus(_ context.Context, id string, from []model.AppointmentStatus, to model.AppointmentStatus) (model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", booking.ErrNotFound, id)
	}
	if err := rejectTransition(a, from...); err != nil {
		return model.Appointment{}, err
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	s.appointments[id] = a
	return a, nil
}

func rejectTransition(a model.Appointment, from ...model.AppointmentStatus) error {
	if slices.Contains(from, a.Status) {
		return nil
	}
	if a.Status == model.StatusCompleted {
		return fmt.Errorf("%w: %s", booking.ErrAlreadySettled, a.ID)
	}
	return fmt.Errorf("%w: appointment %s is %s", booking.ErrInvalidInput, a.ID, a.Status)
}

func (s *Store) ListTransactions(_ context.Context, appointmentID string) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Transaction
	for _, tx := range s.ledger {
		if tx.AppointmentID != nil && *tx.AppointmentID == appointmentID {
			out = append(out, tx)
		}
	}
	return out, nil
}

// LedgerAnomalies lists completed appointments without exactly one income and one commission row.
func (s *Store) LedgerAnomalies(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type tally struct{ income, commission int }
	counts := map[string]*tally{}
	for _, tx := range s.ledger {
		if tx.AppointmentID == nil {
			continue
		}
		t := counts[*tx.AppointmentID]
		if t == nil {
			t = &tally{}
			counts[*tx.AppointmentID] = t
		}
		switch tx.Type {
		case model.TxIncome:
			t.income++
		case model.TxCommission:
			t.commission++
		}
	}

	var out []string
	for id, a := range s.appointments {
		t := counts[id]
		switch {
		case a.Status == model.StatusCompleted && (t == nil || t.income != 1 || t.commission != 1):
			out = append(out, id)
		case a.Status != model.StatusCompleted && t != nil:
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out, nil
}
