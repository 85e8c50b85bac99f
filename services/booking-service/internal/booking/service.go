package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

const minutesPerDay = 24 * 60

// PaymentMethodCard is the method whose references are verified with the card processor.
const PaymentMethodCard = "card"

// Service is the scheduling and settlement engine. It is safe for concurrent use;
// all shared state lives behind Store.
type Service struct {
	catalog  Catalog
	blocked  BlockedTimes
	store    Store
	policies calendar.Source
	notifier Notifier
	payments PaymentVerifier
	loc      *time.Location
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string
}

type Deps struct {
	Catalog  Catalog
	Blocked  BlockedTimes
	Store    Store
	Policies calendar.Source
	// Optional below.
	Notifier Notifier
	Payments PaymentVerifier
	Location *time.Location
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

func NewService(d Deps) (*Service, error) {
	if d.Catalog == nil || d.Blocked == nil || d.Store == nil || d.Policies == nil {
		return nil, errors.New("booking: catalog, blocked times, store and policies are required")
	}
	s := &Service{
		catalog:  d.Catalog,
		blocked:  d.Blocked,
		store:    d.Store,
		policies: d.Policies,
		notifier: d.Notifier,
		payments: d.Payments,
		loc:      d.Location,
		logger:   d.Logger,
		metrics:  d.Metrics,
		tracer:   otelx.Tracer("booking"),
		now:      d.Now,
		newID:    uuid.NewString,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

type SlotsQuery struct {
	ProfessionalID string
	Date           string
	ServiceID      string
}

// GetAvailableSlots returns bookable start minutes for the service on date, ascending.
// The result is a snapshot and reserves nothing.
func (s *Service) GetAvailableSlots(ctx context.Context, q SlotsQuery) (slots []int, err error) {
	ctx, done := s.begin(ctx, "get_available_slots", attribute.String("professional_id", q.ProfessionalID))
	defer func() { done(err) }()

	if err := requireFields(map[string]string{
		"professional_id": q.ProfessionalID,
		"date":            q.Date,
		"service_id":      q.ServiceID,
	}); err != nil {
		return nil, err
	}
	date, err := model.ParseDate(q.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}

	svc, err := s.catalog.ServiceByID(ctx, q.ServiceID)
	if err != nil {
		return nil, storeErr("load service", err)
	}
	policy, err := s.policies.PolicyFor(ctx, q.ProfessionalID)
	if err != nil {
		return nil, storeErr("load calendar policy", err)
	}

	appts, err := s.store.ActiveAppointments(ctx, q.ProfessionalID, q.Date)
	if err != nil {
		return nil, storeErr("list appointments", err)
	}
	booked := make([]availability.MinuteRange, 0, len(appts))
	for _, a := range appts {
		booked = append(booked, availability.MinuteRange{Start: a.StartMinute, End: a.EndMinute})
	}

	day := availability.DayOf(date, s.loc)
	bounds := day.Bounds()
	blocks, err := s.blocked.BlockedBetween(ctx, q.ProfessionalID, bounds.Start, bounds.End)
	if err != nil {
		return nil, storeErr("list blocked times", err)
	}
	blocked := make([]availability.Interval, 0, len(blocks))
	for _, b := range blocks {
		blocked = append(blocked, availability.Interval{Start: b.Start, End: b.End})
	}

	return availability.AvailableSlots(policy, day, svc.DurationMinutes, booked, blocked), nil
}

type CreateAppointmentRequest struct {
	UnitID         string
	ProfessionalID string
	ServiceID      string
	Date           string // YYYY-MM-DD
	StartTime      string // HH:MM
	ClientName     string
	ClientPhone    string
	Notes          string
	IdempotencyKey string
}

type CreateResult struct {
	Appointment model.Appointment
	// Replayed is set when the idempotency key matched an earlier booking.
	Replayed bool
}

// CreateAppointment admits a pending appointment. The store re-checks overlaps atomically
// with the insert, so a stale availability snapshot cannot double-book.
func (s *Service) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (res CreateResult, err error) {
	ctx, done := s.begin(ctx, "create_appointment", attribute.String("professional_id", req.ProfessionalID))
	defer func() { done(err) }()

	req.ClientName = strings.TrimSpace(req.ClientName)
	req.ClientPhone = strings.TrimSpace(req.ClientPhone)
	if err := requireFields(map[string]string{
		"unit_id":         req.UnitID,
		"professional_id": req.ProfessionalID,
		"service_id":      req.ServiceID,
		"date":            req.Date,
		"start_time":      req.StartTime,
		"client_name":     req.ClientName,
		"client_phone":    req.ClientPhone,
	}); err != nil {
		return CreateResult{}, err
	}
	if _, err := model.ParseDate(req.Date); err != nil {
		return CreateResult{}, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	start, err := model.ParseClock(req.StartTime)
	if err != nil {
		return CreateResult{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	svc, err := s.catalog.ServiceByID(ctx, req.ServiceID)
	if err != nil {
		return CreateResult{}, storeErr("load service", err)
	}
	end := start + svc.DurationMinutes
	if end > minutesPerDay {
		return CreateResult{}, fmt.Errorf("%w: appointment would run past midnight", ErrInvalidInput)
	}

	now := s.now()
	appt := model.Appointment{
		ID:              s.newID(),
		UnitID:          req.UnitID,
		ProfessionalID:  req.ProfessionalID,
		ServiceID:       svc.ID,
		Date:            req.Date,
		StartMinute:     start,
		EndMinute:       end,
		DurationMinutes: svc.DurationMinutes,
		Price:           svc.Price,
		ClientName:      req.ClientName,
		ClientPhone:     req.ClientPhone,
		Notes:           strings.TrimSpace(req.Notes),
		Status:          model.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	stored, replayed, err := s.store.InsertAppointment(ctx, appt, strings.TrimSpace(req.IdempotencyKey))
	if err != nil {
		return CreateResult{}, storeErr("insert appointment", err)
	}
	if !replayed && s.notifier != nil {
		if nerr := s.notifier.AppointmentBooked(ctx, stored); nerr != nil {
			s.logger.WarnContext(ctx, "booking notification failed", "appointment_id", stored.ID, "err", nerr)
			s.metrics.NotificationFailed("appointment.booked")
		}
	}
	return CreateResult{Appointment: stored, Replayed: replayed}, nil
}

type CloseAppointmentRequest struct {
	AppointmentID    string
	PaymentMethod    string
	PaymentReference string
	// UnitID, when set, scopes the lookup to that unit.
	UnitID string
}

// CloseAppointment settles the appointment: completed status plus income and commission
// postings, committed together. A second close fails with ErrAlreadySettled.
func (s *Service) CloseAppointment(ctx context.Context, req CloseAppointmentRequest) (settlement model.Settlement, err error) {
	ctx, done := s.begin(ctx, "close_appointment", attribute.String("appointment_id", req.AppointmentID))
	defer func() { done(err) }()

	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if err := requireFields(map[string]string{
		"appointment_id": req.AppointmentID,
		"payment_method": method,
	}); err != nil {
		return model.Settlement{}, err
	}

	appt, err := s.scopedAppointment(ctx, req.AppointmentID, req.UnitID)
	if err != nil {
		return model.Settlement{}, err
	}
	switch appt.Status {
	case model.StatusCompleted:
		return model.Settlement{}, fmt.Errorf("%w: %s", ErrAlreadySettled, appt.ID)
	case model.StatusCancelled:
		return model.Settlement{}, fmt.Errorf("%w: cancelled appointments cannot be closed", ErrInvalidInput)
	}

	prof, err := s.catalog.ProfessionalByID(ctx, appt.ProfessionalID)
	if err != nil {
		return model.Settlement{}, storeErr("load professional", err)
	}

	ref := strings.TrimSpace(req.PaymentReference)
	if method == PaymentMethodCard && ref != "" && s.payments != nil {
		if perr := s.payments.VerifyPayment(ctx, appt.ID, ref, appt.Price); perr != nil {
			if errors.Is(perr, ErrPaymentRejected) {
				return model.Settlement{}, fmt.Errorf("%w: payment %s not verified: %v", ErrInvalidInput, ref, perr)
			}
			return model.Settlement{}, storeErr("verify payment", perr)
		}
	}

	pct := prof.CommissionPercentage
	now := s.now()
	settlement, err = s.store.CompleteAppointment(ctx, appt.ID, func(closed model.Appointment) (model.Settlement, error) {
		return s.buildSettlement(closed, pct, method, now)
	})
	if err != nil {
		return model.Settlement{}, storeErr("complete appointment", err)
	}

	if s.notifier != nil {
		if nerr := s.notifier.AppointmentSettled(ctx, settlement); nerr != nil {
			s.logger.WarnContext(ctx, "settlement notification failed", "appointment_id", appt.ID, "err", nerr)
			s.metrics.NotificationFailed("appointment.settled")
		}
	}
	return settlement, nil
}

func (s *Service) buildSettlement(appt model.Appointment, pct decimal.Decimal, method string, now time.Time) (model.Settlement, error) {
	commission, salon, err := SplitCommission(appt.Price, pct)
	if err != nil {
		return model.Settlement{}, err
	}
	apptID := appt.ID
	profID := appt.ProfessionalID
	return model.Settlement{
		AppointmentID:        appt.ID,
		Price:                appt.Price,
		CommissionPercentage: pct,
		CommissionAmount:     commission,
		SalonAmount:          salon,
		Income: model.Transaction{
			ID:            s.newID(),
			UnitID:        appt.UnitID,
			AppointmentID: &apptID,
			Type:          model.TxIncome,
			Amount:        appt.Price,
			Description:   "service income for appointment " + appt.ID,
			PaymentMethod: method,
			CreatedAt:     now,
		},
		Commission: model.Transaction{
			ID:             s.newID(),
			UnitID:         appt.UnitID,
			AppointmentID:  &apptID,
			ProfessionalID: &profID,
			Type:           model.TxCommission,
			Amount:         commission,
			Description:    "commission " + pct.String() + "% for appointment " + appt.ID,
			PaymentMethod:  method,
			CreatedAt:      now,
		},
	}, nil
}

type StatusChange struct {
	AppointmentID string
	Status        string
	UnitID        string
}

// Completed is reachable only through CloseAppointment.
var statusSources = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.StatusConfirmed: {model.StatusPending},
	model.StatusCancelled: {model.StatusPending, model.StatusConfirmed},
}

// UpdateStatus applies a staff confirm or cancel as a guarded conditional write.
func (s *Service) UpdateStatus(ctx context.Context, req StatusChange) (appt model.Appointment, err error) {
	ctx, done := s.begin(ctx, "update_status", attribute.String("appointment_id", req.AppointmentID))
	defer func() { done(err) }()

	to := model.AppointmentStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !to.Valid() {
		return model.Appointment{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, req.Status)
	}
	from, ok := statusSources[to]
	if !ok {
		return model.Appointment{}, fmt.Errorf("%w: status must be confirmed or cancelled", ErrInvalidInput)
	}
	if req.AppointmentID == "" {
		return model.Appointment{}, fmt.Errorf("%w: appointment_id is required", ErrInvalidInput)
	}
	if _, err := s.scopedAppointment(ctx, req.AppointmentID, req.UnitID); err != nil {
		return model.Appointment{}, err
	}
	appt, err = s.store.TransitionStatus(ctx, req.AppointmentID, from, to)
	if err != nil {
		return model.Appointment{}, storeErr("update status", err)
	}
	return appt, nil
}

// ListAppointments returns every appointment for the professional on date, by start time.
func (s *Service) ListAppointments(ctx context.Context, professionalID, date string) ([]model.Appointment, error) {
	if err := requireFields(map[string]string{"professional_id": professionalID, "date": date}); err != nil {
		return nil, err
	}
	if _, err := model.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	appts, err := s.store.ListAppointments(ctx, professionalID, date)
	return appts, storeErr("list appointments", err)
}

// ListTransactions returns the ledger rows posted for an appointment.
func (s *Service) ListTransactions(ctx context.Context, appointmentID, unitID string) ([]model.Transaction, error) {
	if appointmentID == "" {
		return nil, fmt.Errorf("%w: appointment_id is required", ErrInvalidInput)
	}
	if _, err := s.scopedAppointment(ctx, appointmentID, unitID); err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx, appointmentID)
	return txs, storeErr("list transactions", err)
}

func (s *Service) scopedAppointment(ctx context.Context, id, unitID string) (model.Appointment, error) {
	appt, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return model.Appointment{}, storeErr("load appointment", err)
	}
	if unitID != "" && appt.UnitID != unitID {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", ErrNotFound, id)
	}
	return appt, nil
}

func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "booking."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		code := Code(err)
		if err != nil {
			span.RecordError(err)
			if code == "store_failure" {
				span.SetStatus(codes.Error, err.Error())
				s.logger.ErrorContext(ctx, "booking operation failed", "op", op, "err", err)
			}
		}
		span.SetAttributes(attribute.String("outcome", code))
		span.End()
		s.metrics.ObserveOperation(op, code, time.Since(start))
	}
}

func requireFields(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
}
