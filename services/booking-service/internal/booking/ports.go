package booking

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Catalog resolves services and professionals. Missing ids yield ErrNotFound.
type Catalog interface {
	ServiceByID(ctx context.Context, id string) (model.Service, error)
	ProfessionalByID(ctx context.Context, id string) (model.Professional, error)
}

// BlockedTimes lists ranges intersecting [from, to) for a professional.
type BlockedTimes interface {
	BlockedBetween(ctx context.Context, professionalID string, from, to time.Time) ([]model.BlockedTime, error)
}

// SettleFunc turns the appointment row just marked completed into its ledger postings.
// Returning an error aborts the settlement and leaves the appointment unchanged.
type SettleFunc func(appt model.Appointment) (model.Settlement, error)

// Store is the durable atomic store for appointments and the ledger.
type Store interface {
	// ActiveAppointments returns non-cancelled appointments for the professional on date.
	ActiveAppointments(ctx context.Context, professionalID, date string) ([]model.Appointment, error)

	// InsertAppointment re-checks overlaps and inserts as one serializable unit, failing with
	// ErrConflict on overlap. With a non-empty idempotency key, a previous insert under the same
	// unit and key is returned instead with replayed set.
	InsertAppointment(ctx context.Context, appt model.Appointment, idempotencyKey string) (stored model.Appointment, replayed bool, err error)

	GetAppointment(ctx context.Context, id string) (model.Appointment, error)

	// CompleteAppointment moves a pending or confirmed appointment to completed and appends the
	// postings returned by settle, all or nothing. A completed appointment yields ErrAlreadySettled,
	// a cancelled one ErrInvalidInput.
	CompleteAppointment(ctx context.Context, id string, settle SettleFunc) (model.Settlement, error)

	// TransitionStatus moves the appointment to `to` only if its current status is one of from.
	TransitionStatus(ctx context.Context, id string, from []model.AppointmentStatus, to model.AppointmentStatus) (model.Appointment, error)

	ListAppointments(ctx context.Context, professionalID, date string) ([]model.Appointment, error)
	ListTransactions(ctx context.Context, appointmentID string) ([]model.Transaction, error)
}

// Notifier receives fire-and-forget notifications after commit.
type Notifier interface {
	AppointmentBooked(ctx context.Context, appt model.Appointment) error
	AppointmentSettled(ctx context.Context, s model.Settlement) error
}

// PaymentVerifier confirms an external card payment covers amount. A payment that does not
// qualify yields an error wrapping ErrPaymentRejected.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, appointmentID, reference string, amount decimal.Decimal) error
}
