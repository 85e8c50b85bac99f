package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Notifier records booking notifications in the outbox after the booking has committed.
// Delivery is the relay's job; a failed Append never affects the booking itself.
type Notifier struct {
	store Store
}

func NewNotifier(store Store) *Notifier {
	return &Notifier{store: store}
}

type AppointmentBookedPayload struct {
	AppointmentID  string    `json:"appointment_id"`
	UnitID         string    `json:"unit_id"`
	ProfessionalID string    `json:"professional_id"`
	ServiceID      string    `json:"service_id"`
	Date           string    `json:"date"`
	StartTime      string    `json:"start_time"`
	EndTime        string    `json:"end_time"`
	ClientName     string    `json:"client_name"`
	ClientPhone    string    `json:"client_phone"`
	Price          string    `json:"price"`
	CreatedAt      time.Time `json:"created_at"`
}

type AppointmentSettledPayload struct {
	AppointmentID           string `json:"appointment_id"`
	UnitID                  string `json:"unit_id"`
	ProfessionalID          string `json:"professional_id"`
	Price                   string `json:"price"`
	CommissionPercentage    string `json:"commission_percentage"`
	CommissionAmount        string `json:"commission_amount"`
	SalonAmount             string `json:"salon_amount"`
	PaymentMethod           string `json:"payment_method"`
	IncomeTransactionID     string `json:"income_transaction_id"`
	CommissionTransactionID string `json:"commission_transaction_id"`
}

func (n *Notifier) AppointmentBooked(ctx context.Context, a model.Appointment) error {
	return n.append(ctx, a.ID, TopicAppointmentBooked, AppointmentBookedPayload{
		AppointmentID:  a.ID,
		UnitID:         a.UnitID,
		ProfessionalID: a.ProfessionalID,
		ServiceID:      a.ServiceID,
		Date:           a.Date,
		StartTime:      model.FormatClock(a.StartMinute),
		EndTime:        model.FormatClock(a.EndMinute),
		ClientName:     a.ClientName,
		ClientPhone:    a.ClientPhone,
		Price:          a.Price.StringFixed(2),
		CreatedAt:      a.CreatedAt.UTC(),
	})
}

func (n *Notifier) AppointmentSettled(ctx context.Context, s model.Settlement) error {
	p := AppointmentSettledPayload{
		AppointmentID:           s.AppointmentID,
		UnitID:                  s.Income.UnitID,
		Price:                   s.Price.StringFixed(2),
		CommissionPercentage:    s.CommissionPercentage.String(),
		CommissionAmount:        s.CommissionAmount.StringFixed(2),
		SalonAmount:             s.SalonAmount.StringFixed(2),
		PaymentMethod:           s.Income.PaymentMethod,
		IncomeTransactionID:     s.Income.ID,
		CommissionTransactionID: s.Commission.ID,
	}
	if s.Commission.ProfessionalID != nil {
		p.ProfessionalID = *s.Commission.ProfessionalID
	}
	return n.append(ctx, s.AppointmentID, TopicAppointmentSettled, p)
}

func (n *Notifier) append(ctx context.Context, aggregateID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	return n.store.Append(ctx, Event{
		EventID:       uuid.NewString(),
		AggregateType: "appointment",
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
		Traceparent:   traceparent,
		Tracestate:    tracestate,
	})
}
