package handlers

import (
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

type createAppointmentRequest struct {
	UnitID         string `json:"unit_id"`
	ProfessionalID string `json:"professional_id"`
	ServiceID      string `json:"service_id"`
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	ClientName     string `json:"client_name"`
	ClientPhone    string `json:"client_phone"`
	Notes          string `json:"notes"`
}

type closeAppointmentRequest struct {
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type slotsResponse struct {
	ProfessionalID string   `json:"professional_id"`
	ServiceID      string   `json:"service_id"`
	Date           string   `json:"date"`
	Slots          []string `json:"slots"`
}

type appointmentResponse struct {
	ID              string `json:"id"`
	UnitID          string `json:"unit_id"`
	ProfessionalID  string `json:"professional_id"`
	ServiceID       string `json:"service_id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           string `json:"price"`
	ClientName      string `json:"client_name"`
	ClientPhone     string `json:"client_phone"`
	Notes           string `json:"notes,omitempty"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
	CompletedAt     string `json:"completed_at,omitempty"`
}

type transactionResponse struct {
	ID             string `json:"id"`
	UnitID         string `json:"unit_id"`
	AppointmentID  string `json:"appointment_id,omitempty"`
	ProfessionalID string `json:"professional_id,omitempty"`
	Type           string `json:"type"`
	Amount         string `json:"amount"`
	Description    string `json:"description"`
	PaymentMethod  string `json:"payment_method"`
	CreatedAt      string `json:"created_at"`
}

type settlementResponse struct {
	AppointmentID         string              `json:"appointment_id"`
	Price                 string              `json:"price"`
	CommissionPercentage  string              `json:"commission_percentage"`
	CommissionAmount      string              `json:"commission_amount"`
	SalonAmount           string              `json:"salon_amount"`
	IncomeTransaction     transactionResponse `json:"income_transaction"`
	CommissionTransaction transactionResponse `json:"commission_transaction"`
}

func toAppointment(a model.Appointment) appointmentResponse {
	out := appointmentResponse{
		ID:              a.ID,
		UnitID:          a.UnitID,
		ProfessionalID:  a.ProfessionalID,
		ServiceID:       a.ServiceID,
		Date:            a.Date,
		StartTime:       model.FormatClock(a.StartMinute),
		EndTime:         model.FormatClock(a.EndMinute),
		DurationMinutes: a.DurationMinutes,
		Price:           a.Price.StringFixed(2),
		ClientName:      a.ClientName,
		ClientPhone:     a.ClientPhone,
		Notes:           a.Notes,
		Status:          string(a.Status),
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.CompletedAt != nil {
		out.CompletedAt = a.CompletedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func toTransaction(t model.Transaction) transactionResponse {
	out := transactionResponse{
		ID:            t.ID,
		UnitID:        t.UnitID,
		Type:          string(t.Type),
		Amount:        t.Amount.StringFixed(2),
		Description:   t.Description,
		PaymentMethod: t.PaymentMethod,
		CreatedAt:     t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.AppointmentID != nil {
		out.AppointmentID = *t.AppointmentID
	}
	if t.ProfessionalID != nil {
		out.ProfessionalID = *t.ProfessionalID
	}
	return out
}

func toSettlement(s model.Settlement) settlementResponse {
	return settlementResponse{
		AppointmentID:         s.AppointmentID,
		Price:                 s.Price.StringFixed(2),
		CommissionPercentage:  s.CommissionPercentage.String(),
		CommissionAmount:      s.CommissionAmount.StringFixed(2),
		SalonAmount:           s.SalonAmount.StringFixed(2),
		IncomeTransaction:     toTransaction(s.Income),
		CommissionTransaction: toTransaction(s.Commission),
	}
}
