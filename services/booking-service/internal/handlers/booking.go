package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// staffRoles may close appointments, change status and read the ledger.
var staffRoles = []string{auth.RoleStaff, auth.RoleAdmin, auth.RoleOwner}

type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

// Register mounts the booking API. public wraps the unauthenticated endpoints (rate limiting).
func (h *BookingHandler) Register(mux *http.ServeMux, public httpx.Middleware) {
	mux.Handle("GET /api/v1/slots", httpx.Chain(http.HandlerFunc(h.Slots), public))
	mux.Handle("POST /api/v1/appointments", httpx.Chain(http.HandlerFunc(h.Create), public))
	mux.Handle("GET /api/v1/appointments", auth.RequireRole(http.HandlerFunc(h.List), staffRoles...))
	mux.Handle("POST /api/v1/appointments/{id}/close", auth.RequireRole(http.HandlerFunc(h.Close), staffRoles...))
	mux.Handle("POST /api/v1/appointments/{id}/status", auth.RequireRole(http.HandlerFunc(h.UpdateStatus), staffRoles...))
	mux.Handle("GET /api/v1/appointments/{id}/transactions", auth.RequireRole(http.HandlerFunc(h.Transactions), staffRoles...))
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	q := booking.SlotsQuery{
		ProfessionalID: strings.TrimSpace(r.URL.Query().Get("professional_id")),
		Date:           strings.TrimSpace(r.URL.Query().Get("date")),
		ServiceID:      strings.TrimSpace(r.URL.Query().Get("service_id")),
	}
	slots, err := h.svc.GetAvailableSlots(r.Context(), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := slotsResponse{ProfessionalID: q.ProfessionalID, ServiceID: q.ServiceID, Date: q.Date, Slots: make([]string, 0, len(slots))}
	for _, s := range slots {
		out.Slots = append(out.Slots, model.FormatClock(s))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", "invalid json body")
		return
	}

	unitID := strings.TrimSpace(req.UnitID)
	if actor, ok := auth.ActorFromContext(r.Context()); ok && actor.UnitID != "" {
		if unitID != "" && unitID != actor.UnitID {
			httpx.WriteError(w, http.StatusForbidden, "forbidden", "unit_id does not match caller")
			return
		}
		unitID = actor.UnitID
	}

	res, err := h.svc.CreateAppointment(r.Context(), booking.CreateAppointmentRequest{
		UnitID:         unitID,
		ProfessionalID: strings.TrimSpace(req.ProfessionalID),
		ServiceID:      strings.TrimSpace(req.ServiceID),
		Date:           strings.TrimSpace(req.Date),
		StartTime:      strings.TrimSpace(req.StartTime),
		ClientName:     req.ClientName,
		ClientPhone:    req.ClientPhone,
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, toAppointment(res.Appointment))
}

func (h *BookingHandler) Close(w http.ResponseWriter, r *http.Request) {
	var req closeAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", "invalid json body")
		return
	}
	settlement, err := h.svc.CloseAppointment(r.Context(), booking.CloseAppointmentRequest{
		AppointmentID:    r.PathValue("id"),
		PaymentMethod:    req.PaymentMethod,
		PaymentReference: req.PaymentReference,
		UnitID:           callerUnit(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toSettlement(settlement))
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", "invalid json body")
		return
	}
	appt, err := h.svc.UpdateStatus(r.Context(), booking.StatusChange{
		AppointmentID: r.PathValue("id"),
		Status:        req.Status,
		UnitID:        callerUnit(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAppointment(appt))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	appts, err := h.svc.ListAppointments(r.Context(),
		strings.TrimSpace(r.URL.Query().Get("professional_id")),
		strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	unit := callerUnit(r)
	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		if unit != "" && a.UnitID != unit {
			continue
		}
		items = append(items, toAppointment(a))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"appointments": items})
}

func (h *BookingHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.svc.ListTransactions(r.Context(), r.PathValue("id"), callerUnit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		items = append(items, toTransaction(t))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"transactions": items})
}

func callerUnit(r *http.Request) string {
	actor, _ := auth.ActorFromContext(r.Context())
	return actor.UnitID
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := booking.Code(err)
	status := http.StatusServiceUnavailable
	switch {
	case errors.Is(err, booking.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, booking.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, booking.ErrConflict), errors.Is(err, booking.ErrAlreadySettled):
		status = http.StatusConflict
	}

	msg := err.Error()
	if status == http.StatusServiceUnavailable {
		h.logger.ErrorContext(r.Context(), "booking request failed", "path", r.URL.Path, "err", err)
		msg = "temporarily unavailable, retry the request"
	}
	httpx.WriteError(w, status, code, msg)
}
