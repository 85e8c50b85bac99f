package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// BookingRepository is the Postgres booking.Store.
type BookingRepository struct {
	pool *db.Pool
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

const appointmentColumns = `id, unit_id, professional_id, service_id, work_date::text, start_minute, end_minute,
	duration_minutes, price::text, client_name, client_phone, notes, status, created_at, updated_at, completed_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var (
		a      model.Appointment
		price  string
		status string
	)
	err := row.Scan(
		&a.ID,
		&a.UnitID,
		&a.ProfessionalID,
		&a.ServiceID,
		&a.Date,
		&a.StartMinute,
		&a.EndMinute,
		&a.DurationMinutes,
		&price,
		&a.ClientName,
		&a.ClientPhone,
		&a.Notes,
		&status,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CompletedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Status = model.AppointmentStatus(status)
	if a.Price, err = decimal.NewFromString(price); err != nil {
		return model.Appointment{}, fmt.Errorf("appointment %s price: %w", a.ID, err)
	}
	return a, nil
}

func (r *BookingRepository) ActiveAppointments(ctx context.Context, professionalID, date string) ([]model.Appointment, error) {
	return r.listDay(ctx, professionalID, date, true)
}

func (r *BookingRepository) ListAppointments(ctx context.Context, professionalID, date string) ([]model.Appointment, error) {
	return r.listDay(ctx, professionalID, date, false)
}

func (r *BookingRepository) listDay(ctx context.Context, professionalID, date string, activeOnly bool) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1
			AND work_date = $2::date
			AND ($3 = false OR status <> 'cancelled')
		ORDER BY start_minute ASC, id ASC
	`, professionalID, date, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *BookingRepository) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if IsNotFound(err) {
		return model.Appointment{}, fmt.Errorf("%w: appointment %s", booking.ErrNotFound, id)
	}
	return a, err
}

// InsertAppointment serialises admissions per professional and day with a transaction-scoped
// advisory lock, re-checks overlaps under it and inserts. The exclusion constraint on
// appointments rejects anything that slips past the lock.
func (r *BookingRepository) InsertAppointment(ctx context.Context, appt model.Appointment, idempotencyKey string) (model.Appointment, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if idempotencyKey != "" {
		existingID, err := lockIdempotencyKey(ctx, tx, appt.UnitID, idempotencyKey)
		if err != nil {
			return model.Appointment{}, false, err
		}
		if existingID != "" {
			prev, err := scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, existingID))
			if err != nil {
				return model.Appointment{}, false, err
			}
			return prev, true, tx.Commit(ctx)
		}
	}

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text || '/' || $2::text, 0))`, appt.ProfessionalID, appt.Date); err != nil {
		return model.Appointment{}, false, err
	}

	var clash string
	err = tx.QueryRow(ctx, `
		SELECT id
		FROM appointments
		WHERE professional_id = $1
			AND work_date = $2::date
			AND status <> 'cancelled'
			AND start_minute < $4
			AND end_minute > $3
		LIMIT 1
	`, appt.ProfessionalID, appt.Date, appt.StartMinute, appt.EndMinute).Scan(&clash)
	switch {
	case err == nil:
		return model.Appointment{}, false, fmt.Errorf("%w: overlaps appointment %s", booking.ErrConflict, clash)
	case !IsNotFound(err):
		return model.Appointment{}, false, err
	}

	stored, err := scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, unit_id, professional_id, service_id, work_date, start_minute, end_minute, duration_minutes,
			 price, client_name, client_phone, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9::numeric, $10, $11, $12, $13, $14, $14)
		RETURNING `+appointmentColumns,
		appt.ID, appt.UnitID, appt.ProfessionalID, appt.ServiceID, appt.Date, appt.StartMinute, appt.EndMinute,
		appt.DurationMinutes, appt.Price.String(), appt.ClientName, appt.ClientPhone, appt.Notes, string(appt.Status),
		appt.CreatedAt,
	))
	if err != nil {
		if IsConflict(err) {
			return model.Appointment{}, false, fmt.Errorf("%w: %v", booking.ErrConflict, err)
		}
		return model.Appointment{}, false, err
	}

	if idempotencyKey != "" {
		if _, err := tx.Exec(ctx, `
			UPDATE booking_idempotency_keys
			SET appointment_id = $3, updated_at = now()
			WHERE unit_id = $1 AND idempotency_key = $2
		`, appt.UnitID, idempotencyKey, stored.ID); err != nil {
			return model.Appointment{}, false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if IsConflict(err) {
			return model.Appointment{}, false, fmt.Errorf("%w: %v", booking.ErrConflict, err)
		}
		return model.Appointment{}, false, err
	}
	return stored, false, nil
}

// lockIdempotencyKey claims (unit, key) and returns the appointment already recorded under it, if any.
// Concurrent callers with the same key queue on the row lock.
func lockIdempotencyKey(ctx context.Context, tx pgx.Tx, unitID, key string) (string, error) {
	if _, err := tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (unit_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (unit_id, idempotency_key) DO NOTHING
	`, unitID, key); err != nil {
		return "", err
	}
	var appointmentID string
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(appointment_id, '')
		FROM booking_idempotency_keys
		WHERE unit_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, unitID, key).Scan(&appointmentID)
	return appointmentID, err
}

// CompleteAppointment uses the conditional status update as the single serialisation point:
// of several concurrent closes exactly one sees a row come back.
func (r *BookingRepository) CompleteAppointment(ctx context.Context, id string, settle booking.SettleFunc) (model.Settlement, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Settlement{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'completed', completed_at = now(), updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'confirmed')
		RETURNING `+appointmentColumns, id))
	if IsNotFound(err) {
		return model.Settlement{}, explainRejected(ctx, tx, id)
	}
	if err != nil {
		return model.Settlement{}, err
	}

	settlement, err := settle(appt)
	if err != nil {
		return model.Settlement{}, err
	}
	for _, t := range []model.Transaction{settlement.Income, settlement.Commission} {
		if err := insertTransaction(ctx, tx, t); err != nil {
			if IsConflict(err) {
				return model.Settlement{}, fmt.Errorf("%w: %s", booking.ErrAlreadySettled, id)
			}
			return model.Settlement{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Settlement{}, err
	}
	return settlement, nil
}

func (r *BookingRepository) TransitionStatus(ctx context.Context, id string, from []model.AppointmentStatus, to model.AppointmentStatus) (model.Appointment, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
		RETURNING `+appointmentColumns, id, string(to), allowed))
	if IsNotFound(err) {
		return model.Appointment{}, explainRejected(ctx, tx, id)
	}
	if err != nil {
		return model.Appointment{}, err
	}
	return appt, tx.Commit(ctx)
}

// explainRejected maps a conditional update that matched nothing to the reason.
func explainRejected(ctx context.Context, tx pgx.Tx, id string) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&status)
	switch {
	case IsNotFound(err):
		return fmt.Errorf("%w: appointment %s", booking.ErrNotFound, id)
	case err != nil:
		return err
	case model.AppointmentStatus(status) == model.StatusCompleted:
		return fmt.Errorf("%w: %s", booking.ErrAlreadySettled, id)
	default:
		return fmt.Errorf("%w: appointment %s is %s", booking.ErrInvalidInput, id, status)
	}
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t model.Transaction) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions
			(id, unit_id, appointment_id, professional_id, type, amount, description, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)
	`, t.ID, t.UnitID, t.AppointmentID, t.ProfessionalID, string(t.Type), t.Amount.String(), t.Description, t.PaymentMethod, t.CreatedAt)
	return err
}

func (r *BookingRepository) ListTransactions(ctx context.Context, appointmentID string) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, unit_id, appointment_id, professional_id, type, amount::text, description, payment_method, created_at
		FROM transactions
		WHERE appointment_id = $1
		ORDER BY created_at ASC, type DESC
	`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []model.Transaction
	for rows.Next() {
		var (
			t      model.Transaction
			kind   string
			amount string
		)
		if err := rows.Scan(&t.ID, &t.UnitID, &t.AppointmentID, &t.ProfessionalID, &kind, &amount, &t.Description, &t.PaymentMethod, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Type = model.TransactionType(kind)
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s amount: %w", t.ID, err)
		}
		txs = append(txs, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return txs, nil
}

// LedgerAnomalies lists completed appointments without exactly one income and one commission row,
// and non-completed appointments that have settlement rows.
func (r *BookingRepository) LedgerAnomalies(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id
		FROM appointments a
		LEFT JOIN (
			SELECT appointment_id,
				count(*) FILTER (WHERE type = 'income') AS income,
				count(*) FILTER (WHERE type = 'commission') AS commission
			FROM transactions
			WHERE appointment_id IS NOT NULL
			GROUP BY appointment_id
		) t ON t.appointment_id = a.id
		WHERE (a.status = 'completed' AND (COALESCE(t.income, 0) <> 1 OR COALESCE(t.commission, 0) <> 1))
			OR (a.status <> 'completed' AND t.appointment_id IS NOT NULL)
		ORDER BY a.id
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

var _ booking.Store = (*BookingRepository)(nil)
