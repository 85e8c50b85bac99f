package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// CatalogRepository holds the local read model of services, professionals and blocked times,
// fed by catalog events.
type CatalogRepository struct {
	pool *db.Pool
}

func NewCatalogRepository(pool *db.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

func (r *CatalogRepository) ServiceByID(ctx context.Context, id string) (model.Service, error) {
	var (
		svc   model.Service
		price string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, duration_minutes, price::text, updated_at
		FROM services
		WHERE id = $1
	`, id).Scan(&svc.ID, &svc.Name, &svc.DurationMinutes, &price, &svc.UpdatedAt)
	if IsNotFound(err) {
		return model.Service{}, fmt.Errorf("%w: service %s", booking.ErrNotFound, id)
	}
	if err != nil {
		return model.Service{}, err
	}
	if svc.Price, err = decimal.NewFromString(price); err != nil {
		return model.Service{}, fmt.Errorf("service %s price: %w", id, err)
	}
	return svc, nil
}

func (r *CatalogRepository) ProfessionalByID(ctx context.Context, id string) (model.Professional, error) {
	var (
		p   model.Professional
		pct string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, commission_percentage::text, updated_at
		FROM professionals
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &pct, &p.UpdatedAt)
	if IsNotFound(err) {
		return model.Professional{}, fmt.Errorf("%w: professional %s", booking.ErrNotFound, id)
	}
	if err != nil {
		return model.Professional{}, err
	}
	if p.CommissionPercentage, err = decimal.NewFromString(pct); err != nil {
		return model.Professional{}, fmt.Errorf("professional %s commission: %w", id, err)
	}
	return p, nil
}

// UpsertService applies a catalog update unless a newer version is already stored.
// Appointments keep their own duration and price snapshot.
func (r *CatalogRepository) UpsertService(ctx context.Context, svc model.Service) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, name, duration_minutes, price, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name,
		              duration_minutes = EXCLUDED.duration_minutes,
		              price = EXCLUDED.price,
		              updated_at = EXCLUDED.updated_at
		WHERE services.updated_at <= EXCLUDED.updated_at
	`, svc.ID, svc.Name, svc.DurationMinutes, svc.Price.String(), orNow(svc.UpdatedAt))
	return err
}

func (r *CatalogRepository) UpsertProfessional(ctx context.Context, p model.Professional) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO professionals (id, name, commission_percentage, updated_at)
		VALUES ($1, $2, $3::numeric, $4)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name,
		              commission_percentage = EXCLUDED.commission_percentage,
		              updated_at = EXCLUDED.updated_at
		WHERE professionals.updated_at <= EXCLUDED.updated_at
	`, p.ID, p.Name, p.CommissionPercentage.String(), orNow(p.UpdatedAt))
	return err
}

func (r *CatalogRepository) AddBlockedTime(ctx context.Context, b model.BlockedTime) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO blocked_times (id, professional_id, starts_at, ends_at, reason)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET professional_id = EXCLUDED.professional_id,
		              starts_at = EXCLUDED.starts_at,
		              ends_at = EXCLUDED.ends_at,
		              reason = EXCLUDED.reason
	`, b.ID, b.ProfessionalID, b.Start, b.End, b.Reason)
	return err
}

func (r *CatalogRepository) DeleteBlockedTime(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM blocked_times WHERE id = $1`, id)
	return err
}

func (r *CatalogRepository) BlockedBetween(ctx context.Context, professionalID string, from, to time.Time) ([]model.BlockedTime, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, professional_id, starts_at, ends_at, reason
		FROM blocked_times
		WHERE professional_id = $1
			AND starts_at < $3
			AND ends_at > $2
		ORDER BY starts_at ASC
	`, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.BlockedTime, error) {
		var b model.BlockedTime
		err := row.Scan(&b.ID, &b.ProfessionalID, &b.Start, &b.End, &b.Reason)
		return b, err
	})
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

var (
	_ booking.Catalog      = (*CatalogRepository)(nil)
	_ booking.BlockedTimes = (*CatalogRepository)(nil)
)
