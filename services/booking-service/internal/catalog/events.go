package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

const (
	TopicServiceUpserted      = "catalog.service.upserted.v1"
	TopicProfessionalUpserted = "catalog.professional.upserted.v1"
	TopicBlockedTimeCreated   = "scheduling.blocked_time.created.v1"
	TopicBlockedTimeDeleted   = "scheduling.blocked_time.deleted.v1"
)

// Decimal places the stores keep for prices and commission percentages.
const (
	priceScale   = 2
	percentScale = 3
)

// Topics lists everything the EventHandler understands.
var Topics = []string{
	TopicServiceUpserted,
	TopicProfessionalUpserted,
	TopicBlockedTimeCreated,
	TopicBlockedTimeDeleted,
}

// Writer persists catalog changes. Upserts ignore updates older than the stored row.
type Writer interface {
	UpsertService(ctx context.Context, svc model.Service) error
	UpsertProfessional(ctx context.Context, p model.Professional) error
	AddBlockedTime(ctx context.Context, b model.BlockedTime) error
	DeleteBlockedTime(ctx context.Context, id string) error
}

type ServiceUpserted struct {
	ServiceID       string    `json:"service_id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           string    `json:"price"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ProfessionalUpserted struct {
	ProfessionalID       string    `json:"professional_id"`
	Name                 string    `json:"name"`
	CommissionPercentage string    `json:"commission_percentage"`
	UpdatedAt            time.Time `json:"updated_at"`
}

type BlockedTimeCreated struct {
	BlockedTimeID  string    `json:"blocked_time_id"`
	ProfessionalID string    `json:"professional_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Reason         string    `json:"reason"`
}

type BlockedTimeDeleted struct {
	BlockedTimeID string `json:"blocked_time_id"`
}

// EventHandler applies catalog events to a Writer and drops stale cache entries.
type EventHandler struct {
	writer Writer
	cache  *Cache
}

// NewEventHandler accepts a nil cache.
func NewEventHandler(w Writer, cache *Cache) *EventHandler {
	return &EventHandler{writer: w, cache: cache}
}

// HandleMessage adapts Handle to the consumer's message handler.
func (h *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	return h.Handle(ctx, msg.Topic, msg.Value)
}

// Handle applies one event. Malformed payloads wrap booking.ErrInvalidInput; unknown topics are ignored.
func (h *EventHandler) Handle(ctx context.Context, topic string, payload []byte) error {
	switch topic {
	case TopicServiceUpserted:
		var evt ServiceUpserted
		if err := decode(payload, &evt); err != nil {
			return err
		}
		svc, err := evt.toModel()
		if err != nil {
			return err
		}
		if err := h.writer.UpsertService(ctx, svc); err != nil {
			return err
		}
		if h.cache != nil {
			h.cache.InvalidateService(svc.ID)
		}
	case TopicProfessionalUpserted:
		var evt ProfessionalUpserted
		if err := decode(payload, &evt); err != nil {
			return err
		}
		p, err := evt.toModel()
		if err != nil {
			return err
		}
		if err := h.writer.UpsertProfessional(ctx, p); err != nil {
			return err
		}
		if h.cache != nil {
			h.cache.InvalidateProfessional(p.ID)
		}
	case TopicBlockedTimeCreated:
		var evt BlockedTimeCreated
		if err := decode(payload, &evt); err != nil {
			return err
		}
		if evt.BlockedTimeID == "" || evt.ProfessionalID == "" || !evt.End.After(evt.Start) {
			return fmt.Errorf("%w: blocked time needs id, professional and start before end", booking.ErrInvalidInput)
		}
		return h.writer.AddBlockedTime(ctx, model.BlockedTime{
			ID:             evt.BlockedTimeID,
			ProfessionalID: evt.ProfessionalID,
			Start:          evt.Start,
			End:            evt.End,
			Reason:         evt.Reason,
		})
	case TopicBlockedTimeDeleted:
		var evt BlockedTimeDeleted
		if err := decode(payload, &evt); err != nil {
			return err
		}
		if evt.BlockedTimeID == "" {
			return fmt.Errorf("%w: blocked_time_id is required", booking.ErrInvalidInput)
		}
		return h.writer.DeleteBlockedTime(ctx, evt.BlockedTimeID)
	}
	return nil
}

func decode(payload []byte, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%w: decode event: %v", booking.ErrInvalidInput, err)
	}
	return nil
}

func (e ServiceUpserted) toModel() (model.Service, error) {
	if e.ServiceID == "" || e.DurationMinutes <= 0 {
		return model.Service{}, fmt.Errorf("%w: service needs id and positive duration", booking.ErrInvalidInput)
	}
	price, err := decimal.NewFromString(e.Price)
	if err != nil || price.IsNegative() || !price.Equal(price.Round(priceScale)) {
		return model.Service{}, fmt.Errorf("%w: invalid price %q", booking.ErrInvalidInput, e.Price)
	}
	return model.Service{
		ID:              e.ServiceID,
		Name:            e.Name,
		DurationMinutes: e.DurationMinutes,
		Price:           price,
		UpdatedAt:       e.UpdatedAt,
	}, nil
}

func (e ProfessionalUpserted) toModel() (model.Professional, error) {
	if e.ProfessionalID == "" {
		return model.Professional{}, fmt.Errorf("%w: professional_id is required", booking.ErrInvalidInput)
	}
	pct, err := decimal.NewFromString(e.CommissionPercentage)
	if err != nil || pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) || !pct.Equal(pct.Round(percentScale)) {
		return model.Professional{}, fmt.Errorf("%w: invalid commission percentage %q", booking.ErrInvalidInput, e.CommissionPercentage)
	}
	return model.Professional{
		ID:                   e.ProfessionalID,
		Name:                 e.Name,
		CommissionPercentage: pct,
		UpdatedAt:            e.UpdatedAt,
	}, nil
}
