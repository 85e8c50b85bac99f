package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/audit"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage/memory"
)

// catalogStore is what both store drivers offer for catalog reads and event writes.
type catalogStore interface {
	booking.Catalog
	booking.BlockedTimes
	catalog.Writer
}

type backend struct {
	catalog   catalogStore
	store     booking.Store
	outbox    outbox.Store
	inbox     consumer.Inbox
	anomalies audit.Source
	checks    []runtime.ReadyCheck
	close     func()
}

func openBackend(ctx context.Context, cfg Config, logger *slog.Logger) (*backend, error) {
	if cfg.StoreDriver == storeMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		m := memory.New()
		return &backend{catalog: m, store: m, outbox: m, inbox: m, anomalies: m, close: func() {}}, nil
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DBMaxConns})
	if err != nil {
		return nil, fmt.Errorf("db connection failed: %w", err)
	}
	if cfg.ApplySchema {
		if err := storage.ApplySchema(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	bookings := storage.NewBookingRepository(pool)
	return &backend{
		catalog:   storage.NewCatalogRepository(pool),
		store:     bookings,
		outbox:    outbox.NewRepository(pool),
		inbox:     inbox.NewRepository(pool),
		anomalies: bookings,
		checks:    []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}},
		close:     pool.Close,
	}, nil
}

// newSink returns nil when events should stay in the outbox.
func newSink(cfg Config, logger *slog.Logger) outbox.Sink {
	switch cfg.OutboxSink {
	case sinkAMQP:
		return outbox.NewAMQPSink(cfg.AMQPURL, cfg.AMQPExchange)
	case sinkKafka:
		brokers := cfg.brokers()
		if len(brokers) == 0 {
			logger.Warn("KAFKA_BROKERS not set; outbox events are not relayed")
			return nil
		}
		return outbox.NewKafkaSink(brokers)
	default:
		return nil
	}
}
