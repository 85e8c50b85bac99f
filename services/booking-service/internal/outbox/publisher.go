package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
)

// Sink delivers a batch of outbox records to a broker.
type Sink interface {
	Publish(ctx context.Context, records []Record) error
	Close() error
}

type Publisher struct {
	store     Store
	sink      Sink
	logger    *slog.Logger
	metrics   *metrics.Metrics
	pollEvery time.Duration
	batchSize int
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
}

func NewPublisher(store Store, sink Sink, logger *slog.Logger, m *metrics.Metrics, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{
		store:     store,
		sink:      sink,
		logger:    logger,
		metrics:   m,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

// Run relays until ctx is cancelled. Failed batches stay unpublished and are retried on the next tick.
func (p *Publisher) Run(ctx context.Context) {
	defer func() {
		if err := p.sink.Close(); err != nil {
			p.logger.Warn("outbox sink close failed", "err", err)
		}
	}()

	ticker := time.NewTicker(p.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.RelayOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("outbox publish failed", "err", err)
			}
		}
	}
}

// RelayOnce drains one batch.
func (p *Publisher) RelayOnce(ctx context.Context) (int, error) {
	n, err := p.store.Relay(ctx, p.batchSize, p.sink.Publish)
	if err != nil {
		p.metrics.OutboxFailed()
		return 0, err
	}
	p.metrics.OutboxRelayed(n)
	return n, nil
}
