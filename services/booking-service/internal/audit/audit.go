// Package audit periodically checks that every completed appointment carries exactly one income
// and one commission posting.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
)

const DefaultSchedule = "@every 10m"

// Source lists appointment ids whose ledger is inconsistent.
type Source interface {
	LedgerAnomalies(ctx context.Context) ([]string, error)
}

type LedgerAudit struct {
	source  Source
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewLedgerAudit(source Source, logger *slog.Logger, m *metrics.Metrics) *LedgerAudit {
	return &LedgerAudit{source: source, logger: logger, metrics: m, timeout: 30 * time.Second}
}

// RunOnce returns the number of anomalies found.
func (a *LedgerAudit) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	ids, err := a.source.LedgerAnomalies(ctx)
	if err != nil {
		a.logger.Error("ledger audit failed", "err", err)
		return 0, err
	}
	a.metrics.SetLedgerAnomalies(len(ids))
	if len(ids) > 0 {
		a.logger.Warn("ledger anomalies found", "count", len(ids), "appointment_ids", ids)
	} else {
		a.logger.Debug("ledger audit clean")
	}
	return len(ids), nil
}

// Start schedules RunOnce on spec and stops the scheduler when ctx is done.
func (a *LedgerAudit) Start(ctx context.Context, spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { _, _ = a.RunOnce(ctx) }); err != nil {
		return err
	}
	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	a.logger.Info("ledger audit scheduled", "schedule", spec)
	return nil
}
