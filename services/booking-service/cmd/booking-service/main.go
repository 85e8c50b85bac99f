package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/grpcx"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/audit"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/catalog"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/payments"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := runtime.NewLogger(cfg.ServiceName)
	if err := run(cfg, logger); err != nil {
		logger.Error("booking service stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, cfg.ServiceName, cfg.Otel)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	policies, err := policySource(cfg)
	if err != nil {
		return err
	}
	loc, _ := time.LoadLocation(cfg.UnitTimezone)

	cache := catalog.NewCache(be.catalog, cfg.CatalogCacheSize, cfg.CatalogCacheTTL)

	var verifier booking.PaymentVerifier = payments.NoopVerifier{}
	if cfg.StripeSecretKey != "" {
		verifier = payments.NewStripeVerifier(cfg.StripeSecretKey, cfg.PaymentCurrency)
	}

	svc, err := booking.NewService(booking.Deps{
		Catalog:  cache,
		Blocked:  be.catalog,
		Store:    be.store,
		Policies: policies,
		Notifier: outbox.NewNotifier(be.outbox),
		Payments: verifier,
		Location: loc,
		Logger:   logger,
		Metrics:  m,
	})
	if err != nil {
		return err
	}

	checks := be.checks
	brokers := cfg.brokers()
	if len(brokers) > 0 {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	if sink := newSink(cfg, logger); sink != nil {
		publisher := outbox.NewPublisher(be.outbox, sink, logger, m, outbox.PublisherConfig{
			PollEvery: cfg.OutboxPollEvery,
			BatchSize: cfg.OutboxBatchSize,
		})
		go publisher.Run(ctx)
	}

	if cfg.ConsumeEvents && len(brokers) > 0 {
		reader := consumer.NewReader(consumer.Config{
			Brokers: brokers,
			GroupID: cfg.KafkaGroupID,
			Topics:  catalog.Topics,
		})
		events := catalog.NewEventHandler(be.catalog, cache)
		go consumer.New(reader, logger, be.inbox, m, events.HandleMessage).Run(ctx)
	}

	if err := audit.NewLedgerAudit(be.anomalies, logger, m).Start(ctx, cfg.LedgerAuditSchedule); err != nil {
		return fmt.Errorf("ledger audit: %w", err)
	}

	var limiter httpx.Limiter
	if cfg.RateLimitPerMinute > 0 {
		if cfg.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
			defer rdb.Close()
			limiter = httpx.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "booking:ratelimit:")
			checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}})
		} else {
			limiter = httpx.NewMemoryLimiter(cfg.RateLimitPerMinute, time.Minute)
		}
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("GET /metrics", metrics.Handler(reg))
	handlers.NewBookingHandler(svc, logger).Register(mux,
		httpx.WithRateLimit(limiter, httpx.ClientIP, time.Minute, logger, cfg.RateLimitFailOpen))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(cfg.corsOrigins()),
		httpx.WithBodyLimit(cfg.MaxBodyBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
		auth.Authenticate(cfg.JWTSecret),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer(logger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	health.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcSrv.GracefulStop()
	logger.Info("servers stopped")
	return nil
}

func policySource(cfg Config) (calendar.Source, error) {
	if cfg.CalendarPolicyFile == "" {
		return calendar.NewStaticSource(calendar.Default)
	}
	src, err := calendar.LoadFile(cfg.CalendarPolicyFile)
	if err != nil {
		return nil, fmt.Errorf("calendar policy: %w", err)
	}
	return src, nil
}
