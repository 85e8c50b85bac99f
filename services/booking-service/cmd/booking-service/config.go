package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
)

const (
	storeMemory   = "memory"
	storePostgres = "postgres"

	sinkKafka = "kafka"
	sinkAMQP  = "amqp"
	sinkNone  = "none"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"booking-service"`
	Port        string `env:"PORT" envDefault:"8083"`
	GRPCPort    string `env:"GRPC_PORT" envDefault:"9093"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	ApplySchema bool   `env:"DB_APPLY_SCHEMA" envDefault:"true"`

	UnitTimezone       string `env:"UNIT_TIMEZONE" envDefault:"UTC"`
	CalendarPolicyFile string `env:"CALENDAR_POLICY_FILE"`

	KafkaBrokers  string `env:"KAFKA_BROKERS"`
	KafkaGroupID  string `env:"KAFKA_GROUP_ID" envDefault:"booking-service"`
	ConsumeEvents bool   `env:"KAFKA_CONSUME_CATALOG" envDefault:"true"`

	OutboxSink      string        `env:"OUTBOX_SINK" envDefault:"kafka"`
	OutboxPollEvery time.Duration `env:"OUTBOX_POLL_EVERY" envDefault:"2s"`
	OutboxBatchSize int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`
	AMQPURL         string        `env:"AMQP_URL"`
	AMQPExchange    string        `env:"AMQP_EXCHANGE" envDefault:"salon.events"`

	RedisAddr          string `env:"REDIS_ADDR"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	RateLimitFailOpen  bool   `env:"RATE_LIMIT_FAIL_OPEN" envDefault:"true"`

	JWTSecret       string `env:"AUTH_JWT_SECRET"`
	StripeSecretKey string `env:"STRIPE_SECRET_KEY"`
	PaymentCurrency string `env:"PAYMENT_CURRENCY" envDefault:"usd"`

	CatalogCacheSize    int           `env:"CATALOG_CACHE_SIZE" envDefault:"1024"`
	CatalogCacheTTL     time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"30s"`
	LedgerAuditSchedule string        `env:"LEDGER_AUDIT_SCHEDULE" envDefault:"@every 10m"`

	CORSOrigins    string        `env:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"10s"`
	MaxBodyBytes   int64         `env:"HTTP_MAX_BODY_BYTES" envDefault:"1048576"`

	Otel otelx.Config
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	if err := config.CheckPort("PORT", c.Port); err != nil {
		errs = append(errs, err)
	}
	if err := config.CheckPort("GRPC_PORT", c.GRPCPort); err != nil {
		errs = append(errs, err)
	}
	switch c.StoreDriver {
	case storeMemory:
	case storePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q (got %q)", storeMemory, storePostgres, c.StoreDriver))
	}
	switch c.OutboxSink {
	case sinkKafka, sinkNone:
	case sinkAMQP:
		if strings.TrimSpace(c.AMQPURL) == "" {
			errs = append(errs, errors.New("AMQP_URL is required when OUTBOX_SINK=amqp"))
		}
	default:
		errs = append(errs, fmt.Errorf("OUTBOX_SINK must be kafka, amqp or none (got %q)", c.OutboxSink))
	}
	if _, err := time.LoadLocation(c.UnitTimezone); err != nil {
		errs = append(errs, fmt.Errorf("UNIT_TIMEZONE: %w", err))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must not be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) brokers() []string {
	return config.List(c.KafkaBrokers)
}

func (c Config) corsOrigins() []string {
	return config.List(c.CORSOrigins)
}
