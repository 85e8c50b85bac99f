package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the booking service's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	operations      *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	notifyFailures  *prometheus.CounterVec
	ledgerAnomalies prometheus.Gauge
	outboxRelayed   prometheus.Counter
	outboxFailures  prometheus.Counter
	inboxEvents     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "operations_total",
			Help:      "Booking operations by outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "booking",
			Name:      "operation_duration_seconds",
			Help:      "Booking operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "notification_failures_total",
			Help:      "Best-effort notifications that could not be queued.",
		}, []string{"event"}),
		ledgerAnomalies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "booking",
			Name:      "ledger_anomalies",
			Help:      "Completed appointments whose ledger is not exactly one income and one commission row.",
		}),
		outboxRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "outbox_relayed_total",
			Help:      "Outbox events delivered to the sink.",
		}),
		outboxFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "outbox_relay_failures_total",
			Help:      "Outbox relay batches that failed.",
		}),
		inboxEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "inbox_events_total",
			Help:      "Consumed catalog events by outcome.",
		}, []string{"topic", "outcome"}),
	}
	reg.MustRegister(m.operations, m.latency, m.notifyFailures, m.ledgerAnomalies,
		m.outboxRelayed, m.outboxFailures, m.inboxEvents)
	return m
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveOperation(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) NotificationFailed(event string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(event).Inc()
}

func (m *Metrics) SetLedgerAnomalies(n int) {
	if m == nil {
		return
	}
	m.ledgerAnomalies.Set(float64(n))
}

func (m *Metrics) OutboxRelayed(n int) {
	if m == nil {
		return
	}
	m.outboxRelayed.Add(float64(n))
}

func (m *Metrics) OutboxFailed() {
	if m == nil {
		return
	}
	m.outboxFailures.Inc()
}

func (m *Metrics) InboxEvent(topic, outcome string) {
	if m == nil {
		return
	}
	m.inboxEvents.WithLabelValues(topic, outcome).Inc()
}
