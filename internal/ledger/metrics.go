package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/chitchat/internal/ir"
	"github.com/roach88/chitchat/internal/notify"
)

const metricsNamespace = "chitchat"

// Mutation outcomes reported in the outcome label.
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

// Metrics holds the ledger's Prometheus collectors.
// Each Ledger owns its own registry so several can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	mutations  *prometheus.CounterVec
	rejections *prometheus.CounterVec
	events     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newMetrics(n *notify.Notifier) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "ledger",
				Name:      "mutations_total",
				Help:      "Number of mutation requests by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "ledger",
				Name:      "rejections_total",
				Help:      "Number of rejected mutations by error code",
			},
			[]string{"code"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "notifier",
				Name:      "events_published_total",
				Help:      "Number of change events published by kind",
			},
			[]string{"kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "ledger",
				Name:      "mutation_duration_seconds",
				Help:      "Time spent applying a mutation, including the store commit",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}

	subscribers := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "notifier",
			Name:      "subscribers",
			Help:      "Number of open change-event subscriptions",
		},
		func() float64 { return float64(n.Subscribers()) },
	)

	m.registry.MustRegister(m.mutations, m.rejections, m.events, m.duration, subscribers)
	return m
}

// Registry returns the registry to expose on a /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		m.mutations.WithLabelValues(op, outcomeOK).Inc()
	case ir.IsRejection(err):
		m.mutations.WithLabelValues(op, outcomeRejected).Inc()
		if e, ok := ir.AsError(err); ok {
			m.rejections.WithLabelValues(string(e.Code)).Inc()
		}
	default:
		m.mutations.WithLabelValues(op, outcomeError).Inc()
	}
}

func (m *Metrics) published(events []ir.ChangeEvent) {
	for _, e := range events {
		m.events.WithLabelValues(string(e.Kind)).Inc()
	}
}
