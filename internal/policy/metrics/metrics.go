package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	created        prometheus.Counter
	compileFailed  prometheus.Counter
	createDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_policies_created_total",
			Help: "Number of policies successfully created.",
		}),
		compileFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_policy_compile_failures_total",
			Help: "Number of policy compilation attempts rejected by the compiler.",
		}),
		createDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "aegis_policy_create_duration_seconds",
			Help:    "End-to-end policy creation latency including compilation.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.created.Inc()
}

func (m *Metrics) IncrementCompileFailed() {
	if m == nil {
		return
	}
	m.compileFailed.Inc()
}

func (m *Metrics) ObserveCreate(start time.Time) {
	if m == nil {
		return
	}
	m.createDuration.Observe(time.Since(start).Seconds())
}
