package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks audit pipeline health. Dropped events are the signal an
// operator watches: the recorder never surfaces failures to callers.
type Metrics struct {
	Recorded  prometheus.Counter
	Dropped   prometheus.Counter
	Published prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Recorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_audit_events_recorded_total",
			Help: "Total number of audit events appended to the store",
		}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_audit_events_dropped_total",
			Help: "Total number of audit events dropped due to write failures",
		}),
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_audit_events_published_total",
			Help: "Total number of audit events published to Kafka by the outbox worker",
		}),
	}
}

func (m *Metrics) IncrementRecorded()  { m.Recorded.Inc() }
func (m *Metrics) IncrementDropped()   { m.Dropped.Inc() }
func (m *Metrics) IncrementPublished() { m.Published.Inc() }
