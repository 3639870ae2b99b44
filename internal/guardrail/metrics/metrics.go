package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the guardrail catalog.
type Metrics struct {
	GuardrailCreated prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		GuardrailCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_guardrails_created_total",
			Help: "Total number of guardrail definitions created",
		}),
	}
}

func (m *Metrics) IncrementCreated() { m.GuardrailCreated.Inc() }
