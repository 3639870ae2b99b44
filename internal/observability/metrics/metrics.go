package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ingested          prometheus.Counter
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	summarizeDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		ingested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_observability_entries_ingested_total",
			Help: "Number of log entries accepted by the ingest path.",
		}),
		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_observability_summary_cache_hits_total",
			Help: "Summary reads served from the cache.",
		}),
		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_observability_summary_cache_misses_total",
			Help: "Summary reads that recomputed from the store.",
		}),
		summarizeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "aegis_observability_summarize_duration_seconds",
			Help:    "Store-side summary computation latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementIngested() {
	if m == nil {
		return
	}
	m.ingested.Inc()
}

func (m *Metrics) IncrementCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) IncrementCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

func (m *Metrics) ObserveSummarize(start time.Time) {
	if m == nil {
		return
	}
	m.summarizeDuration.Observe(time.Since(start).Seconds())
}
