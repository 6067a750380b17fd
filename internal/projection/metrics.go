package projection

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the watcher's Prometheus instrumentation (SPEC_FULL.md
// §4.3-§4.5). It owns a private registry rather than using the global
// DefaultRegisterer, so a process embedding more than one Watcher (tests,
// mainly) doesn't collide on metric registration.
type Metrics struct {
	registry *prometheus.Registry

	EventsApplied     prometheus.Counter
	CatchupLag        prometheus.Gauge
	ReconcileRollback prometheus.Counter
	MempoolRebuild    prometheus.Histogram
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		EventsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watcher_events_applied_total",
			Help: "Events applied to the projection store.",
		}),
		CatchupLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watcher_catchup_lag",
			Help: "Messages the projection store is behind the primary ledger store's head.",
		}),
		ReconcileRollback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watcher_reconcile_rollbacks_total",
			Help: "Events rolled back by reorg reconciliation.",
		}),
		MempoolRebuild: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "watcher_mempool_rebuild_seconds",
			Help:    "Wall-clock time to rebuild the mempool projection.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.EventsApplied, m.CatchupLag, m.ReconcileRollback, m.MempoolRebuild)
	return m
}

// Handler serves the watcher's metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
