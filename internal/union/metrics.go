package union

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics groups the ambient operation counters for one process. Mirrors
// claircore's datastore/postgres/store_metrics.go shape: a
// Namespace/Subsystem pair, a counter per notable operation and a
// duration histogram for copy-up.
type metrics struct {
	copyUps       prometheus.Counter
	copyUpSeconds prometheus.Histogram
	whiteouts     prometheus.Counter
	meWrites      prometheus.Counter
	meReads       prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		copyUps: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "hepfs",
			Subsystem: "union",
			Name:      "copyups_total",
			Help:      "Number of objects materialized from the read-only branch onto the read-write branch.",
		}),
		copyUpSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hepfs",
			Subsystem: "union",
			Name:      "copyup_duration_seconds",
			Help:      "Duration of create_copyup calls, including recursive directory copy-up.",
		}),
		whiteouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "hepfs",
			Subsystem: "union",
			Name:      "whiteouts_total",
			Help:      "Number of whiteout markers created.",
		}),
		meWrites: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "hepfs",
			Subsystem: "union",
			Name:      "me_writes_total",
			Help:      "Number of ME sidecar create/update operations.",
		}),
		meReads: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "hepfs",
			Subsystem: "union",
			Name:      "me_reads_total",
			Help:      "Number of ME sidecar lookups performed while merging attributes.",
		}),
	}
}

// defaultMetrics is process-wide so repeated mounts in the same process
// (as in tests) don't re-register Prometheus collectors under the same
// name, which would panic.
var defaultMetrics = newMetrics()
