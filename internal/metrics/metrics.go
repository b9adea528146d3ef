// Package metrics exposes the Prometheus counters and gauges named across
// the archive's components (ingest throughput, query latency, bloom false
// positive rate, migration outcomes). Explicitly named as out-of-scope
// framing for the HTTP surface itself (spec.md section 1), but still
// carried as ambient observability the way the teacher's go.mod pulls in
// prometheus/client_golang even though no single retrieved file wires it;
// this package follows the library's own promauto/promhttp idiom.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IngestTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auctions",
		Subsystem: "ingest",
		Name:      "tasks_total",
		Help:      "Worker pool tasks completed, by outcome (ok, retry).",
	}, []string{"outcome"})

	IngestQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "auctions",
		Subsystem: "ingest",
		Name:      "queue_depth",
		Help:      "Current worker pool queue depth, by queue (auctions, bids).",
	}, []string{"queue"})

	ImportOffset = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "auctions",
		Subsystem: "ingest",
		Name:      "import_offset",
		Help:      "Last persisted historical-migrator checkpoint.",
	})

	QueryLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "auctions",
		Subsystem: "query",
		Name:      "latency_seconds",
		Help:      "QueryEngine operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	BloomObservedFPR = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "auctions",
		Subsystem: "coldstore",
		Name:      "bloom_observed_fpr",
		Help:      "Estimated false-positive rate of a bloom filter, by name (master, per-tag).",
	}, []string{"filter"})

	MigrationMonthsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auctions",
		Subsystem: "migrator",
		Name:      "months_total",
		Help:      "Archive-migrator month outcomes, by result (archived, verify_failed, skipped_empty, dry_run).",
	}, []string{"result"})
)

// Handler returns the /metrics HTTP handler for the process's default
// registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
