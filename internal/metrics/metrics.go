// Package metrics provides Prometheus instrumentation for the market agent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MarketsCreated counts markets created through the lifecycle coordinator.
	MarketsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketd_markets_created_total",
		Help: "Markets created through the agent",
	})

	// MarketsSettled counts markets settled, partitioned by winning outcome.
	MarketsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketd_markets_settled_total",
		Help: "Markets settled through the agent",
	}, []string{"winner"})

	// ScanRuns counts settlement scan passes by result.
	ScanRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketd_scan_runs_total",
		Help: "Settlement scan passes",
	}, []string{"result"})

	// ScanDuration tracks how long a full scan pass takes.
	ScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketd_scan_duration_seconds",
		Help:    "Settlement scan duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// DueMarkets is the number of due, unsettled markets seen by the last scan.
	DueMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketd_due_markets",
		Help: "Due unsettled markets at the last scan",
	})

	// RegisteredMarkets is the total number of markets in the index.
	RegisteredMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketd_registered_markets",
		Help: "Markets tracked in the registry index",
	})

	// IndexRepairs counts registry repairs, partitioned by kind
	// ("reappend" for records missing from the index, "resettle" for index
	// rows lagging a settled record).
	IndexRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketd_index_repairs_total",
		Help: "Registry index repairs performed by the scanner",
	}, []string{"kind"})

	// GatewayCalls counts chain gateway calls by operation and result.
	GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketd_gateway_calls_total",
		Help: "Chain gateway calls",
	}, []string{"op", "result"})

	// SnapshotBackups counts registry snapshot uploads by result.
	SnapshotBackups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketd_snapshot_backups_total",
		Help: "Registry snapshot backup uploads",
	}, []string{"result"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
