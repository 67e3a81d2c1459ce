// Package metrics provides Prometheus metrics for modelbay.
// Counters, gauges and histograms covering catalog refreshes, adapter
// traffic, transfers and health, exported at /metrics when enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Catalog ────────────────────────────────────────────────────────────────

// CatalogRefreshes counts refresh outcomes.
var CatalogRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "modelbay",
	Name:      "catalog_refresh_total",
	Help:      "Total catalog refreshes by outcome.",
}, []string{"outcome"})

// CatalogRefreshDuration tracks how long a successful refresh takes.
var CatalogRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "modelbay",
	Name:      "catalog_refresh_duration_seconds",
	Help:      "Catalog refresh duration in seconds.",
	Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
})

// CatalogModels tracks the size of the current snapshot.
var CatalogModels = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "modelbay",
	Name:      "catalog_models",
	Help:      "Number of descriptors in the current catalog snapshot.",
})

// AdapterRequests counts listing requests per source and outcome.
var AdapterRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "modelbay",
	Name:      "adapter_requests_total",
	Help:      "Total adapter listing requests by source and outcome.",
}, []string{"source", "outcome"})

// ─── Transfers ──────────────────────────────────────────────────────────────

// TransferBytes counts bytes written to disk across all transfers.
var TransferBytes = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "modelbay",
	Name:      "transfer_bytes_total",
	Help:      "Total bytes downloaded.",
})

// TransfersActive tracks transfers currently holding a scheduler slot.
var TransfersActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "modelbay",
	Name:      "transfers_active",
	Help:      "Transfers currently connecting, downloading or verifying.",
})

// TransfersCompleted counts terminal transfer outcomes.
var TransfersCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "modelbay",
	Name:      "transfers_completed_total",
	Help:      "Total transfers reaching a terminal outcome.",
}, []string{"outcome"})

// VerifyFailures counts digest mismatches on completed downloads.
var VerifyFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "modelbay",
	Name:      "verify_failures_total",
	Help:      "Total integrity verification failures.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "modelbay",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "modelbay",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
