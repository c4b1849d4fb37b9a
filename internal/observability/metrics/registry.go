// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle metrics track the periodic scrape cycle as a whole
var (
	// CycleRunsTotal counts scrape cycles by final status
	CycleRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_cycle_runs_total",
			Help: "Total number of scrape cycles by status (success/failure/cancelled)",
		},
		[]string{"status"},
	)

	// CycleDuration measures how long a full scrape cycle takes
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scrape_cycle_duration_seconds",
			Help:    "Duration of a full scrape cycle in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// CyclesSkippedTotal counts triggers dropped because a cycle was running
	CyclesSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrape_cycles_skipped_total",
			Help: "Total number of cycle triggers dropped due to an in-flight cycle",
		},
	)

	// SavedSearchesProcessedTotal counts saved searches processed per cycle
	SavedSearchesProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "saved_searches_processed_total",
			Help: "Total number of saved searches processed across all cycles",
		},
	)
)

// Adapter metrics track per-marketplace fetch behavior
var (
	// ListingsFetchedTotal counts listings returned by each marketplace adapter
	ListingsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_fetched_total",
			Help: "Total number of listings fetched per marketplace",
		},
		[]string{"site"},
	)

	// AdapterFetchDuration measures per-adapter fetch duration
	AdapterFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adapter_fetch_duration_seconds",
			Help:    "Duration of a single adapter fetch in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"site"},
	)

	// AdapterErrorsTotal counts adapter failures by site and error kind
	AdapterErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_errors_total",
			Help: "Total number of adapter failures by site and error kind",
		},
		[]string{"site", "kind"},
	)

	// CircuitBreakerState exposes the breaker state per site (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adapter_circuit_breaker_state",
			Help: "Circuit breaker state per marketplace (0=closed, 1=half-open, 2=open)",
		},
		[]string{"site"},
	)
)

// Dedup metrics track novelty detection results
var (
	// NewListingsTotal counts listings classified as new per marketplace
	NewListingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "new_listings_total",
			Help: "Total number of listings classified as new per marketplace",
		},
		[]string{"site"},
	)

	// SnapshotSize tracks the known-listing snapshot size per saved search
	SnapshotSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dedup_snapshot_size",
			Help: "Number of known listing identities per saved search",
		},
		[]string{"saved_search_id"},
	)
)
