package metrics

import (
	"fmt"
	"time"
)

// RecordCycleRun records the final status of a scrape cycle.
// Status should be one of "success", "failure" or "cancelled".
func RecordCycleRun(status string, duration time.Duration) {
	CycleRunsTotal.WithLabelValues(status).Inc()
	CycleDuration.Observe(duration.Seconds())
}

// RecordCycleSkipped records a cycle trigger dropped because the previous
// cycle was still running.
func RecordCycleSkipped() {
	CyclesSkippedTotal.Inc()
}

// RecordAdapterFetch records a completed adapter fetch for one marketplace.
func RecordAdapterFetch(site string, duration time.Duration, listings int) {
	AdapterFetchDuration.WithLabelValues(site).Observe(duration.Seconds())
	if listings > 0 {
		ListingsFetchedTotal.WithLabelValues(site).Add(float64(listings))
	}
}

// RecordAdapterError records an adapter failure by error kind.
func RecordAdapterError(site, kind string) {
	AdapterErrorsTotal.WithLabelValues(site, kind).Inc()
}

// SetCircuitBreakerState exposes the current breaker state for a marketplace.
func SetCircuitBreakerState(site string, state int) {
	CircuitBreakerState.WithLabelValues(site).Set(float64(state))
}

// RecordNewListings records listings classified as new for a marketplace.
func RecordNewListings(site string, count int) {
	if count > 0 {
		NewListingsTotal.WithLabelValues(site).Add(float64(count))
	}
}

// UpdateSnapshotSize updates the known-listing snapshot gauge for one search.
func UpdateSnapshotSize(savedSearchID int64, size int) {
	SnapshotSize.WithLabelValues(fmt.Sprintf("%d", savedSearchID)).Set(float64(size))
}

// RecordSearchProcessed counts one saved search handled during a cycle.
func RecordSearchProcessed() {
	SavedSearchesProcessedTotal.Inc()
}
