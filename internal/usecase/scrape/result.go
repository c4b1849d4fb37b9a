package scrape

import (
	"time"

	"market-watch/internal/domain/entity"
)

// AdapterOutcome records how one adapter fared during a cycle: either a success
// with the number of listings it returned, or a failure with its error kind.
type AdapterOutcome struct {
	Site      entity.Marketplace
	Listings  int
	Err       error
	ErrorKind ErrorKind
}

// Failed reports whether the adapter call failed.
func (o AdapterOutcome) Failed() bool { return o.Err != nil }

// CycleResult is the transient per-(saved search, cycle) value: the merged
// listing set from all adapters that succeeded plus the per-adapter outcomes.
// It is consumed immediately by the dedup engine and then discarded.
type CycleResult struct {
	SavedSearchID int64
	Listings      []entity.Listing
	Outcomes      []AdapterOutcome
	StartedAt     time.Time
}

// Succeeded returns the number of adapters that completed without error.
func (r *CycleResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Failed() {
			n++
		}
	}
	return n
}

// AllFailed reports whether every adapter for the search failed. An all-failed
// cycle carries no information: the dedup engine must leave the snapshot and
// lastCycleAt untouched rather than overwrite known-good state with emptiness.
func (r *CycleResult) AllFailed() bool {
	return len(r.Outcomes) > 0 && r.Succeeded() == 0
}
