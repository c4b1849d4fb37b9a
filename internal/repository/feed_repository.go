package repository

import (
	"context"
	"time"

	"market-watch/internal/domain/entity"
)

// FeedEntry is one row of the new-items feed: a listing that was new for a
// saved search at a given cycle.
type FeedEntry struct {
	ID            int64
	SavedSearchID int64
	Listing       entity.Listing
	CycleAt       time.Time
}

// FeedRepository is the durable store for the new-items feed consumed by the
// (out of scope) feed view.
type FeedRepository interface {
	// AppendEntries records the new listings found for a saved search in one
	// cycle. Appending an empty slice is a no-op.
	AppendEntries(ctx context.Context, savedSearchID int64, listings []entity.Listing, cycleAt time.Time) error
	// ListRecent returns the newest feed entries across all searches, newest
	// cycle first, capped at limit.
	ListRecent(ctx context.Context, limit int) ([]FeedEntry, error)
	// Prune deletes feed entries older than the cutoff and reports how many
	// rows were removed.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}
