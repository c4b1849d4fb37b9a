// Package repository defines the narrow persistence contracts consumed by the
// monitoring core. Implementations live under internal/infra/adapter/persistence.
package repository

import (
	"context"
	"time"

	"market-watch/internal/domain/entity"
)

// SavedSearchRepository is the durable store for saved searches. The monitoring
// core only ever reads searches and advances their dedup snapshot; creation and
// deletion belong to the (out of scope) user-facing surface.
type SavedSearchRepository interface {
	Get(ctx context.Context, id int64) (*entity.SavedSearch, error)
	List(ctx context.Context) ([]*entity.SavedSearch, error)
	// ListMonitored returns the searches eligible for a scrape cycle. Every
	// saved search is monitored; disabled notifications only suppress
	// dispatch, so re-enabling them never replays a backlog of listings
	// whose snapshot kept advancing.
	ListMonitored(ctx context.Context) ([]*entity.SavedSearch, error)
	Create(ctx context.Context, search *entity.SavedSearch) error
	Delete(ctx context.Context, id int64) error
	// UpdateSnapshot atomically replaces the known-listing snapshot and the
	// last-cycle timestamp for one saved search. Returns entity.ErrNotFound if
	// the search was deleted mid-cycle; callers abandon the update silently.
	UpdateSnapshot(ctx context.Context, id int64, knownIDs map[entity.ListingKey]struct{}, lastCycleAt time.Time) error
}
