// Package notifier implements notification transports for new-listing
// alerts. The Notifier interface lets webhook, desktop, and no-op
// implementations be swapped through dependency injection; each
// implementation handles its own rate limiting and retries.
package notifier

import (
	"context"
	"time"

	"market-watch/internal/domain/entity"
)

// Notifier delivers one batch of new listings found for a saved search.
// Implementations must respect context cancellation, apply their own
// rate limiting, and log attempts with a request ID for tracing.
type Notifier interface {
	// NotifyNewListings sends a notification covering the given listings.
	// Listings arrive deduplicated and sorted by ascending price.
	// A non-nil error means delivery failed after the transport's own
	// retry attempts.
	NotifyNewListings(ctx context.Context, search *entity.SavedSearch, listings []entity.Listing, cycleAt time.Time) error
}
