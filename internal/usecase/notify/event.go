package notify

import (
	"time"

	"market-watch/internal/domain/entity"
)

// NotificationEvent carries everything a channel needs to render a
// "new listings found" message for one saved search. Listings are
// already deduplicated and sorted by ascending price.
type NotificationEvent struct {
	SavedSearchID int64
	SearchName    string
	NewListings   []entity.Listing
	CycleAt       time.Time
}

// Valid reports whether the event has enough data to dispatch.
// Events with no new listings are valid but channels may choose to
// skip them.
func (e *NotificationEvent) Valid() bool {
	return e != nil && e.SavedSearchID > 0 && len(e.NewListings) > 0
}

// Cheapest returns the lowest-priced new listing, which channels use
// as the headline item. Listings arrive price-ascending so this is the
// first element.
func (e *NotificationEvent) Cheapest() *entity.Listing {
	if len(e.NewListings) == 0 {
		return nil
	}
	return &e.NewListings[0]
}
