package notifier

import (
	"context"
	"time"

	"market-watch/internal/domain/entity"
)

// NoOpNotifier is a Notifier that does nothing. It stands in for
// disabled transports so callers never need nil checks.
type NoOpNotifier struct{}

// NewNoOpNotifier creates a new NoOpNotifier.
func NewNoOpNotifier() *NoOpNotifier {
	return &NoOpNotifier{}
}

// NotifyNewListings returns nil immediately.
func (n *NoOpNotifier) NotifyNewListings(_ context.Context, _ *entity.SavedSearch, _ []entity.Listing, _ time.Time) error {
	return nil
}
