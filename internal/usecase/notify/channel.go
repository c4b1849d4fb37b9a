// Package notify dispatches new-listing notifications to delivery
// channels (webhook, desktop) without blocking the scrape cycle.
// Each dispatch is fire-and-forget: failures are logged and counted
// but never retried within the same cycle, and a per-channel circuit
// breaker stops hammering a channel that fails repeatedly.
package notify

import "context"

// Channel is a notification delivery target. Implementations handle
// their own rate limiting and transport-level retries.
//
// All methods must be safe for concurrent use. Send must respect
// context cancellation and must never mutate the event.
type Channel interface {
	// Name returns the channel identifier used for logging and metrics
	// labels (lowercase, e.g. "webhook", "desktop").
	Name() string

	// IsEnabled reports whether the channel is enabled via configuration.
	// Disabled channels are skipped during dispatch.
	IsEnabled() bool

	// Send delivers one new-listings event. A non-nil error means the
	// delivery failed after the channel's own transport retries; the
	// service counts it toward the channel's circuit breaker but does
	// not retry the event.
	Send(ctx context.Context, event *NotificationEvent) error
}
