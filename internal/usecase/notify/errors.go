package notify

import "errors"

// Sentinel errors for notification dispatch.
var (
	// ErrChannelDisabled indicates Send was called on a disabled channel.
	ErrChannelDisabled = errors.New("channel is disabled")

	// ErrInvalidEvent indicates the event is nil or carries no listings.
	ErrInvalidEvent = errors.New("invalid notification event")

	// ErrNotificationDropped indicates the event was dropped because no
	// worker slot became available in time.
	ErrNotificationDropped = errors.New("notification dropped due to pool saturation")

	// ErrCircuitBreakerOpen indicates the channel's circuit breaker is
	// open and deliveries are being rejected until it times out.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open for this channel")
)
