package notify

import (
	"context"

	"market-watch/internal/domain/entity"
	"market-watch/internal/infra/notifier"
)

// WebhookChannel adapts the webhook notifier to the Channel interface.
// When the webhook is disabled a NoOpNotifier is substituted so the
// Channel contract holds without nil checks.
type WebhookChannel struct {
	notifier notifier.Notifier
	enabled  bool
}

// NewWebhookChannel creates a webhook channel from the given config.
func NewWebhookChannel(config notifier.WebhookConfig) *WebhookChannel {
	var n notifier.Notifier
	if config.Enabled {
		n = notifier.NewWebhookNotifier(config)
	} else {
		n = notifier.NewNoOpNotifier()
	}

	return &WebhookChannel{
		notifier: n,
		enabled:  config.Enabled,
	}
}

// Name returns "webhook".
func (c *WebhookChannel) Name() string {
	return "webhook"
}

// IsEnabled reports whether the webhook is enabled via configuration.
func (c *WebhookChannel) IsEnabled() bool {
	return c.enabled
}

// Send delivers the event through the webhook notifier. The notifier
// applies rate limiting (0.5 req/s, burst 3) and retries transient
// failures before reporting an error.
func (c *WebhookChannel) Send(ctx context.Context, event *NotificationEvent) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	if !event.Valid() {
		return ErrInvalidEvent
	}

	search := &entity.SavedSearch{ID: event.SavedSearchID, Name: event.SearchName}
	return c.notifier.NotifyNewListings(ctx, search, event.NewListings, event.CycleAt)
}
