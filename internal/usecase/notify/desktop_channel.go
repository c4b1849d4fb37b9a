package notify

import (
	"context"

	"market-watch/internal/domain/entity"
	"market-watch/internal/infra/notifier"
)

// DesktopChannel adapts the desktop popup notifier to the Channel
// interface.
type DesktopChannel struct {
	notifier notifier.Notifier
	enabled  bool
}

// NewDesktopChannel creates a desktop channel from the given config.
func NewDesktopChannel(config notifier.DesktopConfig) *DesktopChannel {
	var n notifier.Notifier
	if config.Enabled {
		n = notifier.NewDesktopNotifier(config)
	} else {
		n = notifier.NewNoOpNotifier()
	}

	return &DesktopChannel{
		notifier: n,
		enabled:  config.Enabled,
	}
}

// Name returns "desktop".
func (c *DesktopChannel) Name() string {
	return "desktop"
}

// IsEnabled reports whether desktop popups are enabled via configuration.
func (c *DesktopChannel) IsEnabled() bool {
	return c.enabled
}

// Send shows a summary popup for the event.
func (c *DesktopChannel) Send(ctx context.Context, event *NotificationEvent) error {
	if !c.enabled {
		return ErrChannelDisabled
	}
	if !event.Valid() {
		return ErrInvalidEvent
	}

	search := &entity.SavedSearch{ID: event.SavedSearchID, Name: event.SearchName}
	return c.notifier.NotifyNewListings(ctx, search, event.NewListings, event.CycleAt)
}
