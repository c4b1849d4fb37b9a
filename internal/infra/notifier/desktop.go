package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"market-watch/internal/domain/entity"
)

// Commander runs the desktop notification binary. It exists so tests
// can capture invocations without a display server.
type Commander interface {
	Run(ctx context.Context, name string, args ...string) error
}

// execCommander shells out via os/exec.
type execCommander struct{}

func (execCommander) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// DesktopConfig contains configuration for desktop notifications.
type DesktopConfig struct {
	// Enabled indicates whether desktop notifications are enabled
	Enabled bool

	// Command is the notification binary, defaulting to notify-send
	Command string
}

// DesktopNotifier shows a summary popup via the host's notification
// daemon. It is best-effort: a missing binary or absent display server
// surfaces as a regular delivery error.
type DesktopNotifier struct {
	config    DesktopConfig
	commander Commander
}

// NewDesktopNotifier creates a DesktopNotifier using notify-send unless
// the config names another command.
func NewDesktopNotifier(config DesktopConfig) *DesktopNotifier {
	if config.Command == "" {
		config.Command = "notify-send"
	}
	return &DesktopNotifier{
		config:    config,
		commander: execCommander{},
	}
}

// NewDesktopNotifierWithCommander creates a DesktopNotifier with an
// injected Commander, for tests.
func NewDesktopNotifierWithCommander(config DesktopConfig, commander Commander) *DesktopNotifier {
	if config.Command == "" {
		config.Command = "notify-send"
	}
	return &DesktopNotifier{
		config:    config,
		commander: commander,
	}
}

// NotifyNewListings implements the Notifier interface. The popup shows
// the search name, the new-listing count, and the cheapest find.
func (d *DesktopNotifier) NotifyNewListings(ctx context.Context, search *entity.SavedSearch, listings []entity.Listing, _ time.Time) error {
	summary := fmt.Sprintf("%d new listings: %s", len(listings), search.Name)

	body := ""
	if len(listings) > 0 {
		cheapest := listings[0]
		body = fmt.Sprintf("Cheapest: %s %s (%s)",
			formatPrice(cheapest.PriceMinor, cheapest.Currency),
			truncateText(cheapest.Title, 60, truncationSuffix),
			cheapest.Site)
	}

	if err := d.commander.Run(ctx, d.config.Command, "--app-name=market-watch", summary, body); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}

	slog.Debug("Desktop notification shown",
		slog.Int64("saved_search_id", search.ID),
		slog.Int("new_listings", len(listings)))
	return nil
}
