package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-watch/internal/domain/entity"
)

type fakeCommander struct {
	calls [][]string
	err   error
}

func (f *fakeCommander) Run(_ context.Context, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.err
}

func TestDesktopNotifier_ShowsSummary(t *testing.T) {
	commander := &fakeCommander{}
	n := NewDesktopNotifierWithCommander(DesktopConfig{Enabled: true}, commander)

	listings := []entity.Listing{
		{
			Site:       entity.MarketplaceMercari,
			ExternalID: "m1",
			Title:      "Super Takumar 55mm f1.8",
			PriceMinor: 4200,
			Currency:   "JPY",
			URL:        "https://mercari.example.com/m1",
		},
		{
			Site:       entity.MarketplaceYahooAuctions,
			ExternalID: "y2",
			Title:      "Jupiter-8",
			PriceMinor: 9000,
			Currency:   "JPY",
			URL:        "https://auctions.example.com/y2",
		},
	}

	err := n.NotifyNewListings(context.Background(), &entity.SavedSearch{ID: 7, Name: "m42 lenses"}, listings, time.Now())
	require.NoError(t, err)

	require.Len(t, commander.calls, 1)
	call := commander.calls[0]
	assert.Equal(t, "notify-send", call[0])
	assert.Contains(t, call, "2 new listings: m42 lenses")

	body := call[len(call)-1]
	assert.Contains(t, body, "¥4,200")
	assert.Contains(t, body, "Super Takumar")
}

func TestDesktopNotifier_CustomCommand(t *testing.T) {
	commander := &fakeCommander{}
	n := NewDesktopNotifierWithCommander(DesktopConfig{Enabled: true, Command: "osascript-notify"}, commander)

	err := n.NotifyNewListings(context.Background(), &entity.SavedSearch{ID: 7, Name: "x"}, []entity.Listing{
		{Site: entity.MarketplaceRakuten, ExternalID: "r1", Title: "t", PriceMinor: 1, Currency: "JPY", URL: "u"},
	}, time.Now())
	require.NoError(t, err)

	require.Len(t, commander.calls, 1)
	assert.Equal(t, "osascript-notify", commander.calls[0][0])
}

func TestDesktopNotifier_CommandFailure(t *testing.T) {
	commander := &fakeCommander{err: errors.New("no display")}
	n := NewDesktopNotifierWithCommander(DesktopConfig{Enabled: true}, commander)

	err := n.NotifyNewListings(context.Background(), &entity.SavedSearch{ID: 7, Name: "x"}, []entity.Listing{
		{Site: entity.MarketplaceRakuten, ExternalID: "r1", Title: "t", PriceMinor: 1, Currency: "JPY", URL: "u"},
	}, time.Now())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "desktop notification")
}
