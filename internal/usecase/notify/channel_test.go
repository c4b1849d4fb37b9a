package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-watch/internal/infra/notifier"
)

func TestWebhookChannel_Name(t *testing.T) {
	ch := NewWebhookChannel(notifier.WebhookConfig{Enabled: false})
	assert.Equal(t, "webhook", ch.Name())
}

func TestWebhookChannel_Disabled(t *testing.T) {
	ch := NewWebhookChannel(notifier.WebhookConfig{Enabled: false})

	assert.False(t, ch.IsEnabled())
	err := ch.Send(context.Background(), testEvent())
	assert.ErrorIs(t, err, ErrChannelDisabled)
}

func TestWebhookChannel_InvalidEvent(t *testing.T) {
	ch := NewWebhookChannel(notifier.WebhookConfig{
		Enabled:    true,
		WebhookURL: "https://example.invalid/webhook",
		Timeout:    time.Second,
	})

	err := ch.Send(context.Background(), &NotificationEvent{SavedSearchID: 1})
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestWebhookChannel_SendsThroughNotifier(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ch := NewWebhookChannel(notifier.WebhookConfig{
		Enabled:    true,
		WebhookURL: server.URL,
		Timeout:    2 * time.Second,
	})

	require.True(t, ch.IsEnabled())
	require.NoError(t, ch.Send(context.Background(), testEvent()))
	assert.Equal(t, int32(1), hits.Load())
}

func TestDesktopChannel_Name(t *testing.T) {
	ch := NewDesktopChannel(notifier.DesktopConfig{Enabled: false})
	assert.Equal(t, "desktop", ch.Name())
}

func TestDesktopChannel_Disabled(t *testing.T) {
	ch := NewDesktopChannel(notifier.DesktopConfig{Enabled: false})

	assert.False(t, ch.IsEnabled())
	err := ch.Send(context.Background(), testEvent())
	assert.ErrorIs(t, err, ErrChannelDisabled)
}
