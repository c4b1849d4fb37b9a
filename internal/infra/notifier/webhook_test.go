package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-watch/internal/domain/entity"
)

func testSearch() *entity.SavedSearch {
	return &entity.SavedSearch{ID: 42, Name: "vintage lenses"}
}

func testListings() []entity.Listing {
	return []entity.Listing{
		{
			Site:       entity.MarketplaceYahooAuctions,
			ExternalID: "y1",
			Title:      "Helios 44-2 58mm f2",
			PriceMinor: 3500,
			Currency:   "JPY",
			URL:        "https://auctions.example.com/y1",
		},
		{
			Site:       entity.MarketplaceMercari,
			ExternalID: "m77",
			Title:      "Super Takumar 55mm",
			PriceMinor: 8800,
			Currency:   "JPY",
			URL:        "https://mercari.example.com/m77",
		},
	}
}

func newTestNotifier(url string) *WebhookNotifier {
	n := NewWebhookNotifier(WebhookConfig{
		Enabled:    true,
		WebhookURL: url,
		Timeout:    2 * time.Second,
	})
	// Wide-open limiter so tests are not throttled.
	n.rateLimiter = NewRateLimiter(1000, 1000)
	return n
}

func TestWebhookNotifier_SendsEmbedPayload(t *testing.T) {
	var captured WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := newTestNotifier(server.URL)
	cycleAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	err := n.NotifyNewListings(context.Background(), testSearch(), testListings(), cycleAt)
	require.NoError(t, err)

	require.Len(t, captured.Embeds, 1)
	embed := captured.Embeds[0]
	assert.Equal(t, "2 new listings: vintage lenses", embed.Title)
	assert.Contains(t, embed.Description, "¥3,500")
	assert.Contains(t, embed.Description, "¥8,800")
	assert.Contains(t, embed.Description, "yahoo_auctions")
	assert.Equal(t, "https://auctions.example.com/y1", embed.URL, "headline links to the cheapest listing")
	assert.Equal(t, cycleAt.Format(time.RFC3339), embed.Timestamp)
	assert.Equal(t, "market-watch search #42", embed.Footer.Text, "payload identifies the saved search")
}

func TestWebhookNotifier_SummarizesLargeBatches(t *testing.T) {
	listings := make([]entity.Listing, 0, maxSampleListings+3)
	for i := 0; i < maxSampleListings+3; i++ {
		listings = append(listings, entity.Listing{
			Site:       entity.MarketplaceRakuten,
			ExternalID: "r" + strings.Repeat("0", i+1),
			Title:      "item",
			PriceMinor: int64(100 * (i + 1)),
			Currency:   "JPY",
			URL:        "https://rakuten.example.com/r",
		})
	}

	n := newTestNotifier("http://unused.invalid")
	payload := n.buildEmbedPayload(testSearch(), listings, time.Now())

	desc := payload.Embeds[0].Description
	assert.Contains(t, desc, "+3 more")
	assert.Equal(t, maxSampleListings+1, len(strings.Split(desc, "\n")))
}

func TestWebhookNotifier_RetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := newTestNotifier(server.URL)

	start := time.Now()
	err := n.NotifyNewListings(context.Background(), testSearch(), testListings(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Second, "first retry waits the base delay")
}

func TestWebhookNotifier_DoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	n := newTestNotifier(server.URL)

	err := n.NotifyNewListings(context.Background(), testSearch(), testListings(), time.Now())
	require.Error(t, err)

	var clientErr *ClientError
	assert.ErrorAs(t, err, &clientErr)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestWebhookNotifier_HonorsRetryAfterOn429(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"rate limited","retry_after":0.1}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := newTestNotifier(server.URL)

	err := n.NotifyNewListings(context.Background(), testSearch(), testListings(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
}

func TestWebhookNotifier_ContextCancellationDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := newTestNotifier(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := n.NotifyNewListings(ctx, testSearch(), testListings(), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtractRetryAfter(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		header string
		want   time.Duration
	}{
		{
			name: "from json body",
			body: `{"retry_after": 2.5}`,
			want: 2500 * time.Millisecond,
		},
		{
			name:   "from header",
			body:   `{}`,
			header: "3",
			want:   3 * time.Second,
		},
		{
			name: "default",
			body: "not json",
			want: 5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{Header: http.Header{}}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}
			got := extractRetryAfter(resp, []byte(tt.body))
			assert.Equal(t, tt.want, got)
		})
	}
}
