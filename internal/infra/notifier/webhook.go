package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"market-watch/internal/domain/entity"

	"github.com/google/uuid"
)

// WebhookConfig contains configuration for Discord-compatible webhook
// notifications.
type WebhookConfig struct {
	// Enabled indicates whether webhook notifications are enabled
	Enabled bool

	// WebhookURL is the webhook URL (includes the authentication token)
	WebhookURL string

	// Timeout is the HTTP request timeout for webhook calls
	Timeout time.Duration
}

// WebhookNotifier sends new-listing notifications to a Discord-compatible
// webhook endpoint.
type WebhookNotifier struct {
	config      WebhookConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewWebhookNotifier creates a WebhookNotifier with the given
// configuration. The rate limiter is set to 0.5 req/s with a burst of 3
// to stay inside the Discord webhook limit of 30 requests per minute.
func NewWebhookNotifier(config WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: NewRateLimiter(0.5, 3),
	}
}

// WebhookPayload is the JSON payload posted to the webhook.
type WebhookPayload struct {
	Embeds []WebhookEmbed `json:"embeds"`
}

// WebhookEmbed is a single embed message.
type WebhookEmbed struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	URL         string             `json:"url,omitempty"`
	Color       int                `json:"color"`
	Footer      WebhookEmbedFooter `json:"footer"`
	Timestamp   string             `json:"timestamp"`
}

// WebhookEmbedFooter is the footer of an embed.
type WebhookEmbedFooter struct {
	Text string `json:"text"`
}

// webhookErrorResponse is the error body returned by the Discord API.
type webhookErrorResponse struct {
	Message    string  `json:"message"`
	Code       int     `json:"code"`
	RetryAfter float64 `json:"retry_after"` // seconds
}

const (
	// Discord embed limits
	maxTitleLength       = 256
	maxDescriptionLength = 4096
	truncationSuffix     = "..."

	// Listings shown per notification; the rest are summarized as a count.
	maxSampleListings = 5

	// Discord blue (#5865F2)
	embedColor = 5793266
)

// buildEmbedPayload renders one embed summarizing the cycle's new
// listings. The headline links to the cheapest listing, and the
// description lists up to maxSampleListings items in ascending price
// order with a "+N more" tail when the batch is larger.
func (w *WebhookNotifier) buildEmbedPayload(search *entity.SavedSearch, listings []entity.Listing, cycleAt time.Time) WebhookPayload {
	title := fmt.Sprintf("%d new listings: %s", len(listings), search.Name)
	if len(title) > maxTitleLength {
		title = title[:maxTitleLength]
	}

	var lines []string
	shown := listings
	if len(shown) > maxSampleListings {
		shown = shown[:maxSampleListings]
	}
	for _, l := range shown {
		lines = append(lines, fmt.Sprintf("[%s](%s) %s (%s)",
			truncateText(l.Title, 80, truncationSuffix),
			l.URL,
			formatPrice(l.PriceMinor, l.Currency),
			l.Site))
	}
	if rest := len(listings) - len(shown); rest > 0 {
		lines = append(lines, fmt.Sprintf("+%d more", rest))
	}

	description := truncateText(strings.Join(lines, "\n"), maxDescriptionLength, truncationSuffix)

	var headlineURL string
	if len(listings) > 0 {
		headlineURL = listings[0].URL
	}

	embed := WebhookEmbed{
		Title:       title,
		Description: description,
		URL:         headlineURL,
		Color:       embedColor,
		Footer: WebhookEmbedFooter{
			// The footer carries the saved-search id so a consumer can map
			// the message back to a search without parsing the title.
			Text: fmt.Sprintf("market-watch search #%d", search.ID),
		},
		Timestamp: cycleAt.Format(time.RFC3339),
	}

	return WebhookPayload{
		Embeds: []WebhookEmbed{embed},
	}
}

// sendWebhookRequest posts one payload and classifies the response.
//
// Error types:
//   - 429: RateLimitError (retryable, carries retry_after)
//   - 4xx (non-429): ClientError (non-retryable)
//   - 5xx: ServerError (retryable)
//   - network errors: retryable
func (w *WebhookNotifier) sendWebhookRequest(ctx context.Context, search *entity.SavedSearch, listings []entity.Listing, cycleAt time.Time) error {
	payload := w.buildEmbedPayload(search, listings, cycleAt)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Message:    "webhook rate limit exceeded",
			RetryAfter: extractRetryAfter(resp, body),
		}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("webhook client error: %s", string(body)),
		}
	}

	if resp.StatusCode >= 500 {
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("webhook server error: %s", string(body)),
		}
	}

	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
}

// extractRetryAfter reads the retry_after duration from a 429 response,
// preferring the JSON body over the Retry-After header. Defaults to 5s.
func extractRetryAfter(resp *http.Response, body []byte) time.Duration {
	var webhookErr webhookErrorResponse
	if err := json.Unmarshal(body, &webhookErr); err == nil && webhookErr.RetryAfter > 0 {
		return time.Duration(webhookErr.RetryAfter * float64(time.Second))
	}

	if retryAfterHeader := resp.Header.Get("Retry-After"); retryAfterHeader != "" {
		if seconds, err := strconv.Atoi(retryAfterHeader); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}

	return 5 * time.Second
}

// sendWebhookRequestWithRetry wraps sendWebhookRequest with retry logic.
//
// Retry strategy:
//   - max 2 attempts, 5s base delay
//   - 429: sleep for retry_after, then retry
//   - 5xx and network errors: linear backoff (5s, 10s)
//   - other 4xx: fail immediately
func (w *WebhookNotifier) sendWebhookRequestWithRetry(ctx context.Context, search *entity.SavedSearch, listings []entity.Listing, cycleAt time.Time) error {
	const (
		maxAttempts = 2
		baseDelay   = 5 * time.Second
	)

	requestID, _ := ctx.Value(requestIDKey).(string)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := w.sendWebhookRequest(ctx, search, listings, cycleAt)

		if err == nil {
			slog.Info("Webhook notification successful",
				slog.String("request_id", requestID),
				slog.Int64("saved_search_id", search.ID),
				slog.Int("new_listings", len(listings)),
				slog.Int("attempt", attempt))
			return nil
		}

		lastErr = err

		if rateLimitErr, ok := is429Error(err); ok {
			slog.Warn("Webhook rate limit hit, backing off",
				slog.String("request_id", requestID),
				slog.Int64("saved_search_id", search.ID),
				slog.Duration("retry_after", rateLimitErr.RetryAfter),
				slog.Int("attempt", attempt))

			select {
			case <-time.After(rateLimitErr.RetryAfter):
				continue
			case <-ctx.Done():
				return fmt.Errorf("context canceled during rate limit backoff: %w", ctx.Err())
			}
		}

		if !isRetryableError(err) {
			slog.Error("Webhook notification failed with non-retryable error",
				slog.String("request_id", requestID),
				slog.Int64("saved_search_id", search.ID),
				slog.Any("error", err),
				slog.Int("attempt", attempt))
			return err
		}

		if attempt < maxAttempts {
			delay := baseDelay * time.Duration(attempt)
			slog.Warn("Webhook request failed, retrying",
				slog.String("request_id", requestID),
				slog.Int64("saved_search_id", search.ID),
				slog.Any("error", err),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))

			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
		}
	}

	slog.Error("Webhook notification failed after all retries",
		slog.String("request_id", requestID),
		slog.Int64("saved_search_id", search.ID),
		slog.Any("error", lastErr),
		slog.Int("max_attempts", maxAttempts))

	return fmt.Errorf("webhook notification failed after %d attempts: %w", maxAttempts, lastErr)
}

// NotifyNewListings implements the Notifier interface.
func (w *WebhookNotifier) NotifyNewListings(ctx context.Context, search *entity.SavedSearch, listings []entity.Listing, cycleAt time.Time) error {
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		requestID = uuid.New().String()
		ctx = context.WithValue(ctx, requestIDKey, requestID)
	}

	slog.Info("Starting webhook notification",
		slog.String("request_id", requestID),
		slog.Int64("saved_search_id", search.ID),
		slog.String("search_name", search.Name),
		slog.Int("new_listings", len(listings)))

	if err := w.rateLimiter.Allow(ctx); err != nil {
		slog.Error("Rate limiter error",
			slog.String("request_id", requestID),
			slog.Int64("saved_search_id", search.ID),
			slog.Any("error", err))
		return fmt.Errorf("rate limiter error: %w", err)
	}

	return w.sendWebhookRequestWithRetry(ctx, search, listings, cycleAt)
}
