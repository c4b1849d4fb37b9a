package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"market-watch/internal/domain/entity"
	"market-watch/internal/usecase/scrape"
)

const (
	mercariBaseURL   = "https://jp.mercari.com"
	mercariCellsExpr = `document.querySelectorAll('li[data-testid="item-cell"]').length > 0 ||
		document.querySelector('[data-testid*="no-results"]') !== null`

	// One scroll pass loads roughly one page worth of cells.
	mercariScrollStep = 1200
)

// mercariExtractJS pulls the loaded item cells out of the DOM. The
// title lives in the thumbnail's aria-label because Mercari renders the
// name into the image alt text.
const mercariExtractJS = `
Array.from(document.querySelectorAll('li[data-testid="item-cell"]')).map(function(cell) {
	var link = cell.querySelector('a[data-testid="thumbnail-link"]') || cell.querySelector('a[href*="/item/"]');
	var href = link ? link.getAttribute('href') : '';
	var imgDiv = link ? link.querySelector('div[role="img"]') : null;
	var title = imgDiv ? imgDiv.getAttribute('aria-label') : '';
	if (!title) {
		var img = cell.querySelector('picture img');
		title = img ? img.getAttribute('alt') : '';
	}
	var priceEl = cell.querySelector('span[class*="merPrice"] span[class*="number__"]') ||
		cell.querySelector('span[class*="merPrice"]');
	var img = cell.querySelector('picture img');
	return {
		href: href || '',
		title: title || '',
		price: priceEl ? priceEl.textContent : '',
		image: img ? img.getAttribute('src') : ''
	};
})`

// mercariBlockedJS detects the anti-bot interstitial Mercari serves
// instead of search results.
const mercariBlockedJS = `(function() {
	var t = (document.title || '').toLowerCase();
	return t.indexOf('captcha') >= 0 || t.indexOf('access denied') >= 0 ||
		document.querySelector('iframe[src*="captcha"], form[action*="captcha"]') !== null;
})()`

type mercariItem struct {
	Href  string `json:"href"`
	Title string `json:"title"`
	Price string `json:"price"`
	Image string `json:"image"`
}

// MercariConfig controls the browser session.
type MercariConfig struct {
	// Headless runs Chrome without a display. Default true.
	Headless bool

	// NavigationTimeout bounds one search page load and scroll pass.
	NavigationTimeout time.Duration
}

// DefaultMercariConfig returns the production browser settings.
func DefaultMercariConfig() MercariConfig {
	return MercariConfig{
		Headless:          true,
		NavigationTimeout: 90 * time.Second,
	}
}

// MercariAdapter drives jp.mercari.com through a headless browser.
// The site renders entirely client-side and blocks plain HTTP clients,
// so one long-lived Chrome session is shared across cycles and reset
// whenever the site serves a verification page. A mutex keeps the
// session single-flight; the gate's semaphore enforces the same bound
// across callers.
type MercariAdapter struct {
	cfg     MercariConfig
	baseURL string
	rng     *rand.Rand
	rngMu   sync.Mutex

	mu            sync.Mutex
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewMercariAdapter creates the adapter. The browser starts lazily on
// the first Fetch.
func NewMercariAdapter(cfg MercariConfig) *MercariAdapter {
	return &MercariAdapter{
		cfg:     cfg,
		baseURL: mercariBaseURL,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- think-time jitter only
	}
}

// Site implements scrape.SiteAdapter.
func (a *MercariAdapter) Site() entity.Marketplace {
	return entity.MarketplaceMercari
}

// Fetch implements scrape.SiteAdapter. pageLimit bounds the number of
// scroll passes; each pass lets the infinite-scroll page load another
// batch of cells.
func (a *MercariAdapter) Fetch(ctx context.Context, criteria entity.SearchCriteria, pageLimit int) ([]entity.Listing, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	browserCtx, err := a.ensureSession()
	if err != nil {
		return nil, scrape.NewAdapterError(a.Site(), scrape.ErrorKindNetwork,
			fmt.Errorf("start browser session: %w", err))
	}

	runCtx, cancel := context.WithTimeout(browserCtx, a.cfg.NavigationTimeout)
	defer cancel()
	go func() {
		// Propagate caller cancellation into the browser run context.
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	searchURL := a.searchURL(criteria)

	var blocked, ready bool
	var items []mercariItem

	err = chromedp.Run(runCtx,
		chromedp.Navigate(searchURL),
		a.thinkTime(500*time.Millisecond, time.Second),
		chromedp.Poll(mercariCellsExpr, &ready, chromedp.WithPollingTimeout(20*time.Second)),
		chromedp.Evaluate(mercariBlockedJS, &blocked),
	)
	if err == nil && !blocked {
		if scrollErr := a.scrollThrough(runCtx, pageLimit); scrollErr != nil {
			slog.Debug("mercari scroll pass aborted",
				slog.Any("error", scrollErr))
		}
		err = chromedp.Run(runCtx, chromedp.Evaluate(mercariExtractJS, &items))
	}

	if err != nil {
		if errors.Is(err, chromedp.ErrPollingTimeout) {
			// Cells never appeared: either an unmarked block page or a
			// markup change. Check for the interstitial before deciding.
			if chkErr := chromedp.Run(runCtx, chromedp.Evaluate(mercariBlockedJS, &blocked)); chkErr == nil && blocked {
				a.resetSessionLocked()
				return nil, scrape.NewAdapterError(a.Site(), scrape.ErrorKindBlocked,
					errors.New("search results replaced by a verification page"))
			}
			return nil, scrape.NewAdapterError(a.Site(), scrape.ErrorKindParse,
				errors.New("item cells never rendered"))
		}
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, scrape.NewAdapterError(a.Site(), scrape.ErrorKindTimeout, err)
		}
		a.resetSessionLocked()
		return nil, scrape.NewAdapterError(a.Site(), scrape.ErrorKindNetwork, err)
	}

	if blocked {
		// Drop the tainted session so the next cycle starts clean.
		a.resetSessionLocked()
		return nil, scrape.NewAdapterError(a.Site(), scrape.ErrorKindBlocked,
			errors.New("search results replaced by a verification page"))
	}

	return a.toListings(items), nil
}

// Close shuts the browser session down.
func (a *MercariAdapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.resetSessionLocked()
}

// ensureSession starts Chrome on first use.
func (a *MercariAdapter) ensureSession() (context.Context, error) {
	if a.browserCtx != nil && a.browserCtx.Err() == nil {
		return a.browserCtx, nil
	}
	a.resetSessionLocked()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", a.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("lang", "ja-JP"),
		chromedp.UserAgent(userAgent),
	)

	a.allocCtx, a.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	a.browserCtx, a.browserCancel = chromedp.NewContext(a.allocCtx)

	// Start the browser process eagerly so a broken Chrome install
	// fails here rather than mid-search.
	if err := chromedp.Run(a.browserCtx); err != nil {
		a.resetSessionLocked()
		return nil, err
	}

	slog.Info("mercari browser session started",
		slog.Bool("headless", a.cfg.Headless))
	return a.browserCtx, nil
}

func (a *MercariAdapter) resetSessionLocked() {
	if a.browserCancel != nil {
		a.browserCancel()
		a.browserCancel = nil
		a.browserCtx = nil
	}
	if a.allocCancel != nil {
		a.allocCancel()
		a.allocCancel = nil
		a.allocCtx = nil
	}
}

// searchURL builds the client-side search URL. status=on_sale excludes
// sold items, matching what a user gets after ticking the on-sale
// filter.
func (a *MercariAdapter) searchURL(criteria entity.SearchCriteria) string {
	q := url.Values{}
	q.Set("keyword", strings.Join(criteria.Keywords, " "))
	q.Set("status", "on_sale")
	q.Set("sort", "created_time")
	q.Set("order", "desc")
	if criteria.MinPriceMinor != nil {
		q.Set("price_min", strconv.FormatInt(*criteria.MinPriceMinor, 10))
	}
	if criteria.MaxPriceMinor != nil {
		q.Set("price_max", strconv.FormatInt(*criteria.MaxPriceMinor, 10))
	}
	return a.baseURL + "/search?" + q.Encode()
}

// scrollThrough walks the page down in randomized steps so the
// infinite scroll keeps loading, one pass per allowed page.
func (a *MercariAdapter) scrollThrough(ctx context.Context, pageLimit int) error {
	passes := pageLimit
	if passes <= 0 {
		passes = 3
	}
	for i := 0; i < passes; i++ {
		step := mercariScrollStep + a.jitter(400)
		err := chromedp.Run(ctx,
			chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d); null", step), nil),
			a.thinkTime(300*time.Millisecond, 800*time.Millisecond),
		)
		if err != nil {
			return err
		}
	}
	return chromedp.Run(ctx,
		chromedp.Evaluate("window.scrollTo(0, 0); null", nil),
		a.thinkTime(200*time.Millisecond, 500*time.Millisecond),
	)
}

// thinkTime sleeps a random human-ish duration between actions.
func (a *MercariAdapter) thinkTime(lo, hi time.Duration) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		d := lo + time.Duration(a.jitter(int(hi-lo)))
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func (a *MercariAdapter) jitter(n int) int {
	if n <= 0 {
		return 0
	}
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	return a.rng.Intn(n)
}

func (a *MercariAdapter) toListings(items []mercariItem) []entity.Listing {
	listings := make([]entity.Listing, 0, len(items))
	for _, item := range items {
		if item.Href == "" || item.Title == "" {
			continue
		}

		price, err := normalizePrice(item.Price)
		if err != nil {
			slog.Debug("skipping card with unparseable price",
				slog.String("site", string(a.Site())),
				slog.String("title", item.Title),
				slog.Any("error", err))
			continue
		}

		href := item.Href
		if !strings.HasPrefix(href, "http") {
			href = mercariBaseURL + href
		}

		listings = append(listings, entity.Listing{
			Site:       a.Site(),
			ExternalID: externalIDFromURL(href),
			Title:      strings.TrimSpace(item.Title),
			PriceMinor: price,
			Currency:   "JPY",
			URL:        href,
			ImageURL:   item.Image,
			FetchedAt:  time.Now(),
		})
	}
	return listings
}
