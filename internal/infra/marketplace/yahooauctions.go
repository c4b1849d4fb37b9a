package marketplace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"market-watch/internal/domain/entity"
	"market-watch/internal/resilience/retry"
	"market-watch/internal/usecase/scrape"
)

const (
	yahooAuctionsBaseURL = "https://auctions.yahoo.co.jp"
	yahooSearchPath      = "/search/search"
	yahooPageSize        = 100

	maxBodySize = 10 << 20 // 10 MiB

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
)

// YahooAuctionsAdapter scrapes auctions.yahoo.co.jp search result pages.
// Results cover both auctions and fixed-price listings, newest first.
type YahooAuctionsAdapter struct {
	client      *http.Client
	baseURL     string
	retryConfig retry.Config
}

// NewYahooAuctionsAdapter creates an adapter using the given HTTP client.
func NewYahooAuctionsAdapter(client *http.Client) *YahooAuctionsAdapter {
	return &YahooAuctionsAdapter{
		client:      client,
		baseURL:     yahooAuctionsBaseURL,
		retryConfig: retry.MarketplaceConfig(),
	}
}

// NewYahooAuctionsAdapterWithBaseURL creates an adapter pointed at an
// alternate host, for tests.
func NewYahooAuctionsAdapterWithBaseURL(client *http.Client, baseURL string) *YahooAuctionsAdapter {
	a := NewYahooAuctionsAdapter(client)
	a.baseURL = strings.TrimSuffix(baseURL, "/")
	return a
}

// Site implements scrape.SiteAdapter.
func (a *YahooAuctionsAdapter) Site() entity.Marketplace {
	return entity.MarketplaceYahooAuctions
}

// Fetch implements scrape.SiteAdapter. It drains result pages via the
// b offset parameter until a page comes back empty or pageLimit is hit.
func (a *YahooAuctionsAdapter) Fetch(ctx context.Context, criteria entity.SearchCriteria, pageLimit int) ([]entity.Listing, error) {
	var listings []entity.Listing

	for page := 1; pageLimit <= 0 || page <= pageLimit; page++ {
		pageURL := a.searchURL(criteria, page)

		doc, err := a.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, a.classify(err)
		}

		cards := doc.Find("li.Product")
		if cards.Length() == 0 {
			if page == 1 && looksBlocked(doc) {
				return nil, scrape.NewAdapterError(a.Site(), scrape.ErrorKindBlocked,
					errors.New("search results replaced by a verification page"))
			}
			break
		}

		pageListings := a.parseCards(cards)
		if len(pageListings) == 0 {
			// Cards rendered but none parsed: the markup moved under us.
			return nil, scrape.NewAdapterError(a.Site(), scrape.ErrorKindParse,
				fmt.Errorf("%d product cards matched but none parsed", cards.Length()))
		}

		listings = append(listings, pageListings...)

		// A short page is the last page.
		if cards.Length() < yahooPageSize {
			break
		}
	}

	return listings, nil
}

// searchURL builds the search URL for one result page. The b parameter
// is a 1-based item offset, 100 items per page.
func (a *YahooAuctionsAdapter) searchURL(criteria entity.SearchCriteria, page int) string {
	keywords := strings.Join(criteria.Keywords, " ")

	q := url.Values{}
	q.Set("p", keywords)
	q.Set("va", keywords)
	q.Set("b", strconv.Itoa((page-1)*yahooPageSize+1))
	q.Set("n", strconv.Itoa(yahooPageSize))
	q.Set("fixed", "3") // auctions and fixed price
	q.Set("s1", "new")  // newest first
	if criteria.MinPriceMinor != nil {
		q.Set("aucminprice", strconv.FormatInt(*criteria.MinPriceMinor, 10))
	}
	if criteria.MaxPriceMinor != nil {
		q.Set("aucmaxprice", strconv.FormatInt(*criteria.MaxPriceMinor, 10))
	}

	return a.baseURL + yahooSearchPath + "?" + q.Encode()
}

// fetchDocument GETs one page with retry on transient failures and
// parses it.
func (a *YahooAuctionsAdapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document

	err := retry.WithBackoff(ctx, a.retryConfig, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept-Language", "ja-JP,ja;q=0.9")

		resp, err := a.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return &retry.HTTPError{
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("unexpected status: %s", resp.Status),
			}
		}

		doc, err = goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return fmt.Errorf("parse HTML: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// parseCards extracts listings from li.Product cards, skipping cards
// that miss required fields.
func (a *YahooAuctionsAdapter) parseCards(cards *goquery.Selection) []entity.Listing {
	var listings []entity.Listing

	cards.Each(func(_ int, card *goquery.Selection) {
		title := strings.TrimSpace(card.Find(".Product__title").First().Text())
		if title == "" {
			return
		}

		price, err := normalizePrice(card.Find(".Product__price").First().Text())
		if err != nil {
			slog.Debug("skipping card with unparseable price",
				slog.String("site", string(a.Site())),
				slog.String("title", title),
				slog.Any("error", err))
			return
		}

		href, ok := card.Find("a").First().Attr("href")
		if !ok || href == "" {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = yahooAuctionsBaseURL + href
		}

		imageURL, _ := card.Find("img").First().Attr("src")

		listings = append(listings, entity.Listing{
			Site:       a.Site(),
			ExternalID: externalIDFromURL(href),
			Title:      title,
			PriceMinor: price,
			Currency:   "JPY",
			URL:        href,
			ImageURL:   imageURL,
			FetchedAt:  time.Now(),
		})
	})

	return listings
}

// classify maps fetch errors to the adapter error taxonomy.
func (a *YahooAuctionsAdapter) classify(err error) error {
	return classifyFetchError(a.Site(), err)
}

// classifyFetchError maps transport-level failures to AdapterError
// kinds shared by the static HTML adapters.
func classifyFetchError(site entity.Marketplace, err error) error {
	var aerr *scrape.AdapterError
	if errors.As(err, &aerr) {
		return err
	}

	var httpErr *retry.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusForbidden {
			return scrape.NewAdapterError(site, scrape.ErrorKindBlocked, err)
		}
		return scrape.NewAdapterError(site, scrape.ErrorKindNetwork, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return scrape.NewAdapterError(site, scrape.ErrorKindTimeout, err)
	}

	if strings.Contains(err.Error(), "parse HTML") {
		return scrape.NewAdapterError(site, scrape.ErrorKindParse, err)
	}

	return scrape.NewAdapterError(site, scrape.ErrorKindNetwork, err)
}

// looksBlocked heuristically detects anti-bot interstitials on a page
// that carries no product cards.
func looksBlocked(doc *goquery.Document) bool {
	if doc.Find("form[action*='captcha'], div#captcha, iframe[src*='captcha']").Length() > 0 {
		return true
	}
	title := strings.ToLower(doc.Find("title").Text())
	return strings.Contains(title, "captcha") || strings.Contains(title, "access denied")
}

// externalIDFromURL returns the last path segment of a listing URL.
// When the URL has no usable segment the full URL stands in as the
// identity, which stays stable across cycles.
func externalIDFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	if last == "" {
		return rawURL
	}
	return last
}
