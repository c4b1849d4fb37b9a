package marketplace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"market-watch/internal/domain/entity"
	"market-watch/internal/resilience/retry"
	"market-watch/internal/usecase/scrape"
)

const rakutenBaseURL = "https://search.rakuten.co.jp"

// Card class names carry build hashes that churn, so the price lookup
// tries several selectors from most to least specific.
var rakutenPriceSelectors = []string{
	"div.price--3zUvK.price-with-price-plus-shipping--Bmgz2",
	"div.price--3zUvK",
	"div[class^='price-wrapper']",
	"div[class^='price']",
}

var rakutenItemIDPattern = regexp.MustCompile(`/([0-9]+)(?:-[0-9]+)?/`)

// RakutenAdapter scrapes search.rakuten.co.jp mall search pages.
// Rakuten listings are always fixed price.
type RakutenAdapter struct {
	client      *http.Client
	baseURL     string
	retryConfig retry.Config
}

// NewRakutenAdapter creates an adapter using the given HTTP client.
func NewRakutenAdapter(client *http.Client) *RakutenAdapter {
	return &RakutenAdapter{
		client:      client,
		baseURL:     rakutenBaseURL,
		retryConfig: retry.MarketplaceConfig(),
	}
}

// NewRakutenAdapterWithBaseURL creates an adapter pointed at an
// alternate host, for tests.
func NewRakutenAdapterWithBaseURL(client *http.Client, baseURL string) *RakutenAdapter {
	a := NewRakutenAdapter(client)
	a.baseURL = strings.TrimSuffix(baseURL, "/")
	return a
}

// Site implements scrape.SiteAdapter.
func (a *RakutenAdapter) Site() entity.Marketplace {
	return entity.MarketplaceRakuten
}

// Fetch implements scrape.SiteAdapter. Pages are walked via the p query
// parameter until one comes back without result cards or pageLimit is
// reached.
func (a *RakutenAdapter) Fetch(ctx context.Context, criteria entity.SearchCriteria, pageLimit int) ([]entity.Listing, error) {
	var listings []entity.Listing

	for page := 1; pageLimit <= 0 || page <= pageLimit; page++ {
		doc, err := a.fetchDocument(ctx, a.searchURL(criteria, page))
		if err != nil {
			return nil, classifyFetchError(a.Site(), err)
		}

		cards := doc.Find("div.searchresultitem, div.dui-card.searchresultitem--grid, div.dui-card")
		if cards.Length() == 0 {
			if page == 1 && looksBlocked(doc) {
				return nil, scrape.NewAdapterError(a.Site(), scrape.ErrorKindBlocked,
					errors.New("search results replaced by a verification page"))
			}
			break
		}

		pageListings := a.parseCards(cards)
		if len(pageListings) == 0 {
			return nil, scrape.NewAdapterError(a.Site(), scrape.ErrorKindParse,
				fmt.Errorf("%d result cards matched but none parsed", cards.Length()))
		}

		listings = append(listings, pageListings...)

		// Stop when the pagination widget shows no further page.
		if !hasPageLink(doc, page+1) {
			break
		}
	}

	return listings, nil
}

// searchURL builds the mall search URL. Keywords are joined with a
// full-width space inside the path and sorted newest first (s=4).
func (a *RakutenAdapter) searchURL(criteria entity.SearchCriteria, page int) string {
	query := url.PathEscape(strings.Join(criteria.Keywords, "　"))

	q := url.Values{}
	q.Set("p", strconv.Itoa(page))
	q.Set("s", "4")
	if criteria.MinPriceMinor != nil {
		q.Set("min", strconv.FormatInt(*criteria.MinPriceMinor, 10))
	}
	if criteria.MaxPriceMinor != nil {
		q.Set("max", strconv.FormatInt(*criteria.MaxPriceMinor, 10))
	}

	return a.baseURL + "/search/mall/" + query + "/?" + q.Encode()
}

func (a *RakutenAdapter) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
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

func (a *RakutenAdapter) parseCards(cards *goquery.Selection) []entity.Listing {
	var listings []entity.Listing
	seen := make(map[string]struct{})

	cards.Each(func(_ int, card *goquery.Selection) {
		titleLink := card.Find("h2[class^='title-link-wrapper'] a").First()
		if titleLink.Length() == 0 {
			titleLink = card.Find("h2 a").First()
		}
		title := strings.TrimSpace(titleLink.Text())
		if title == "" {
			return
		}

		href, ok := titleLink.Attr("href")
		if !ok || href == "" {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = rakutenBaseURL + href
		}

		price, err := a.extractPrice(card)
		if err != nil {
			slog.Debug("skipping card with unparseable price",
				slog.String("site", string(a.Site())),
				slog.String("title", title),
				slog.Any("error", err))
			return
		}

		externalID := a.extractItemID(card, href)
		if _, dup := seen[externalID]; dup {
			// Grid and list markups can overlap in the selector union.
			return
		}
		seen[externalID] = struct{}{}

		imageURL, _ := card.Find("img").First().Attr("src")

		listings = append(listings, entity.Listing{
			Site:       a.Site(),
			ExternalID: externalID,
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

func (a *RakutenAdapter) extractPrice(card *goquery.Selection) (int64, error) {
	for _, sel := range rakutenPriceSelectors {
		el := card.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		if price, err := normalizePrice(el.Text()); err == nil && price > 0 {
			return price, nil
		}
	}
	return 0, fmt.Errorf("no price element matched")
}

// extractItemID prefers the data-item-id attribute, falling back to the
// numeric segment of the listing URL, then to the URL itself.
func (a *RakutenAdapter) extractItemID(card *goquery.Selection, href string) string {
	if id, ok := card.Attr("data-item-id"); ok && id != "" {
		return id
	}
	if m := rakutenItemIDPattern.FindStringSubmatch(href); m != nil {
		return m[1]
	}
	return href
}

// hasPageLink reports whether the pagination widget links to the given
// page number.
func hasPageLink(doc *goquery.Document, page int) bool {
	want := strconv.Itoa(page)
	found := false
	doc.Find("div.dui-pagination a").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if strings.TrimSpace(link.Text()) == want {
			found = true
			return false
		}
		return true
	})
	return found
}
