package scrape_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-watch/internal/domain/entity"
	"market-watch/internal/usecase/scrape"
)

// stubAdapter is a SiteAdapter returning canned listings or a canned error.
type stubAdapter struct {
	site     entity.Marketplace
	listings []entity.Listing
	err      error
	delay    time.Duration
	calls    int
}

func (s *stubAdapter) Site() entity.Marketplace { return s.site }

func (s *stubAdapter) Fetch(ctx context.Context, _ entity.SearchCriteria, _ int) ([]entity.Listing, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, scrape.NewAdapterError(s.site, scrape.ErrorKindTimeout, ctx.Err())
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.listings, nil
}

func listing(site entity.Marketplace, id string, price int64) entity.Listing {
	return entity.Listing{
		Site:       site,
		ExternalID: id,
		Title:      "nikon f3 body",
		PriceMinor: price,
		Currency:   "JPY",
		URL:        "https://example.com/" + id,
		FetchedAt:  time.Now(),
	}
}

func search(sites ...entity.Marketplace) *entity.SavedSearch {
	return &entity.SavedSearch{
		ID:   42,
		Name: "nikon f3",
		Criteria: entity.SearchCriteria{
			Keywords: []string{"nikon"},
			Sites:    sites,
		},
	}
}

func outcomeFor(t *testing.T, r *scrape.CycleResult, site entity.Marketplace) scrape.AdapterOutcome {
	t.Helper()
	for _, o := range r.Outcomes {
		if o.Site == site {
			return o
		}
	}
	t.Fatalf("no outcome recorded for site %s", site)
	return scrape.AdapterOutcome{}
}

func TestOrchestrator_MergesAdapterResults(t *testing.T) {
	yahoo := &stubAdapter{
		site:     entity.MarketplaceYahooAuctions,
		listings: []entity.Listing{listing(entity.MarketplaceYahooAuctions, "a1", 500)},
	}
	rakuten := &stubAdapter{
		site:     entity.MarketplaceRakuten,
		listings: []entity.Listing{listing(entity.MarketplaceRakuten, "r1", 300), listing(entity.MarketplaceRakuten, "r2", 900)},
	}

	o := scrape.NewOrchestrator([]scrape.SiteAdapter{yahoo, rakuten}, scrape.DefaultConfig())
	result := o.Run(context.Background(), search(entity.MarketplaceYahooAuctions, entity.MarketplaceRakuten))

	assert.Len(t, result.Listings, 3)
	assert.Len(t, result.Outcomes, 2)
	assert.Equal(t, 2, result.Succeeded())
	assert.False(t, result.AllFailed())
	assert.Equal(t, 1, outcomeFor(t, result, entity.MarketplaceYahooAuctions).Listings)
	assert.Equal(t, 2, outcomeFor(t, result, entity.MarketplaceRakuten).Listings)
}

func TestOrchestrator_FailureIsIsolated(t *testing.T) {
	blocked := scrape.NewAdapterError(entity.MarketplaceMercari, scrape.ErrorKindBlocked, errors.New("bot check"))
	yahoo := &stubAdapter{
		site: entity.MarketplaceYahooAuctions,
		listings: []entity.Listing{
			listing(entity.MarketplaceYahooAuctions, "1", 500),
			listing(entity.MarketplaceYahooAuctions, "2", 300),
		},
	}
	mercari := &stubAdapter{site: entity.MarketplaceMercari, err: blocked}

	o := scrape.NewOrchestrator([]scrape.SiteAdapter{yahoo, mercari}, scrape.DefaultConfig())
	result := o.Run(context.Background(), search(entity.MarketplaceYahooAuctions, entity.MarketplaceMercari))

	require.Len(t, result.Outcomes, 2)
	assert.False(t, result.AllFailed())
	assert.Len(t, result.Listings, 2)

	ok := outcomeFor(t, result, entity.MarketplaceYahooAuctions)
	assert.False(t, ok.Failed())
	assert.Equal(t, 2, ok.Listings)

	failed := outcomeFor(t, result, entity.MarketplaceMercari)
	assert.True(t, failed.Failed())
	assert.Equal(t, scrape.ErrorKindBlocked, failed.ErrorKind)
}

func TestOrchestrator_AllFailed(t *testing.T) {
	o := scrape.NewOrchestrator([]scrape.SiteAdapter{
		&stubAdapter{site: entity.MarketplaceYahooAuctions, err: scrape.NewAdapterError(entity.MarketplaceYahooAuctions, scrape.ErrorKindNetwork, errors.New("refused"))},
		&stubAdapter{site: entity.MarketplaceRakuten, err: scrape.NewAdapterError(entity.MarketplaceRakuten, scrape.ErrorKindTimeout, context.DeadlineExceeded)},
	}, scrape.DefaultConfig())

	result := o.Run(context.Background(), search(entity.MarketplaceYahooAuctions, entity.MarketplaceRakuten))

	assert.True(t, result.AllFailed())
	assert.Empty(t, result.Listings)
}

func TestOrchestrator_ClientSideRefilter(t *testing.T) {
	minPrice, maxPrice := int64(400), int64(800)
	s := search(entity.MarketplaceYahooAuctions)
	s.Criteria.MinPriceMinor = &minPrice
	s.Criteria.MaxPriceMinor = &maxPrice

	// The site "ignored" the price filter and returned out-of-range items.
	adapter := &stubAdapter{
		site: entity.MarketplaceYahooAuctions,
		listings: []entity.Listing{
			listing(entity.MarketplaceYahooAuctions, "cheap", 100),
			listing(entity.MarketplaceYahooAuctions, "ok", 500),
			listing(entity.MarketplaceYahooAuctions, "pricey", 5000),
		},
	}

	o := scrape.NewOrchestrator([]scrape.SiteAdapter{adapter}, scrape.DefaultConfig())
	result := o.Run(context.Background(), s)

	require.Len(t, result.Listings, 1)
	assert.Equal(t, "ok", result.Listings[0].ExternalID)
	assert.Equal(t, 1, outcomeFor(t, result, entity.MarketplaceYahooAuctions).Listings)
}

func TestOrchestrator_DropsInvalidListings(t *testing.T) {
	bad := listing(entity.MarketplaceRakuten, "r1", 300)
	bad.Title = ""

	adapter := &stubAdapter{
		site:     entity.MarketplaceRakuten,
		listings: []entity.Listing{bad, listing(entity.MarketplaceRakuten, "r2", 300)},
	}

	o := scrape.NewOrchestrator([]scrape.SiteAdapter{adapter}, scrape.DefaultConfig())
	result := o.Run(context.Background(), search(entity.MarketplaceRakuten))

	require.Len(t, result.Listings, 1)
	assert.Equal(t, "r2", result.Listings[0].ExternalID)
}

func TestOrchestrator_UnregisteredSite(t *testing.T) {
	o := scrape.NewOrchestrator(nil, scrape.DefaultConfig())
	result := o.Run(context.Background(), search(entity.MarketplaceMercari))

	require.Len(t, result.Outcomes, 1)
	assert.True(t, result.Outcomes[0].Failed())
	assert.ErrorIs(t, result.Outcomes[0].Err, scrape.ErrNoAdapter)
	assert.True(t, result.AllFailed())
}

func TestOrchestrator_AdapterTimeout(t *testing.T) {
	cfg := scrape.Config{AdapterTimeout: 20 * time.Millisecond, PageLimit: 1}
	slow := &stubAdapter{
		site:     entity.MarketplaceYahooAuctions,
		delay:    500 * time.Millisecond,
		listings: []entity.Listing{listing(entity.MarketplaceYahooAuctions, "a1", 500)},
	}

	o := scrape.NewOrchestrator([]scrape.SiteAdapter{slow}, cfg)
	result := o.Run(context.Background(), search(entity.MarketplaceYahooAuctions))

	outcome := outcomeFor(t, result, entity.MarketplaceYahooAuctions)
	assert.True(t, outcome.Failed())
	assert.Equal(t, scrape.ErrorKindTimeout, outcome.ErrorKind)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want scrape.ErrorKind
	}{
		{
			name: "typed adapter error",
			err:  scrape.NewAdapterError(entity.MarketplaceMercari, scrape.ErrorKindBlocked, errors.New("403")),
			want: scrape.ErrorKindBlocked,
		},
		{
			name: "wrapped adapter error",
			err:  errorsJoin(scrape.NewAdapterError(entity.MarketplaceRakuten, scrape.ErrorKindParse, errors.New("no items"))),
			want: scrape.ErrorKindParse,
		},
		{name: "bare deadline", err: context.DeadlineExceeded, want: scrape.ErrorKindTimeout},
		{name: "untyped error", err: errors.New("boom"), want: scrape.ErrorKindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scrape.KindOf(tt.err))
		})
	}
}

func errorsJoin(err error) error {
	return errors.Join(errors.New("fetch failed"), err)
}
