package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseMarketplace(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Marketplace
		wantErr bool
	}{
		{name: "yahoo auctions", input: "yahoo_auctions", want: MarketplaceYahooAuctions},
		{name: "rakuten", input: "rakuten", want: MarketplaceRakuten},
		{name: "mercari", input: "mercari", want: MarketplaceMercari},
		{name: "case and whitespace normalized", input: "  Mercari ", want: MarketplaceMercari},
		{name: "unknown site", input: "ebay", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMarketplace(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListingKey_RoundTrip(t *testing.T) {
	key := ListingKey{Site: MarketplaceYahooAuctions, ExternalID: "x123456789"}

	parsed, err := ParseListingKey(key.String())
	assert.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestParseListingKey_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "no separator", input: "mercari"},
		{name: "empty id", input: "mercari:"},
		{name: "unknown site", input: "ebay:123"},
		{name: "empty", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseListingKey(tt.input)
			assert.Error(t, err)
		})
	}
}

func TestParseListingKey_URLFallbackID(t *testing.T) {
	// External IDs that fall back to a normalized URL contain colons; only the
	// first one separates the site.
	key := ListingKey{Site: MarketplaceRakuten, ExternalID: "https://item.rakuten.co.jp/shop/abc"}

	parsed, err := ParseListingKey(key.String())
	assert.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestListing_Validate(t *testing.T) {
	valid := Listing{
		Site:       MarketplaceMercari,
		ExternalID: "m98765",
		Title:      "PS5 console",
		PriceMinor: 45000,
		Currency:   "JPY",
		URL:        "https://jp.mercari.com/item/m98765",
		FetchedAt:  time.Now(),
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(l *Listing)
		field  string
	}{
		{name: "unknown site", mutate: func(l *Listing) { l.Site = "ebay" }, field: "Site"},
		{name: "missing external id", mutate: func(l *Listing) { l.ExternalID = "" }, field: "ExternalID"},
		{name: "missing title", mutate: func(l *Listing) { l.Title = "" }, field: "Title"},
		{name: "negative price", mutate: func(l *Listing) { l.PriceMinor = -1 }, field: "PriceMinor"},
		{name: "missing url", mutate: func(l *Listing) { l.URL = "" }, field: "URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := valid
			tt.mutate(&l)
			err := l.Validate()
			assert.Error(t, err)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestListing_Key(t *testing.T) {
	l := Listing{Site: MarketplaceYahooAuctions, ExternalID: "a1"}
	assert.Equal(t, ListingKey{Site: MarketplaceYahooAuctions, ExternalID: "a1"}, l.Key())
}
