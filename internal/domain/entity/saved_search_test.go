package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr(v int64) *int64 { return &v }

func TestSearchCriteria_Validate(t *testing.T) {
	tests := []struct {
		name     string
		criteria SearchCriteria
		wantErr  bool
	}{
		{
			name: "valid with bounds",
			criteria: SearchCriteria{
				Keywords:      []string{"ps5"},
				MinPriceMinor: ptr(1000),
				MaxPriceMinor: ptr(50000),
				Sites:         []Marketplace{MarketplaceMercari},
			},
		},
		{
			name: "valid without bounds",
			criteria: SearchCriteria{
				Keywords: []string{"leica", "m6"},
				Sites:    []Marketplace{MarketplaceYahooAuctions, MarketplaceRakuten},
			},
		},
		{
			name:     "no keywords",
			criteria: SearchCriteria{Sites: []Marketplace{MarketplaceMercari}},
			wantErr:  true,
		},
		{
			name:     "blank keywords only",
			criteria: SearchCriteria{Keywords: []string{"  ", ""}, Sites: []Marketplace{MarketplaceMercari}},
			wantErr:  true,
		},
		{
			name:     "no sites",
			criteria: SearchCriteria{Keywords: []string{"ps5"}},
			wantErr:  true,
		},
		{
			name:     "unknown site",
			criteria: SearchCriteria{Keywords: []string{"ps5"}, Sites: []Marketplace{"ebay"}},
			wantErr:  true,
		},
		{
			name: "min above max",
			criteria: SearchCriteria{
				Keywords:      []string{"ps5"},
				MinPriceMinor: ptr(9000),
				MaxPriceMinor: ptr(100),
				Sites:         []Marketplace{MarketplaceMercari},
			},
			wantErr: true,
		},
		{
			name: "negative min",
			criteria: SearchCriteria{
				Keywords:      []string{"ps5"},
				MinPriceMinor: ptr(-1),
				Sites:         []Marketplace{MarketplaceMercari},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.criteria.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSearchCriteria_Matches(t *testing.T) {
	criteria := SearchCriteria{
		Keywords:      []string{"Nikon", "F3"},
		MinPriceMinor: ptr(10000),
		MaxPriceMinor: ptr(80000),
		Sites:         []Marketplace{MarketplaceYahooAuctions},
	}

	base := Listing{
		Site:       MarketplaceYahooAuctions,
		ExternalID: "a1",
		Title:      "Nikon F3 HP body",
		PriceMinor: 45000,
		URL:        "https://auctions.yahoo.co.jp/item/a1",
	}

	tests := []struct {
		name   string
		mutate func(l *Listing)
		want   bool
	}{
		{name: "matches", mutate: func(l *Listing) {}, want: true},
		{name: "keyword match is case-insensitive", mutate: func(l *Listing) { l.Title = "NIKON f3 body" }, want: true},
		{name: "missing keyword", mutate: func(l *Listing) { l.Title = "Nikon F2 body" }, want: false},
		{name: "below min price", mutate: func(l *Listing) { l.PriceMinor = 9999 }, want: false},
		{name: "above max price", mutate: func(l *Listing) { l.PriceMinor = 80001 }, want: false},
		{name: "boundary prices included", mutate: func(l *Listing) { l.PriceMinor = 10000 }, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := base
			tt.mutate(&l)
			assert.Equal(t, tt.want, criteria.Matches(&l))
		})
	}
}

func TestSavedSearch_Knows(t *testing.T) {
	known := ListingKey{Site: MarketplaceMercari, ExternalID: "m1"}
	search := SavedSearch{
		ID:   1,
		Name: "ps5 deals",
		Criteria: SearchCriteria{
			Keywords: []string{"ps5"},
			Sites:    []Marketplace{MarketplaceMercari},
		},
		KnownListingIDs: map[ListingKey]struct{}{known: {}},
	}

	assert.True(t, search.Knows(known))
	assert.False(t, search.Knows(ListingKey{Site: MarketplaceMercari, ExternalID: "m2"}))
	assert.False(t, search.Knows(ListingKey{Site: MarketplaceRakuten, ExternalID: "m1"}))
}

func TestSavedSearch_KnowsNilSnapshot(t *testing.T) {
	var search SavedSearch
	assert.False(t, search.Knows(ListingKey{Site: MarketplaceMercari, ExternalID: "m1"}))
}

func TestSavedSearch_Validate(t *testing.T) {
	now := time.Now()
	search := SavedSearch{
		ID:                   1,
		Name:                 "film cameras",
		NotificationsEnabled: true,
		LastCycleAt:          &now,
		Criteria: SearchCriteria{
			Keywords: []string{"camera"},
			Sites:    []Marketplace{MarketplaceRakuten},
		},
	}
	assert.NoError(t, search.Validate())

	search.Name = "   "
	assert.Error(t, search.Validate())
}
