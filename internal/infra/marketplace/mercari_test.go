package marketplace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-watch/internal/domain/entity"
)

func TestMercariAdapter_SearchURL(t *testing.T) {
	adapter := NewMercariAdapter(DefaultMercariConfig())

	minPrice, maxPrice := int64(1000), int64(5000)
	criteria := criteriaFor("super", "takumar")
	criteria.MinPriceMinor = &minPrice
	criteria.MaxPriceMinor = &maxPrice

	u := adapter.searchURL(criteria)
	assert.Contains(t, u, "https://jp.mercari.com/search?")
	assert.Contains(t, u, "keyword=super+takumar")
	assert.Contains(t, u, "status=on_sale")
	assert.Contains(t, u, "price_min=1000")
	assert.Contains(t, u, "price_max=5000")
	assert.Contains(t, u, "sort=created_time")
}

func TestMercariAdapter_ToListings(t *testing.T) {
	adapter := NewMercariAdapter(DefaultMercariConfig())

	items := []mercariItem{
		{Href: "/item/m90123", Title: "Super Takumar 55mm", Price: "¥4,200", Image: "https://img.example.com/m90123.jpg"},
		{Href: "https://jp.mercari.com/item/m90124", Title: "Jupiter-8", Price: "9,000円"},
		{Href: "/item/m90125", Title: "", Price: "100"},        // no title
		{Href: "", Title: "orphan", Price: "100"},              // no link
		{Href: "/item/m90126", Title: "broken", Price: "SOLD"}, // no digits
	}

	listings := adapter.toListings(items)
	require.Len(t, listings, 2)

	assert.Equal(t, entity.MarketplaceMercari, listings[0].Site)
	assert.Equal(t, "m90123", listings[0].ExternalID)
	assert.Equal(t, "https://jp.mercari.com/item/m90123", listings[0].URL)
	assert.Equal(t, int64(4200), listings[0].PriceMinor)
	assert.Equal(t, "JPY", listings[0].Currency)
	assert.False(t, listings[0].FetchedAt.IsZero(), "listings are stamped at fetch time")

	assert.Equal(t, "m90124", listings[1].ExternalID)
	assert.Equal(t, int64(9000), listings[1].PriceMinor)
}

func TestExternalIDFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://jp.mercari.com/item/m123", "m123"},
		{"https://auctions.yahoo.co.jp/jp/auction/x456", "x456"},
		{"https://item.rakuten.co.jp/shop/789/", "789"},
		{"https://example.com", "https://example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, externalIDFromURL(tt.url), "url %s", tt.url)
	}
}
