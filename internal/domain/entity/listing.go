// Package entity defines the core domain entities and validation logic for the
// application. It contains the fundamental business objects such as Listing and
// SavedSearch, along with their validation rules and domain-specific errors.
package entity

import (
	"fmt"
	"strings"
	"time"
)

// Marketplace identifies a supported marketplace site.
type Marketplace string

// Supported marketplaces.
const (
	MarketplaceYahooAuctions Marketplace = "yahoo_auctions"
	MarketplaceRakuten       Marketplace = "rakuten"
	MarketplaceMercari       Marketplace = "mercari"
)

// AllMarketplaces lists every supported marketplace in a stable order.
func AllMarketplaces() []Marketplace {
	return []Marketplace{MarketplaceYahooAuctions, MarketplaceRakuten, MarketplaceMercari}
}

// Valid reports whether m is a known marketplace.
func (m Marketplace) Valid() bool {
	switch m {
	case MarketplaceYahooAuctions, MarketplaceRakuten, MarketplaceMercari:
		return true
	}
	return false
}

// ParseMarketplace converts a string into a Marketplace.
func ParseMarketplace(s string) (Marketplace, error) {
	m := Marketplace(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown marketplace %q", ErrInvalidInput, s)
	}
	return m, nil
}

// ListingKey is the cross-cycle identity of a listing: the marketplace plus the
// site-native identifier. Identity, not content, determines whether two cycles
// saw the same listing.
type ListingKey struct {
	Site       Marketplace
	ExternalID string
}

// String returns the storage form "site:external_id".
func (k ListingKey) String() string {
	return string(k.Site) + ":" + k.ExternalID
}

// ParseListingKey parses the storage form produced by String.
func ParseListingKey(s string) (ListingKey, error) {
	site, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return ListingKey{}, fmt.Errorf("%w: malformed listing key %q", ErrInvalidInput, s)
	}
	m, err := ParseMarketplace(site)
	if err != nil {
		return ListingKey{}, err
	}
	return ListingKey{Site: m, ExternalID: id}, nil
}

// Listing is a single normalized marketplace result item.
// PriceMinor is in the smallest currency unit so comparisons never go through
// floating point.
type Listing struct {
	Site       Marketplace
	ExternalID string
	Title      string
	PriceMinor int64
	Currency   string
	URL        string
	ImageURL   string
	FetchedAt  time.Time
}

// Key returns the cross-cycle identity of the listing.
func (l *Listing) Key() ListingKey {
	return ListingKey{Site: l.Site, ExternalID: l.ExternalID}
}

// Validate checks the fields every adapter must populate. Adapters that cannot
// find a site-native identifier fall back to the normalized URL before this
// point, so an empty ExternalID is always a bug.
func (l *Listing) Validate() error {
	if !l.Site.Valid() {
		return &ValidationError{Field: "Site", Message: fmt.Sprintf("unknown marketplace %q", l.Site)}
	}
	if l.ExternalID == "" {
		return &ValidationError{Field: "ExternalID", Message: "must not be empty"}
	}
	if l.Title == "" {
		return &ValidationError{Field: "Title", Message: "must not be empty"}
	}
	if l.PriceMinor < 0 {
		return &ValidationError{Field: "PriceMinor", Message: "must not be negative"}
	}
	if l.URL == "" {
		return &ValidationError{Field: "URL", Message: "must not be empty"}
	}
	return nil
}
