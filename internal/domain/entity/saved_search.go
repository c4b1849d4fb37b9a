package entity

import (
	"strings"
	"time"
)

// SearchCriteria is the immutable query part of a saved search: keywords,
// optional price bounds (minor units) and the set of marketplaces to query.
type SearchCriteria struct {
	Keywords      []string      `json:"keywords"`
	MinPriceMinor *int64        `json:"min_price_minor,omitempty"`
	MaxPriceMinor *int64        `json:"max_price_minor,omitempty"`
	Sites         []Marketplace `json:"sites"`
}

// Validate checks the criteria invariants: at least one keyword, a non-empty
// set of known marketplaces, and min <= max when both bounds are present.
func (c SearchCriteria) Validate() error {
	hasKeyword := false
	for _, kw := range c.Keywords {
		if strings.TrimSpace(kw) != "" {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return &ValidationError{Field: "Keywords", Message: "at least one non-empty keyword required"}
	}
	if len(c.Sites) == 0 {
		return &ValidationError{Field: "Sites", Message: "at least one marketplace required"}
	}
	for _, site := range c.Sites {
		if !site.Valid() {
			return &ValidationError{Field: "Sites", Message: "unknown marketplace " + string(site)}
		}
	}
	if c.MinPriceMinor != nil && *c.MinPriceMinor < 0 {
		return &ValidationError{Field: "MinPriceMinor", Message: "must not be negative"}
	}
	if c.MinPriceMinor != nil && c.MaxPriceMinor != nil && *c.MinPriceMinor > *c.MaxPriceMinor {
		return &ValidationError{Field: "MinPriceMinor", Message: "must not exceed MaxPriceMinor"}
	}
	return nil
}

// Matches reports whether a listing satisfies the criteria. Sites are expected
// to apply filters server-side, but they ignore or approximate parameters often
// enough that every adapter result is re-checked here.
func (c SearchCriteria) Matches(l *Listing) bool {
	if c.MinPriceMinor != nil && l.PriceMinor < *c.MinPriceMinor {
		return false
	}
	if c.MaxPriceMinor != nil && l.PriceMinor > *c.MaxPriceMinor {
		return false
	}
	title := strings.ToLower(l.Title)
	for _, kw := range c.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if !strings.Contains(title, kw) {
			return false
		}
	}
	return true
}

// IncludesSite reports whether the criteria enable the given marketplace.
func (c SearchCriteria) IncludesSite(m Marketplace) bool {
	for _, site := range c.Sites {
		if site == m {
			return true
		}
	}
	return false
}

// SavedSearch is a persisted query a user wants monitored repeatedly. The
// monitoring core never creates or deletes saved searches; it only advances
// KnownListingIDs and LastCycleAt at the end of a successful cycle.
type SavedSearch struct {
	ID                   int64
	Name                 string
	Criteria             SearchCriteria
	NotificationsEnabled bool
	// KnownListingIDs is the dedup snapshot: every listing identity seen as of
	// the last completed cycle for this search.
	KnownListingIDs map[ListingKey]struct{}
	LastCycleAt     *time.Time
}

// Knows reports whether the listing identity was already seen.
func (s *SavedSearch) Knows(key ListingKey) bool {
	_, ok := s.KnownListingIDs[key]
	return ok
}

// Validate validates a SavedSearch entity.
func (s *SavedSearch) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return &ValidationError{Field: "Name", Message: "must not be empty"}
	}
	return s.Criteria.Validate()
}
