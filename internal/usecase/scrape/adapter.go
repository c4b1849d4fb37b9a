// Package scrape provides the site adapter contract and the per-search
// orchestration of concurrent marketplace fetches.
package scrape

import (
	"context"

	"market-watch/internal/domain/entity"
)

// SiteAdapter is the single capability every marketplace implements: fetch raw
// results for a criteria and return normalized listings. Implementations apply
// criteria filters server-side where the site supports it; the orchestrator
// re-filters client-side regardless, so adapters may over-return.
//
// Static-page adapters are stateless and safe for concurrent use. Browser-driven
// adapters hold a live session and rely on their gate to bound concurrency.
// All implementations must respect context cancellation; in-flight requests are
// aborted when the cycle is cancelled.
type SiteAdapter interface {
	// Site returns the marketplace this adapter serves.
	Site() entity.Marketplace

	// Fetch runs one search against the site, draining pagination up to
	// pageLimit pages. Reaching the limit is not an error. Failures are
	// reported as *AdapterError with the kind set.
	Fetch(ctx context.Context, criteria entity.SearchCriteria, pageLimit int) ([]entity.Listing, error)
}
