// Package dedup decides which listings of a scrape cycle are genuinely new for
// a saved search and advances the search's snapshot through the persistence
// gateway.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"market-watch/internal/domain/entity"
	"market-watch/internal/observability/metrics"
	"market-watch/internal/repository"
	"market-watch/internal/usecase/scrape"
)

// Diff computes the novelty of a merged listing set against a known-identity
// snapshot. Identity is (site, externalID) exactly: price or title edits on a
// known listing never count as new, so relisted or edited items do not
// re-trigger notifications.
//
// Diff is pure: it never mutates its inputs, and running it twice over the
// same inputs yields the same result. New listings come back sorted by
// ascending price; ties keep a deterministic order by listing key.
type Diff struct {
	// NewListings are the merged listings whose identity was not in the
	// snapshot, ordered by ascending PriceMinor.
	NewListings []entity.Listing
	// UpdatedKnownIDs is the snapshot union'd with every identity seen this
	// cycle.
	UpdatedKnownIDs map[entity.ListingKey]struct{}
}

// Compute runs the dedup algorithm over one cycle's merged listings.
func Compute(known map[entity.ListingKey]struct{}, merged []entity.Listing) Diff {
	updated := make(map[entity.ListingKey]struct{}, len(known)+len(merged))
	for k := range known {
		updated[k] = struct{}{}
	}

	var fresh []entity.Listing
	seen := make(map[entity.ListingKey]struct{}, len(merged))
	for _, l := range merged {
		key := l.Key()
		if _, dup := seen[key]; dup {
			continue // same listing surfaced twice within one cycle
		}
		seen[key] = struct{}{}

		if _, ok := known[key]; !ok {
			fresh = append(fresh, l)
		}
		updated[key] = struct{}{}
	}

	sort.SliceStable(fresh, func(i, j int) bool {
		if fresh[i].PriceMinor != fresh[j].PriceMinor {
			return fresh[i].PriceMinor < fresh[j].PriceMinor
		}
		return fresh[i].Key().String() < fresh[j].Key().String()
	})

	return Diff{NewListings: fresh, UpdatedKnownIDs: updated}
}

// Engine applies Compute to a saved search and commits the outcome through the
// persistence gateway.
type Engine struct {
	searches repository.SavedSearchRepository
	feed     repository.FeedRepository
}

// NewEngine creates a dedup engine over the given repositories.
func NewEngine(searches repository.SavedSearchRepository, feed repository.FeedRepository) *Engine {
	return &Engine{searches: searches, feed: feed}
}

// Process evaluates one cycle result for a saved search and, when at least one
// adapter succeeded, commits the advanced snapshot and appends the new
// listings to the feed. An all-failed result carries no information: the
// snapshot and lastCycleAt stay untouched and no listings are reported.
//
// A search deleted mid-cycle (entity.ErrNotFound from the gateway) is
// abandoned silently.
func (e *Engine) Process(ctx context.Context, search *entity.SavedSearch, result *scrape.CycleResult) ([]entity.Listing, error) {
	if result.AllFailed() {
		slog.Warn("all adapters failed, keeping snapshot untouched",
			slog.Int64("saved_search_id", search.ID),
			slog.Int("adapters", len(result.Outcomes)))
		return nil, nil
	}

	diff := Compute(search.KnownListingIDs, result.Listings)
	cycleAt := result.StartedAt

	if err := e.searches.UpdateSnapshot(ctx, search.ID, diff.UpdatedKnownIDs, cycleAt); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			slog.Info("saved search deleted mid-cycle, abandoning update",
				slog.Int64("saved_search_id", search.ID))
			return nil, nil
		}
		return nil, fmt.Errorf("update snapshot for search %d: %w", search.ID, err)
	}

	if len(diff.NewListings) > 0 {
		if err := e.feed.AppendEntries(ctx, search.ID, diff.NewListings, cycleAt); err != nil {
			// The snapshot already advanced; the feed is best-effort and the
			// notification path still sees the new listings.
			slog.Warn("failed to append feed entries",
				slog.Int64("saved_search_id", search.ID),
				slog.Int("listings", len(diff.NewListings)),
				slog.Any("error", err))
		}
	}

	recordNewBySite(diff.NewListings)
	metrics.UpdateSnapshotSize(search.ID, len(diff.UpdatedKnownIDs))

	slog.Info("dedup completed",
		slog.Int64("saved_search_id", search.ID),
		slog.Int("merged", len(result.Listings)),
		slog.Int("new", len(diff.NewListings)),
		slog.Int("known_after", len(diff.UpdatedKnownIDs)))

	return diff.NewListings, nil
}

func recordNewBySite(listings []entity.Listing) {
	bySite := make(map[entity.Marketplace]int)
	for _, l := range listings {
		bySite[l.Site]++
	}
	for site, n := range bySite {
		metrics.RecordNewListings(string(site), n)
	}
}
