package scrape

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"market-watch/internal/domain/entity"
	"market-watch/internal/observability/metrics"
	"market-watch/internal/observability/tracing"
)

// Config holds orchestration settings for a single saved search.
type Config struct {
	// AdapterTimeout bounds a single adapter fetch, pagination included.
	AdapterTimeout time.Duration
	// PageLimit caps how many result pages an adapter drains per fetch.
	PageLimit int
}

// DefaultConfig returns orchestration settings suitable for the default
// marketplace set.
func DefaultConfig() Config {
	return Config{
		AdapterTimeout: 2 * time.Minute,
		PageLimit:      3,
	}
}

// Orchestrator fans one saved search out to its selected site adapters,
// merges the listings that survive client-side filtering and records a
// per-adapter outcome. A failing adapter never aborts the others: partial
// failure is normal operation, not exceptional.
type Orchestrator struct {
	adapters map[entity.Marketplace]SiteAdapter
	cfg      Config
}

// NewOrchestrator creates an Orchestrator over the given adapters.
func NewOrchestrator(adapters []SiteAdapter, cfg Config) *Orchestrator {
	bySite := make(map[entity.Marketplace]SiteAdapter, len(adapters))
	for _, a := range adapters {
		bySite[a.Site()] = a
	}
	return &Orchestrator{adapters: bySite, cfg: cfg}
}

// Run executes one scrape of a saved search: one concurrent fetch per enabled
// marketplace, each with its own timeout. The returned result always carries
// one outcome per selected site, success or failure.
func (o *Orchestrator) Run(ctx context.Context, search *entity.SavedSearch) *CycleResult {
	result := &CycleResult{
		SavedSearchID: search.ID,
		StartedAt:     time.Now(),
	}

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)

	for _, site := range search.Criteria.Sites {
		adapter, ok := o.adapters[site]
		if !ok {
			slog.Warn("no adapter registered for marketplace, skipping",
				slog.String("site", string(site)),
				slog.Int64("saved_search_id", search.ID))
			mu.Lock()
			result.Outcomes = append(result.Outcomes, AdapterOutcome{
				Site: site, Err: ErrNoAdapter, ErrorKind: ErrorKindNetwork,
			})
			mu.Unlock()
			continue
		}

		eg.Go(func() error {
			outcome := o.fetchOne(egCtx, adapter, search)
			mu.Lock()
			if !outcome.Failed() {
				result.Listings = append(result.Listings, outcome.listings...)
			}
			result.Outcomes = append(result.Outcomes, outcome.AdapterOutcome)
			mu.Unlock()
			// Adapter failures are contained here; only cancellation stops the group.
			return egCtx.Err()
		})
	}

	// The only error the group can return is the context's, which the caller
	// observes through ctx anyway.
	_ = eg.Wait()

	return result
}

// fetchResult pairs an outcome with the filtered listings backing it.
type fetchResult struct {
	AdapterOutcome
	listings []entity.Listing
}

func (o *Orchestrator) fetchOne(ctx context.Context, adapter SiteAdapter, search *entity.SavedSearch) fetchResult {
	site := adapter.Site()

	fetchCtx, cancel := context.WithTimeout(ctx, o.cfg.AdapterTimeout)
	defer cancel()

	fetchCtx, span := tracing.GetTracer().Start(fetchCtx, "adapter.fetch")
	defer span.End()

	start := time.Now()
	listings, err := adapter.Fetch(fetchCtx, search.Criteria, o.cfg.PageLimit)
	duration := time.Since(start)

	if err != nil {
		kind := KindOf(err)
		metrics.RecordAdapterError(string(site), string(kind))
		logAdapterFailure(site, search.ID, kind, duration, err)
		return fetchResult{AdapterOutcome: AdapterOutcome{Site: site, Err: err, ErrorKind: kind}}
	}

	kept := o.filterListings(listings, search)
	metrics.RecordAdapterFetch(string(site), duration, len(kept))

	slog.Info("adapter fetch completed",
		slog.String("site", string(site)),
		slog.Int64("saved_search_id", search.ID),
		slog.Int("listings", len(kept)),
		slog.Int("dropped_by_filter", len(listings)-len(kept)),
		slog.Duration("duration", duration))

	return fetchResult{
		AdapterOutcome: AdapterOutcome{Site: site, Listings: len(kept)},
		listings:       kept,
	}
}

// filterListings defensively re-applies the search criteria and drops listings
// that fail validation. Sites routinely ignore or approximate filter
// parameters, so server-side filtering is never trusted.
func (o *Orchestrator) filterListings(listings []entity.Listing, search *entity.SavedSearch) []entity.Listing {
	kept := make([]entity.Listing, 0, len(listings))
	for _, l := range listings {
		if err := l.Validate(); err != nil {
			slog.Warn("dropping invalid listing",
				slog.String("site", string(l.Site)),
				slog.String("url", l.URL),
				slog.Any("error", err))
			continue
		}
		if !search.Criteria.Matches(&l) {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

func logAdapterFailure(site entity.Marketplace, searchID int64, kind ErrorKind, duration time.Duration, err error) {
	attrs := []any{
		slog.String("site", string(site)),
		slog.Int64("saved_search_id", searchID),
		slog.String("kind", string(kind)),
		slog.Duration("duration", duration),
		slog.Any("error", err),
	}
	switch kind {
	case ErrorKindParse:
		// Markup drift means the adapter needs maintenance; keep this loud.
		slog.Error("adapter parse failure, adapter likely needs maintenance", attrs...)
	case ErrorKindCircuitOpen:
		slog.Warn("adapter skipped, circuit breaker open", attrs...)
	default:
		slog.Warn("adapter fetch failed", attrs...)
	}
}
