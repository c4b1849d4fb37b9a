// Package monitor runs one full scrape cycle: every monitored saved search is
// scraped, deduplicated and committed, and the genuinely new listings are
// handed to the notification dispatcher.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"market-watch/internal/domain/entity"
	"market-watch/internal/observability/metrics"
	"market-watch/internal/observability/tracing"
	"market-watch/internal/repository"
	"market-watch/internal/usecase/notify"
	"market-watch/internal/usecase/scrape"
)

// Config holds cycle-wide settings.
type Config struct {
	// GlobalConcurrency bounds how many saved searches are processed in
	// parallel. The per-site gates still bound in-flight fetches per
	// marketplace below this.
	GlobalConcurrency int
}

// DefaultConfig returns cycle settings suitable for a handful of searches.
func DefaultConfig() Config {
	return Config{GlobalConcurrency: 4}
}

// Orchestrator runs the fan-out scrape for one saved search.
type Orchestrator interface {
	Run(ctx context.Context, search *entity.SavedSearch) *scrape.CycleResult
}

// Deduper commits one cycle result and reports the genuinely new listings.
type Deduper interface {
	Process(ctx context.Context, search *entity.SavedSearch, result *scrape.CycleResult) ([]entity.Listing, error)
}

// CycleStats summarizes one full cycle across all saved searches.
type CycleStats struct {
	Searches    int
	Succeeded   int64
	AllFailed   int64
	Errored     int64
	Listings    int64
	NewListings int64
	Notified    int64
	StartedAt   time.Time
	Duration    time.Duration
}

// Status reduces the stats to a single cycle outcome label.
func (s *CycleStats) Status() string {
	switch {
	case s.Searches == 0:
		return "empty"
	case s.Errored > 0 || int(s.AllFailed) == s.Searches:
		return "error"
	case s.AllFailed > 0:
		return "partial"
	default:
		return "success"
	}
}

// Service wires the scrape orchestrator, the dedup engine and the
// notification dispatcher into one cycle over all monitored searches.
type Service struct {
	searches     repository.SavedSearchRepository
	orchestrator Orchestrator
	deduper      Deduper
	notifier     notify.Service
	cfg          Config
}

// NewService creates the cycle service. notifier may be nil when no
// notification channel is configured.
func NewService(
	searches repository.SavedSearchRepository,
	orchestrator Orchestrator,
	deduper Deduper,
	notifier notify.Service,
	cfg Config,
) *Service {
	if cfg.GlobalConcurrency <= 0 {
		cfg.GlobalConcurrency = DefaultConfig().GlobalConcurrency
	}
	return &Service{
		searches:     searches,
		orchestrator: orchestrator,
		deduper:      deduper,
		notifier:     notifier,
		cfg:          cfg,
	}
}

// RunCycle processes every monitored saved search once. Searches run
// concurrently under the global budget; one search failing never aborts the
// others. The returned stats are complete even when the context is cancelled
// mid-cycle, covering whatever finished before the cancellation.
func (s *Service) RunCycle(ctx context.Context) (*CycleStats, error) {
	ctx, span := tracing.GetTracer().Start(ctx, "monitor.cycle")
	defer span.End()

	stats := &CycleStats{StartedAt: time.Now()}

	searches, err := s.searches.ListMonitored(ctx)
	if err != nil {
		metrics.RecordCycleRun("error", time.Since(stats.StartedAt))
		return nil, fmt.Errorf("list monitored searches: %w", err)
	}
	stats.Searches = len(searches)

	if len(searches) == 0 {
		stats.Duration = time.Since(stats.StartedAt)
		metrics.RecordCycleRun(stats.Status(), stats.Duration)
		slog.Info("no saved searches to monitor")
		return stats, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.GlobalConcurrency)

	for _, search := range searches {
		eg.Go(func() error {
			s.processSearch(egCtx, search, stats)
			// Search failures are contained; only cancellation stops the group.
			return egCtx.Err()
		})
	}
	groupErr := eg.Wait()

	stats.Duration = time.Since(stats.StartedAt)
	metrics.RecordCycleRun(stats.Status(), stats.Duration)

	slog.Info("cycle completed",
		slog.String("status", stats.Status()),
		slog.Int("searches", stats.Searches),
		slog.Int64("succeeded", stats.Succeeded),
		slog.Int64("all_failed", stats.AllFailed),
		slog.Int64("errored", stats.Errored),
		slog.Int64("listings", stats.Listings),
		slog.Int64("new_listings", stats.NewListings),
		slog.Int64("notified", stats.Notified),
		slog.Duration("duration", stats.Duration))

	if groupErr != nil {
		return stats, fmt.Errorf("cycle cancelled: %w", groupErr)
	}
	return stats, nil
}

// processSearch runs scrape, dedup and notification for one saved search,
// updating the shared stats atomically.
func (s *Service) processSearch(ctx context.Context, search *entity.SavedSearch, stats *CycleStats) {
	result := s.orchestrator.Run(ctx, search)
	atomic.AddInt64(&stats.Listings, int64(len(result.Listings)))

	fresh, err := s.deduper.Process(ctx, search, result)
	if err != nil {
		atomic.AddInt64(&stats.Errored, 1)
		slog.Error("failed to commit cycle result",
			slog.Int64("saved_search_id", search.ID),
			slog.String("search_name", search.Name),
			slog.Any("error", err))
		return
	}
	metrics.RecordSearchProcessed()

	if result.AllFailed() {
		atomic.AddInt64(&stats.AllFailed, 1)
		return
	}
	atomic.AddInt64(&stats.Succeeded, 1)
	atomic.AddInt64(&stats.NewListings, int64(len(fresh)))

	if len(fresh) == 0 || !search.NotificationsEnabled || s.notifier == nil {
		return
	}

	event := &notify.NotificationEvent{
		SavedSearchID: search.ID,
		SearchName:    search.Name,
		NewListings:   fresh,
		CycleAt:       result.StartedAt,
	}
	if err := s.notifier.NotifyNewListings(ctx, event); err != nil {
		// Dispatch is fire-and-forget; an error here means the event never
		// entered the pool. The next cycle's event supersedes it.
		slog.Warn("failed to dispatch notification event",
			slog.Int64("saved_search_id", search.ID),
			slog.Any("error", err))
		return
	}
	atomic.AddInt64(&stats.Notified, 1)
}
