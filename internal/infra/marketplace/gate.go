package marketplace

import (
	"context"
	"fmt"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"market-watch/internal/domain/entity"
	"market-watch/internal/observability/metrics"
	"market-watch/internal/resilience/circuitbreaker"
	"market-watch/internal/usecase/scrape"
)

// Gate wraps a SiteAdapter with the site's pacing rules: a token bucket
// rate limiter, an in-flight semaphore, and a circuit breaker that
// trips after five consecutive failed fetches. An open breaker rejects
// the fetch immediately with ErrorKindCircuitOpen so the cycle moves on
// without touching the site.
type Gate struct {
	inner   scrape.SiteAdapter
	limiter *rate.Limiter
	slots   chan struct{}
	breaker *circuitbreaker.CircuitBreaker
}

// NewGate wraps adapter with the given settings.
func NewGate(adapter scrape.SiteAdapter, settings GateSettings) *Gate {
	maxConcurrent := settings.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	cbCfg := circuitbreaker.MarketplaceConfig(string(adapter.Site()))
	if settings.BreakerCooldown > 0 {
		cbCfg.Timeout = settings.BreakerCooldown
	}

	return &Gate{
		inner:   adapter,
		limiter: rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), settings.Burst),
		slots:   make(chan struct{}, maxConcurrent),
		breaker: circuitbreaker.New(cbCfg),
	}
}

// Site implements scrape.SiteAdapter.
func (g *Gate) Site() entity.Marketplace {
	return g.inner.Site()
}

// Fetch implements scrape.SiteAdapter.
func (g *Gate) Fetch(ctx context.Context, criteria entity.SearchCriteria, pageLimit int) ([]entity.Listing, error) {
	// Reject before waiting on pacing when the breaker is open; pacing
	// tokens are too scarce to burn on a rejected call.
	if g.breaker.IsOpen() {
		g.publishBreakerState()
		return nil, scrape.NewAdapterError(g.Site(), scrape.ErrorKindCircuitOpen, gobreaker.ErrOpenState)
	}

	select {
	case g.slots <- struct{}{}:
		defer func() { <-g.slots }()
	case <-ctx.Done():
		return nil, scrape.NewAdapterError(g.Site(), scrape.ErrorKindTimeout,
			fmt.Errorf("waiting for fetch slot: %w", ctx.Err()))
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, scrape.NewAdapterError(g.Site(), scrape.ErrorKindTimeout,
			fmt.Errorf("waiting for rate limit: %w", err))
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Fetch(ctx, criteria, pageLimit)
	})
	g.publishBreakerState()

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, scrape.NewAdapterError(g.Site(), scrape.ErrorKindCircuitOpen, err)
		}
		return nil, err
	}

	listings, _ := result.([]entity.Listing)
	return listings, nil
}

// BreakerState exposes the circuit state for the status endpoint.
func (g *Gate) BreakerState() gobreaker.State {
	return g.breaker.State()
}

func (g *Gate) publishBreakerState() {
	metrics.SetCircuitBreakerState(string(g.Site()), int(g.breaker.State()))
}
