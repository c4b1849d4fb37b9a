package marketplace

import (
	"net/http"

	"market-watch/internal/domain/entity"
	"market-watch/internal/usecase/scrape"
)

// AdapterFactory creates gated site adapters with consistent pacing
// configuration.
type AdapterFactory struct {
	client     *http.Client
	cfg        Config
	mercariCfg MercariConfig

	mercari *MercariAdapter
	gates   []*Gate
}

// NewAdapterFactory creates a factory. The HTTP client should carry the
// fetch timeout; the browser session has its own.
func NewAdapterFactory(client *http.Client, cfg Config, mercariCfg MercariConfig) *AdapterFactory {
	return &AdapterFactory{
		client:     client,
		cfg:        cfg,
		mercariCfg: mercariCfg,
	}
}

// CreateAdapters returns one gated adapter per supported marketplace.
// The slice order follows entity.AllMarketplaces.
func (f *AdapterFactory) CreateAdapters() []scrape.SiteAdapter {
	f.mercari = NewMercariAdapter(f.mercariCfg)

	adapters := map[entity.Marketplace]scrape.SiteAdapter{
		entity.MarketplaceYahooAuctions: NewYahooAuctionsAdapter(f.client),
		entity.MarketplaceRakuten:       NewRakutenAdapter(f.client),
		entity.MarketplaceMercari:       f.mercari,
	}

	f.gates = f.gates[:0]
	gated := make([]scrape.SiteAdapter, 0, len(adapters))
	for _, site := range entity.AllMarketplaces() {
		gate := NewGate(adapters[site], f.cfg.Settings(site))
		f.gates = append(f.gates, gate)
		gated = append(gated, gate)
	}
	return gated
}

// BreakerStates reports each site's circuit state for the status endpoint.
func (f *AdapterFactory) BreakerStates() map[string]string {
	states := make(map[string]string, len(f.gates))
	for _, gate := range f.gates {
		states[string(gate.Site())] = gate.BreakerState().String()
	}
	return states
}

// Close releases resources held by browser-driven adapters.
func (f *AdapterFactory) Close() {
	if f.mercari != nil {
		f.mercari.Close()
	}
}
