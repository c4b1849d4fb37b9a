// Package marketplace implements the site adapters that turn a search
// criteria into normalized listings. Yahoo Auctions and Rakuten are
// static HTML adapters built on goquery; Mercari renders client-side
// behind aggressive anti-bot defenses and is driven through a headless
// browser. Every adapter is wrapped in a Gate that paces requests,
// bounds in-flight fetches and trips a circuit breaker on repeated
// failures.
package marketplace

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"market-watch/internal/domain/entity"
)

// GateSettings controls the pacing applied to one site.
type GateSettings struct {
	// RequestsPerSecond is the sustained fetch rate for the site.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the token bucket burst capacity.
	Burst int `yaml:"burst"`

	// MaxConcurrent bounds in-flight fetches against the site.
	MaxConcurrent int `yaml:"max_concurrent"`

	// BreakerCooldown is how long the circuit stays open after tripping.
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// Config holds per-site gate settings.
type Config struct {
	Sites map[entity.Marketplace]GateSettings `yaml:"sites"`
}

// DefaultConfig returns the built-in pacing. Yahoo Auctions wants at
// least three seconds between requests, Rakuten tolerates one request
// per second, and Mercari gets one slow browser session at a time.
func DefaultConfig() Config {
	return Config{
		Sites: map[entity.Marketplace]GateSettings{
			entity.MarketplaceYahooAuctions: {
				RequestsPerSecond: 1.0 / 3.0,
				Burst:             1,
				MaxConcurrent:     2,
				BreakerCooldown:   10 * time.Minute,
			},
			entity.MarketplaceRakuten: {
				RequestsPerSecond: 1.0,
				Burst:             2,
				MaxConcurrent:     2,
				BreakerCooldown:   10 * time.Minute,
			},
			entity.MarketplaceMercari: {
				RequestsPerSecond: 0.2,
				Burst:             1,
				MaxConcurrent:     1,
				BreakerCooldown:   15 * time.Minute,
			},
		},
	}
}

// LoadConfig returns the default config, overlaid with the YAML file at
// path when it is non-empty. Sites absent from the file keep their
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return Config{}, fmt.Errorf("read sites config %s: %w", path, err)
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Config{}, fmt.Errorf("parse sites config %s: %w", path, err)
	}

	for site, settings := range overlay.Sites {
		if !site.Valid() {
			return Config{}, fmt.Errorf("sites config %s: unknown marketplace %q", path, site)
		}
		merged := cfg.Sites[site]
		if settings.RequestsPerSecond > 0 {
			merged.RequestsPerSecond = settings.RequestsPerSecond
		}
		if settings.Burst > 0 {
			merged.Burst = settings.Burst
		}
		if settings.MaxConcurrent > 0 {
			merged.MaxConcurrent = settings.MaxConcurrent
		}
		if settings.BreakerCooldown > 0 {
			merged.BreakerCooldown = settings.BreakerCooldown
		}
		cfg.Sites[site] = merged
	}

	return cfg, nil
}

// Settings returns the gate settings for a site, falling back to the
// Yahoo Auctions defaults for sites missing from the map.
func (c Config) Settings(site entity.Marketplace) GateSettings {
	if s, ok := c.Sites[site]; ok {
		return s
	}
	return DefaultConfig().Sites[entity.MarketplaceYahooAuctions]
}
