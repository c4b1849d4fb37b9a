// Package worker holds the long-running process plumbing: environment
// configuration and the health endpoint served next to the metrics port.
package worker

import (
	"fmt"
	"log/slog"
	"time"

	"market-watch/pkg/config"
)

// Config holds the worker's operational settings. Every field has a safe
// default; invalid environment values fall back to the default with a
// warning instead of refusing to start.
type Config struct {
	// CycleInterval is the fixed delay between scheduled cycle starts.
	CycleInterval time.Duration

	// CycleTimeout bounds one full scrape cycle end to end. Kept below the
	// interval so a stuck cycle cannot starve the next one.
	CycleTimeout time.Duration

	// GlobalConcurrency bounds how many saved searches run in parallel.
	GlobalConcurrency int

	// PageLimit caps result pages drained per adapter fetch.
	PageLimit int

	// AdapterTimeout bounds one adapter fetch, pagination included.
	AdapterTimeout time.Duration

	// NotifyMaxConcurrent bounds in-flight notification deliveries.
	NotifyMaxConcurrent int

	// HealthPort serves the liveness and readiness probes.
	HealthPort int

	// AdminPort serves the operator endpoints (cycle trigger and status).
	AdminPort int

	// FeedRetention is how long new-items feed entries are kept before the
	// cycle prunes them.
	FeedRetention time.Duration

	// SitesConfigFile optionally points at a YAML file overriding the
	// per-site pacing defaults. Empty means built-in defaults.
	SitesConfigFile string
}

// DefaultConfig returns production defaults: a 30-minute cadence with room
// for slow headless-browser fetches.
func DefaultConfig() Config {
	return Config{
		CycleInterval:       30 * time.Minute,
		CycleTimeout:        25 * time.Minute,
		GlobalConcurrency:   4,
		PageLimit:           3,
		AdapterTimeout:      2 * time.Minute,
		NotifyMaxConcurrent: 10,
		HealthPort:          9091,
		AdminPort:           8081,
		FeedRetention:       30 * 24 * time.Hour,
		SitesConfigFile:     "",
	}
}

// Validate checks the ranges a running worker depends on.
func (c *Config) Validate() error {
	if err := config.ValidateDurationRange(c.CycleInterval, time.Minute, 24*time.Hour); err != nil {
		return fmt.Errorf("cycle interval: %w", err)
	}
	if err := config.ValidatePositiveDuration(c.CycleTimeout); err != nil {
		return fmt.Errorf("cycle timeout: %w", err)
	}
	if c.CycleTimeout >= c.CycleInterval {
		return fmt.Errorf("cycle timeout %v must be shorter than the interval %v", c.CycleTimeout, c.CycleInterval)
	}
	if c.GlobalConcurrency < 1 || c.GlobalConcurrency > 32 {
		return fmt.Errorf("global concurrency %d out of range [1,32]", c.GlobalConcurrency)
	}
	if c.PageLimit < 1 || c.PageLimit > 20 {
		return fmt.Errorf("page limit %d out of range [1,20]", c.PageLimit)
	}
	if err := config.ValidatePositiveDuration(c.AdapterTimeout); err != nil {
		return fmt.Errorf("adapter timeout: %w", err)
	}
	if c.NotifyMaxConcurrent < 1 || c.NotifyMaxConcurrent > 50 {
		return fmt.Errorf("notify max concurrent %d out of range [1,50]", c.NotifyMaxConcurrent)
	}
	if c.HealthPort < 1024 || c.HealthPort > 65535 {
		return fmt.Errorf("health port %d out of range [1024,65535]", c.HealthPort)
	}
	if c.AdminPort < 1024 || c.AdminPort > 65535 {
		return fmt.Errorf("admin port %d out of range [1024,65535]", c.AdminPort)
	}
	if err := config.ValidatePositiveDuration(c.FeedRetention); err != nil {
		return fmt.Errorf("feed retention: %w", err)
	}
	return nil
}

// LoadConfigFromEnv reads the worker configuration from environment
// variables, falling back to defaults for unset or unparseable values. A
// configuration that parses but fails Validate falls back wholesale to
// DefaultConfig so the worker always starts with a known-good setup.
func LoadConfigFromEnv() Config {
	defaults := DefaultConfig()

	cfg := Config{
		CycleInterval:       config.GetEnvDuration("CYCLE_INTERVAL", defaults.CycleInterval),
		CycleTimeout:        config.GetEnvDuration("CYCLE_TIMEOUT", defaults.CycleTimeout),
		GlobalConcurrency:   config.GetEnvInt("CYCLE_MAX_CONCURRENT", defaults.GlobalConcurrency),
		PageLimit:           config.GetEnvInt("SCRAPE_PAGE_LIMIT", defaults.PageLimit),
		AdapterTimeout:      config.GetEnvDuration("SCRAPE_ADAPTER_TIMEOUT", defaults.AdapterTimeout),
		NotifyMaxConcurrent: config.GetEnvInt("NOTIFY_MAX_CONCURRENT", defaults.NotifyMaxConcurrent),
		HealthPort:          config.GetEnvInt("WORKER_HEALTH_PORT", defaults.HealthPort),
		AdminPort:           config.GetEnvInt("ADMIN_PORT", defaults.AdminPort),
		FeedRetention:       config.GetEnvDuration("FEED_RETENTION", defaults.FeedRetention),
		SitesConfigFile:     config.GetEnvString("SITES_CONFIG_FILE", defaults.SitesConfigFile),
	}

	if err := cfg.Validate(); err != nil {
		// Fail open: a worker with default settings beats no worker at all.
		slog.Warn("invalid worker configuration, using defaults",
			slog.Any("error", err))
		return defaults
	}
	return cfg
}
