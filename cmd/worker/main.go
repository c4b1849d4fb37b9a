package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"market-watch/internal/handler/http/admin"
	"market-watch/internal/infra/adapter/persistence/postgres"
	sqliteRepo "market-watch/internal/infra/adapter/persistence/sqlite"
	"market-watch/internal/infra/db"
	"market-watch/internal/infra/marketplace"
	"market-watch/internal/infra/notifier"
	workerPkg "market-watch/internal/infra/worker"
	"market-watch/internal/observability/logging"
	"market-watch/internal/observability/tracing"
	"market-watch/internal/repository"
	"market-watch/internal/scheduler"
	"market-watch/internal/usecase/dedup"
	"market-watch/internal/usecase/monitor"
	"market-watch/internal/usecase/notify"
	"market-watch/internal/usecase/scrape"
	"market-watch/pkg/config"
)

func main() {
	// Local development keeps its settings in .env; absence is normal in
	// production.
	_ = godotenv.Load()

	logger := logging.NewLogger()
	slog.SetDefault(logger)

	tracerShutdown := tracing.InitTracer()

	cfg := workerPkg.LoadConfigFromEnv()
	logger.Info("worker configuration loaded",
		slog.Duration("cycle_interval", cfg.CycleInterval),
		slog.Duration("cycle_timeout", cfg.CycleTimeout),
		slog.Int("global_concurrency", cfg.GlobalConcurrency),
		slog.Int("page_limit", cfg.PageLimit),
		slog.Int("notify_max_concurrent", cfg.NotifyMaxConcurrent),
		slog.Int("health_port", cfg.HealthPort),
		slog.Int("admin_port", cfg.AdminPort))

	database, err := db.Open()
	if err != nil {
		// The persistence gateway is the one dependency the worker cannot
		// start without.
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	driver := db.DriverFromEnv()
	if err := db.MigrateUp(database, driver); err != nil {
		logger.Error("failed to migrate schema", slog.Any("error", err))
		os.Exit(1)
	}

	searchRepo, feedRepo := buildRepositories(driver, database)

	notifyService := buildNotifyService(logger, cfg.NotifyMaxConcurrent)

	factory, orchestrator := buildScrapePipeline(logger, cfg)
	defer factory.Close()

	engine := dedup.NewEngine(searchRepo, feedRepo)
	monitorService := monitor.NewService(searchRepo, orchestrator, engine, notifyService,
		monitor.Config{GlobalConcurrency: cfg.GlobalConcurrency})

	sched := scheduler.New(&pruningRunner{
		inner:     monitorService,
		feed:      feedRepo,
		retention: cfg.FeedRetention,
	}, scheduler.Config{
		Interval:     cfg.CycleInterval,
		CycleTimeout: cfg.CycleTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startMetricsServer(ctx, logger, notifyService)

	healthServer := workerPkg.NewHealthServer(fmt.Sprintf(":%d", cfg.HealthPort))
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	adminServer := startAdminServer(ctx, logger, cfg.AdminPort, sched, notifyService, factory.BreakerStates)

	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	healthServer.SetReady(true)
	logger.Info("worker started")

	waitForShutdown(logger)
	healthServer.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler stop failed", slog.Any("error", err))
	}
	if notifyService != nil {
		if err := notifyService.Shutdown(shutdownCtx); err != nil {
			logger.Error("notification shutdown failed", slog.Any("error", err))
		}
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", slog.Any("error", err))
	}
	cancel()
	if err := tracerShutdown(shutdownCtx); err != nil {
		logger.Error("tracer shutdown failed", slog.Any("error", err))
	}
	logger.Info("worker stopped")
}

// buildRepositories picks the persistence backend for the configured driver.
func buildRepositories(driver string, database *sql.DB) (repository.SavedSearchRepository, repository.FeedRepository) {
	if driver == db.DriverSQLite {
		return sqliteRepo.NewSavedSearchRepo(database), sqliteRepo.NewFeedRepo(database)
	}
	return postgres.NewSavedSearchRepo(database), postgres.NewFeedRepo(database)
}

// buildNotifyService assembles the configured notification channels. Returns
// nil when every channel is disabled so the cycle skips dispatch entirely.
func buildNotifyService(logger *slog.Logger, maxConcurrent int) notify.Service {
	var channels []notify.Channel

	webhookCfg := notifier.WebhookConfig{
		Enabled:    config.GetEnvBool("WEBHOOK_ENABLED", false),
		WebhookURL: os.Getenv("WEBHOOK_URL"),
		Timeout:    config.GetEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
	}
	if webhookCfg.Enabled && webhookCfg.WebhookURL == "" {
		logger.Warn("WEBHOOK_ENABLED set without WEBHOOK_URL, webhook channel disabled")
		webhookCfg.Enabled = false
	}
	if webhookCfg.Enabled {
		channels = append(channels, notify.NewWebhookChannel(webhookCfg))
		logger.Info("webhook channel enabled")
	}

	desktopCfg := notifier.DesktopConfig{
		Enabled: config.GetEnvBool("DESKTOP_NOTIFY_ENABLED", false),
		Command: config.GetEnvString("DESKTOP_NOTIFY_COMMAND", ""),
	}
	if desktopCfg.Enabled {
		channels = append(channels, notify.NewDesktopChannel(desktopCfg))
		logger.Info("desktop channel enabled")
	}

	if len(channels) == 0 {
		logger.Info("no notification channels configured")
		return nil
	}
	return notify.NewService(channels, maxConcurrent)
}

// buildScrapePipeline wires the gated site adapters into the orchestrator.
func buildScrapePipeline(logger *slog.Logger, cfg workerPkg.Config) (*marketplace.AdapterFactory, *scrape.Orchestrator) {
	sitesCfg, err := marketplace.LoadConfig(cfg.SitesConfigFile)
	if err != nil {
		logger.Warn("failed to load sites config, using defaults",
			slog.String("path", cfg.SitesConfigFile),
			slog.Any("error", err))
		sitesCfg = marketplace.DefaultConfig()
	}

	factory := marketplace.NewAdapterFactory(createScrapeHTTPClient(), sitesCfg, marketplace.MercariConfig{
		Headless:          config.GetEnvBool("MERCARI_HEADLESS", true),
		NavigationTimeout: config.GetEnvDuration("MERCARI_NAVIGATION_TIMEOUT", 90*time.Second),
	})
	adapters := factory.CreateAdapters()
	logger.Info("marketplace adapters initialized", slog.Int("count", len(adapters)))

	orchestrator := scrape.NewOrchestrator(adapters, scrape.Config{
		AdapterTimeout: cfg.AdapterTimeout,
		PageLimit:      cfg.PageLimit,
	})
	return factory, orchestrator
}

// createScrapeHTTPClient builds the HTTP client shared by the static-HTML
// adapters. TLS 1.2+ is enforced.
func createScrapeHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// startAdminServer serves the operator endpoints on their own port.
func startAdminServer(ctx context.Context, logger *slog.Logger, port int, sched admin.Scheduler, notifyService notify.Service, breakers func() map[string]string) *http.Server {
	mux := http.NewServeMux()
	admin.NewHandler(sched, notifyService, breakers).Register(mux)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("admin server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	return server
}

func waitForShutdown(logger *slog.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))
}

// pruningRunner wraps the cycle service and prunes expired feed entries
// after each cycle.
type pruningRunner struct {
	inner     *monitor.Service
	feed      repository.FeedRepository
	retention time.Duration
}

func (r *pruningRunner) RunCycle(ctx context.Context) (*monitor.CycleStats, error) {
	stats, err := r.inner.RunCycle(ctx)
	if err != nil {
		return stats, err
	}

	cutoff := time.Now().Add(-r.retention)
	removed, pruneErr := r.feed.Prune(ctx, cutoff)
	if pruneErr != nil {
		// Retention is housekeeping; a failed prune never fails the cycle.
		slog.Warn("failed to prune feed entries", slog.Any("error", pruneErr))
		return stats, nil
	}
	if removed > 0 {
		slog.Info("pruned expired feed entries",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff))
	}
	return stats, nil
}
