// Command scraper runs the media-monitoring scraping core as a long-lived
// service: the HTTP API and the scheduler tick loop share one store,
// governor, and coordinator.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mediawatch/internal/api"
	"mediawatch/internal/config"
	"mediawatch/internal/coordinator"
	"mediawatch/internal/dedup"
	"mediawatch/internal/extractor"
	"mediawatch/internal/httpclient"
	"mediawatch/internal/orchestrator"
	"mediawatch/internal/provider"
	"mediawatch/internal/rategovernor"
	"mediawatch/internal/recipe"
	"mediawatch/internal/relevance"
	"mediawatch/internal/scheduler"
	"mediawatch/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	st := store.NewSQLite(db)
	recipes := recipe.New(db)

	governor := rategovernor.New(rategovernor.Config{
		HTMLRPS:          cfg.RateHTMLRPS,
		APIRPS:           cfg.RateAPIRPS,
		RSSRPS:           cfg.RateRSSRPS,
		MaxConcurrent:    16,
		CircuitThreshold: cfg.CircuitThreshold,
		CircuitCooldown:  cfg.CircuitCooldown,
	})

	governedAPIDoer := rategovernor.NewGovernedDoer(http.DefaultClient, governor, httpclient.ProfileAPI)
	htmlClient := httpclient.New(rategovernor.NewGovernedDoer(http.DefaultClient, governor, httpclient.ProfileHTML))
	apiClient := httpclient.New(governedAPIDoer)
	rssClient := httpclient.New(rategovernor.NewGovernedDoer(http.DefaultClient, governor, httpclient.ProfileRSS))

	ex := extractor.New([]extractor.Transport{
		extractor.PersistentBrowserTransport,
		extractor.PerURLBrowserTransport,
		extractor.FastHeadlessTransport,
		extractor.NewHTTPTransport(htmlClient),
	}, log)

	var providers []provider.Provider
	if cfg.ProvidersEnabled.RSS {
		providers = append(providers, provider.NewRSS(rssClient, recipes, log))
	}
	if cfg.ProvidersEnabled.Configurable {
		providers = append(providers, provider.NewConfigurable(htmlClient, recipes, ex, log))
	}
	if cfg.ProvidersEnabled.GNews {
		providers = append(providers, provider.NewGNews(apiClient, cfg.GNewsAPIKey, firstOr(cfg.DefaultLanguages, "en")))
	}
	if cfg.ProvidersEnabled.SerpAPI {
		providers = append(providers, provider.NewSerpAPI(apiClient, cfg.SerpAPIKey, firstOr(cfg.DefaultLanguages, "en"), "us"))
	}

	var relevanceFilter *relevance.Filter
	if cfg.RelevanceFilterEnabled() {
		relevanceFilter = relevance.New(governedAPIDoer, cfg.RelevanceKey, cfg.RelevanceModel, log)
	}

	dedupCfg := dedup.NearDuplicateConfig{Threshold: cfg.FuzzyDedupThreshold, DayWindow: cfg.FuzzyDedupDayWindow}
	if !cfg.FuzzyDedupEnabled {
		dedupCfg.Threshold = 100
	}

	orch := orchestrator.New(providers, dedupCfg, relevanceFilter, log)
	coord := coordinator.New(st, orch, dedupCfg, log)

	budgets := orchestrator.Budgets{
		MaxKeywordsPerRun:  cfg.MaxKeywordsPerRun,
		MaxTotalURLsPerRun: cfg.MaxTotalURLsPerRun,
		RunBudget:          cfg.RunBudget,
	}

	sched := scheduler.New(st, coord, budgets, log)
	server := api.New(st, coord, budgets, log)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting scraper", "listen_addr", cfg.ListenAddr)

	go sched.Run(ctx)

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown", "error", err)
	}

	log.Info("scraper stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func firstOr(values []string, def string) string {
	if len(values) > 0 {
		return values[0]
	}
	return def
}
