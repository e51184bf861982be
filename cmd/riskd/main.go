// riskd - Transaction risk scoring with an immutable audit trail.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/secureflow/riskd/internal/api"
	"github.com/secureflow/riskd/internal/bus"
	"github.com/secureflow/riskd/internal/cache"
	"github.com/secureflow/riskd/internal/domain"
	"github.com/secureflow/riskd/internal/history"
	"github.com/secureflow/riskd/internal/ledger"
	"github.com/secureflow/riskd/internal/realtime"
	"github.com/secureflow/riskd/internal/repository"
	"github.com/secureflow/riskd/internal/risk"
	"github.com/secureflow/riskd/internal/rules"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Optional .env for local development. Missing file is fine.
	_ = godotenv.Load()

	cfg := domain.ConfigFromEnv()

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("starting riskd",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"ledger_enabled", cfg.Ledger.RPCURL != "",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Rule Engine
	engine, err := rules.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	// Load rules from database (no hardcoded defaults - configure via API)
	if err := loadRulesFromDatabase(ctx, repo, engine); err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	// Initialize scoring pipeline over repository-backed history
	historyStore := history.NewRepoStore(repo, logger)
	pipeline := risk.NewPipeline(historyStore, logger,
		risk.WithRules(engine),
		risk.WithAddressCache(cacheImpl))
	slog.Info("scoring pipeline initialized")

	// Initialize Ledger and submission worker
	ledgerImpl, err := ledger.New(cfg.Ledger)
	if err != nil {
		slog.Error("failed to initialize ledger", "error", err)
		os.Exit(1)
	}
	defer ledgerImpl.Close()

	ledgerWorker := ledger.NewWorker(busImpl, ledgerImpl, logger)
	if err := ledgerWorker.Start(); err != nil {
		slog.Error("failed to start ledger worker", "error", err)
		os.Exit(1)
	}
	slog.Info("ledger worker started", "enabled", ledgerImpl.Enabled())

	// Initialize realtime hub
	hub := realtime.NewHub(logger)
	go hub.Run(ctx)
	if err := hub.AttachBus(ctx, busImpl); err != nil {
		slog.Error("failed to attach realtime hub to bus", "error", err)
		os.Exit(1)
	}
	slog.Info("realtime hub started")

	// Initialize Server
	srv := api.NewServer(cfg.Server, pipeline, repo, cacheImpl, busImpl, engine, hub, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("riskd is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	ledgerWorker.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("riskd shutdown complete")
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// loadRulesFromDatabase loads rules from the database into the engine.
// All rules must be configured via POST /api/rules - no hardcoded defaults.
func loadRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *rules.Engine) error {
	dbRules, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		slog.Warn("failed to list rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no rules in database - configure via POST /api/rules")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Printf("  riskd %s\n", version)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /api/predict           - Score a transaction")
	fmt.Println("    GET    /api/predictions/{id}  - Get prediction by ID")
	fmt.Println("    GET    /api/transactions      - List recent transactions")
	fmt.Println("    GET    /api/transactions/{id} - Get transaction by ID")
	fmt.Println("    GET    /api/rules             - List custom rules")
	fmt.Println("    POST   /api/rules             - Create a custom rule")
	fmt.Println("    DELETE /api/rules/{id}        - Delete a custom rule")
	fmt.Println("    POST   /api/rules/reload      - Hot-reload rules from database")
	fmt.Println("    GET    /ws/alerts             - Realtime alert stream")
	fmt.Println("    GET    /metrics               - Prometheus metrics")
	fmt.Println("    GET    /health                - Health check")
	fmt.Println()
}
