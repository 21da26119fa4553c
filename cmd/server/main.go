// Package main is the entrypoint for the contractlens API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/contractlens/internal/ai"
	"github.com/kiranshivaraju/contractlens/internal/analysis"
	"github.com/kiranshivaraju/contractlens/internal/api"
	"github.com/kiranshivaraju/contractlens/internal/api/handler"
	mw "github.com/kiranshivaraju/contractlens/internal/api/middleware"
	"github.com/kiranshivaraju/contractlens/internal/api/response"
	"github.com/kiranshivaraju/contractlens/internal/cache"
	"github.com/kiranshivaraju/contractlens/internal/config"
	"github.com/kiranshivaraju/contractlens/internal/prompt"
	"github.com/kiranshivaraju/contractlens/internal/storage"
	"github.com/kiranshivaraju/contractlens/internal/store"
	"github.com/kiranshivaraju/contractlens/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init(logger.Config{Level: "info", Format: "json"})

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast when it is invalid
	if err := config.LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	slog.Info("config loaded",
		"ai_provider", cfg.AI.Provider,
		"draft_providers", cfg.AI.DraftProviders,
		"store", cfg.Database.Driver,
		"env", cfg.Server.Env,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Open the document store
	st, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Open the cache
	statusCache, err := openCache(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer statusCache.Close()

	// 4. Object storage for uploaded originals (optional)
	var objects storage.ObjectStore
	if cfg.Storage.Enabled() {
		minioStore, err := storage.NewMinIOStore(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("create object storage: %w", err)
		}
		objects = minioStore
		slog.Info("object storage connected", "bucket", cfg.Storage.Bucket)
	}

	// 5. Create AI providers
	providers, err := ai.NewProviders(ctx, cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI providers: %w", err)
	}
	slog.Info("AI providers initialized",
		"analysis", providers.Analysis.Name(),
		"drafting", []string{providers.Drafting[0].Name(), providers.Drafting[1].Name()},
	)

	// 6. Build services
	prompts, err := prompt.Default()
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}
	mode, err := analysis.ParseMode(cfg.AI.FindingsMode)
	if err != nil {
		return err
	}
	policy, err := ai.ParseJoinPolicy(cfg.AI.DraftJoinPolicy)
	if err != nil {
		return err
	}
	opts := ai.AnalysisOptions{
		Timeout:         cfg.AI.InferenceTimeout,
		MaxContentBytes: cfg.AI.MaxContentBytes,
		Mode:            mode,
	}

	dispatcher := ai.NewDispatcher()
	analysisSvc := ai.NewAnalysisService(providers.Analysis, prompts, st, statusCache, objects, dispatcher, opts)
	drafter := ai.NewDrafter(providers.Drafting, prompts, policy, cfg.AI.InferenceTimeout)
	contractSvc := ai.NewContractService(providers.Analysis, drafter, prompts, st, statusCache, opts)

	reconciler := ai.NewReconciler(st, statusCache, cfg.Analysis.StaleAfter, cfg.Analysis.SweepInterval)
	go reconciler.Run(ctx)

	// 7. Build router with dependencies
	limits := handler.Limits{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		MaxJSONBytes:   cfg.Server.MaxJSONBytes,
	}
	deps := api.Dependencies{
		Auth:           mw.NewAuth(cfg.Auth),
		RateLimit:      mw.NewRateLimit(statusCache, cfg.Server.RateLimitPerMinute),
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,

		HealthHandler: healthHandler(st, statusCache),
		Documents:     handler.NewDocuments(analysisSvc, limits),
		Contracts:     handler.NewContracts(contractSvc, limits),
		Drafts:        handler.NewDrafts(contractSvc, limits),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server. Drafting waits on two providers, so the write
	// timeout sits above the inference timeout.
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AI.InferenceTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := shutdown(shutdownCtx, srv, dispatcher); err != nil {
		return err
	}

	slog.Info("server stopped gracefully")
	return nil
}

// shutdown stops accepting requests, then drains in-flight analyses. The
// dispatcher is drained even when the HTTP server fails to close cleanly.
func shutdown(ctx context.Context, srv *http.Server, dispatcher *ai.Dispatcher) error {
	srvErr := srv.Shutdown(ctx)
	if srvErr != nil {
		srvErr = fmt.Errorf("server shutdown: %w", srvErr)
	}
	dispatchErr := dispatcher.Shutdown(ctx)
	if dispatchErr != nil {
		slog.Warn("background analyses cancelled before completion", "error", dispatchErr)
		dispatchErr = fmt.Errorf("drain analyses: %w", dispatchErr)
	}
	return errors.Join(srvErr, dispatchErr)
}

// openStore returns the store selected by STORE_DRIVER and a func releasing it.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, func(), error) {
	if cfg.Driver == "memory" {
		slog.Warn("using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}

	pool, err := store.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.URL, cfg.MigrationsDir); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	return store.NewPostgresStore(pool), pool.Close, nil
}

// openCache connects to Redis, or returns an in-process cache when no
// REDIS_URL is configured.
func openCache(ctx context.Context, cfg config.RedisConfig) (cache.Cache, error) {
	if cfg.URL == "" {
		slog.Warn("using in-memory cache; draft sessions are lost on restart")
		return cache.NewMemoryCache(), nil
	}

	redisCache, err := cache.NewRedisCache(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("create redis cache: %w", err)
	}
	if err := redisCache.Ping(ctx); err != nil {
		redisCache.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")
	return redisCache, nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
