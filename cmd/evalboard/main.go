package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/evalboard/internal/api"
	"github.com/terra-clan/evalboard/internal/codefetch"
	"github.com/terra-clan/evalboard/internal/config"
	"github.com/terra-clan/evalboard/internal/evaluations"
	"github.com/terra-clan/evalboard/internal/metrics"
	"github.com/terra-clan/evalboard/internal/services"
	"github.com/terra-clan/evalboard/internal/storage"
	"github.com/terra-clan/evalboard/web"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("starting evalboard",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"backend", cfg.Warehouse.Backend,
		"table", cfg.Warehouse.TableID,
	)

	metrics.Init()

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	repo, err := openRepository(initCtx, cfg)
	if err != nil {
		slog.Error("failed to open warehouse", "backend", cfg.Warehouse.Backend, "error", err)
		os.Exit(1)
	}
	slog.Info("warehouse connected", "backend", cfg.Warehouse.Backend)

	// Readiness checks
	registry := services.NewRegistry()
	registry.Register("warehouse", services.CheckFunc(repo.Ping))

	var opts []evaluations.Option
	var cache *services.RedisCache
	if cfg.Redis.Address != "" {
		cache, err = services.NewRedisCache(initCtx, services.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			// The cache is optional; serve straight from the warehouse
			slog.Warn("redis unavailable, caching disabled", "address", cfg.Redis.Address, "error", err)
		} else {
			registry.Register("redis", cache)
			opts = append(opts, evaluations.WithCache(cache))
			slog.Info("response cache enabled", "address", cfg.Redis.Address, "ttl", cfg.Cache.TTL)
		}
	}

	service := evaluations.NewService(repo, opts...)
	fetcher := codefetch.New(cfg.CodeFetch.Timeout, codefetch.WithMaxBytes(cfg.CodeFetch.MaxBytes))

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start cache warmer
	if cache != nil && cfg.Cache.WarmInterval > 0 {
		evaluations.NewWarmer(service, cfg.Cache.WarmInterval).Start(ctx)
	}

	// Setup HTTP server
	server := api.NewServer(cfg.Warehouse, service, fetcher, registry, staticAssets(cfg.Static.Dir))
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal; SIGHUP reloads fixtures on the memory backend
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	exitCode := waitForShutdown(serverErr, quit, func() {
		reloadFixtures(ctx, repo, service, cfg.Fixtures.Dir)
	})

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if cache != nil {
		if err := cache.Close(); err != nil {
			slog.Error("redis close error", "error", err)
		}
	}

	if err := repo.Close(); err != nil {
		slog.Error("warehouse close error", "error", err)
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
	slog.Info("evalboard stopped")
}

// openRepository connects the configured warehouse backend
func openRepository(ctx context.Context, cfg *config.Config) (storage.Repository, error) {
	switch cfg.Warehouse.Backend {
	case config.BackendPostgres:
		return storage.NewPostgresRepository(ctx, storage.PostgresConfig{
			DSN:      cfg.Database.DSN,
			Table:    cfg.Warehouse.TableID,
			MaxConns: int32(cfg.Database.MaxConns),
		})
	case config.BackendMemory:
		records, err := storage.LoadFixturesFromDir(cfg.Fixtures.Dir)
		if err != nil {
			return nil, err
		}
		slog.Info("fixtures loaded", "dir", cfg.Fixtures.Dir, "records", len(records))
		return storage.NewMemoryRepository(records), nil
	default:
		return storage.NewBigQueryRepository(ctx, storage.BigQueryConfig{
			ProjectID:       cfg.Warehouse.ProjectID,
			TableID:         cfg.Warehouse.TableID,
			Location:        cfg.Warehouse.Location,
			CredentialsFile: cfg.Warehouse.CredentialsFile,
			QueryTimeout:    cfg.Warehouse.QueryTimeout,
		})
	}
}

// waitForShutdown blocks until a stop signal or a server error and returns the
// process exit code. SIGHUP runs reload and keeps waiting.
func waitForShutdown(serverErr <-chan error, signals <-chan os.Signal, reload func()) int {
	for {
		select {
		case err := <-serverErr:
			slog.Error("HTTP server error", "error", err)
			return 1
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				reload()
				continue
			}
			return 0
		}
	}
}

// reloadFixtures re-reads the fixture directory into the memory backend and
// refreshes the cached top levels
func reloadFixtures(ctx context.Context, repo storage.Repository, service *evaluations.Service, dir string) {
	mem, ok := repo.(*storage.MemoryRepository)
	if !ok {
		slog.Info("ignoring SIGHUP, warehouse has no fixtures to reload")
		return
	}

	n, err := mem.ReloadFromDir(dir)
	if err != nil {
		slog.Error("fixture reload failed, keeping current records", "dir", dir, "error", err)
		return
	}
	slog.Info("fixtures reloaded", "dir", dir, "records", n)

	if _, err := service.Refresh(ctx); err != nil {
		slog.Warn("cache refresh after reload failed", "error", err)
	}
}

// staticAssets prefers an on-disk directory over the embedded dashboard
func staticAssets(dir string) fs.FS {
	if dir == "" {
		return web.Assets()
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		slog.Warn("static dir not usable, serving embedded dashboard", "dir", dir, "error", err)
		return web.Assets()
	}
	return os.DirFS(dir)
}
