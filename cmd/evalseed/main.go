package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/terra-clan/evalboard/internal/config"
	"github.com/terra-clan/evalboard/internal/services"
	"github.com/terra-clan/evalboard/internal/storage"
)

func main() {
	fixturesDir := flag.String("fixtures", "", "directory of YAML fixture files (defaults to FIXTURES_DIR)")
	truncate := flag.Bool("truncate", false, "remove existing rows before seeding")
	skipMigrations := flag.Bool("skip-migrations", false, "do not run schema migrations")
	purgeCache := flag.Bool("purge-cache", true, "purge the redis response cache after seeding")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.Database.DSN == "" {
		slog.Error("DATABASE_DSN is required to seed")
		os.Exit(1)
	}

	dir := *fixturesDir
	if dir == "" {
		dir = cfg.Fixtures.Dir
	}
	if dir == "" {
		slog.Error("no fixtures directory given", "hint", "pass -fixtures or set FIXTURES_DIR")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	table := cfg.Warehouse.TableID

	if !*skipMigrations {
		slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir, "table", table)
		if err := storage.MigrateFromDSN(ctx, cfg.Database.DSN, cfg.Database.MigrationsDir, table); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
	}

	records, err := storage.LoadFixturesFromDir(dir)
	if err != nil {
		slog.Error("failed to load fixtures", "dir", dir, "error", err)
		os.Exit(1)
	}

	seeder, err := storage.NewSeeder(ctx, cfg.Database.DSN, table)
	if err != nil {
		slog.Error("failed to connect seeder", "error", err)
		os.Exit(1)
	}
	defer seeder.Close()

	n, err := seeder.Seed(ctx, records, *truncate)
	if err != nil {
		slog.Error("failed to seed", "error", err)
		os.Exit(1)
	}

	if *purgeCache && cfg.Redis.Address != "" {
		purgeResponseCache(ctx, cfg)
	}

	slog.Info("seed complete", "records", n, "table", table)
}

// purgeResponseCache drops cached query results so the server sees the new rows
func purgeResponseCache(ctx context.Context, cfg *config.Config) {
	cache, err := services.NewRedisCache(ctx, services.RedisConfig{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		slog.Warn("redis unavailable, cache not purged", "error", err)
		return
	}
	defer cache.Close()

	if _, err := cache.Purge(ctx); err != nil {
		slog.Warn("failed to purge cache", "error", err)
	}
}
