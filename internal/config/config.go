package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Warehouse backends
const (
	BackendBigQuery = "bigquery"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// ErrMissingTable is returned when no target table identifier is configured
var ErrMissingTable = errors.New("BIGQUERY_TABLE_ID is not set")

// Config holds all configuration for evalboard
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Warehouse WarehouseConfig
	Database  DatabaseConfig
	Fixtures  FixturesConfig
	Redis     RedisConfig
	Cache     CacheConfig
	CodeFetch CodeFetchConfig
	Static    StaticConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string
	Port int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// WarehouseConfig identifies the evaluation table and how to reach it
type WarehouseConfig struct {
	Backend         string
	ProjectID       string
	TableID         string
	Location        string
	CredentialsFile string
	QueryTimeout    time.Duration
}

// DatabaseConfig holds PostgreSQL configuration for the postgres backend
type DatabaseConfig struct {
	DSN           string
	MaxConns      int
	MigrationsDir string
}

// FixturesConfig holds the YAML fixtures location for the memory backend
type FixturesConfig struct {
	Dir string
}

// RedisConfig holds Redis configuration. An empty address disables caching.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// CacheConfig holds response cache configuration
type CacheConfig struct {
	TTL          time.Duration
	WarmInterval time.Duration
}

// CodeFetchConfig holds source proxy configuration
type CodeFetchConfig struct {
	Timeout  time.Duration
	MaxBytes int64
}

// StaticConfig holds dashboard asset configuration
type StaticConfig struct {
	Dir string
}

// Load loads configuration from an optional .env file and environment variables
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded, using process environment", "error", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", getEnvAsInt("PORT", 8080)),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Warehouse: WarehouseConfig{
			Backend:         strings.ToLower(getEnv("WAREHOUSE_BACKEND", BackendBigQuery)),
			ProjectID:       getEnv("PROJECT_ID", ""),
			TableID:         getEnv("BIGQUERY_TABLE_ID", ""),
			Location:        getEnv("BIGQUERY_LOCATION", ""),
			CredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
			QueryTimeout:    getEnvAsDuration("QUERY_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			DSN:           getEnv("DATABASE_DSN", ""),
			MaxConns:      getEnvAsInt("DATABASE_MAX_CONNS", 10),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		},
		Fixtures: FixturesConfig{
			Dir: getEnv("FIXTURES_DIR", ""),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			TTL:          getEnvAsDuration("CACHE_TTL", 5*time.Minute),
			WarmInterval: getEnvAsDuration("CACHE_WARM_INTERVAL", 0),
		},
		CodeFetch: CodeFetchConfig{
			Timeout:  getEnvAsDuration("CODE_FETCH_TIMEOUT", 10*time.Second),
			MaxBytes: int64(getEnvAsInt("CODE_FETCH_MAX_BYTES", 2<<20)),
		},
		Static: StaticConfig{
			Dir: getEnv("STATIC_DIR", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Warehouse.TableID == "" {
		return ErrMissingTable
	}
	if strings.Contains(c.Warehouse.TableID, "your-project") {
		return fmt.Errorf("BIGQUERY_TABLE_ID still holds the placeholder value %q", c.Warehouse.TableID)
	}

	switch c.Warehouse.Backend {
	case BackendBigQuery:
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for the %s backend", BackendPostgres)
		}
	case BackendMemory:
		if c.Fixtures.Dir == "" {
			return fmt.Errorf("FIXTURES_DIR is required for the %s backend", BackendMemory)
		}
	default:
		return fmt.Errorf("unknown warehouse backend: %q", c.Warehouse.Backend)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative: %s", c.Cache.TTL)
	}

	return nil
}

// SlogLevel maps the configured level name onto a slog level
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
