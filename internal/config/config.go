package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters; components receive
// the sub-struct they need at construction time and never read the environment
// themselves.
type Config struct {
	Port      string
	Env       string
	JWTSecret string

	DB      DatabaseConfig
	Redis   RedisConfig
	Sheets  SheetsConfig
	Routes  RoutesConfig
	Pricing PricingConfig
	Archive ArchiveConfig
	Worker  WorkerConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// SheetsConfig points at the external tabular pricing configuration source.
type SheetsConfig struct {
	BaseURL       string
	SpreadsheetID string
	APIKey        string
}

// RoutesConfig contains the external distance API parameters. Timeout bounds
// a single upstream call so one slow response cannot blow the quote budget.
type RoutesConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// PricingConfig contains quoting engine policy knobs.
type PricingConfig struct {
	DistanceTTL   time.Duration // distance cache entry lifetime
	MaxCatalogAge time.Duration // 0 disables the staleness check
}

// ArchiveConfig contains the optional S3 snapshot archive settings.
// The archive is disabled when AccessKeyID is empty.
type ArchiveConfig struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	SyncInterval time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Pricing configuration source
	cfg.Sheets = SheetsConfig{
		BaseURL:       getEnv("SHEETS_BASE_URL", "https://sheets.googleapis.com"),
		SpreadsheetID: getEnv("SHEETS_SPREADSHEET_ID", ""),
		APIKey:        getEnv("SHEETS_API_KEY", ""),
	}

	// Distance API
	cfg.Routes = RoutesConfig{
		BaseURL: getEnv("ROUTES_BASE_URL", "https://maps.googleapis.com/maps/api"),
		APIKey:  getEnv("ROUTES_API_KEY", ""),
	}

	// Snapshot archive (optional)
	cfg.Archive = ArchiveConfig{
		Region:          getEnv("ARCHIVE_S3_REGION", "us-east-1"),
		Bucket:          getEnv("ARCHIVE_S3_BUCKET", ""),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	// Durations
	var err error
	if cfg.Routes.Timeout, err = parseDurationEnv("ROUTES_TIMEOUT", "250ms"); err != nil {
		return nil, fmt.Errorf("invalid ROUTES_TIMEOUT: %w", err)
	}
	if cfg.Pricing.DistanceTTL, err = parseDurationEnv("DISTANCE_CACHE_TTL", "24h"); err != nil {
		return nil, fmt.Errorf("invalid DISTANCE_CACHE_TTL: %w", err)
	}
	if cfg.Pricing.MaxCatalogAge, err = parseDurationEnv("PRICING_MAX_CATALOG_AGE", "0s"); err != nil {
		return nil, fmt.Errorf("invalid PRICING_MAX_CATALOG_AGE: %w", err)
	}
	if cfg.Worker.SyncInterval, err = parseDurationEnv("SYNC_INTERVAL", "5m"); err != nil {
		return nil, fmt.Errorf("invalid SYNC_INTERVAL: %w", err)
	}

	// Basic validation — keeps messages concise and helpful.
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}
	if cfg.Sheets.SpreadsheetID == "" {
		return nil, errors.New("SHEETS_SPREADSHEET_ID must be set for catalog sync")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set for authentication")
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
