package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	// Database
	DatabaseURL string

	// JWT
	JWTSecret string

	// Background Workers
	WorkerCount int

	// CORS
	AllowedOrigins []string

	// Sentry
	SentryDSN string

	// Catalog cache (Redis)
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CatalogCacheTTL time.Duration

	// External services
	CatalogBaseURL   string
	CatalogToken     string
	LedgerBaseURL    string
	LedgerToken      string
	AuthorityBaseURL string
	AuthorityToken   string
	HTTPTimeout      time.Duration

	// Reconciliation
	ReconcileTolerance int64
	ReconcileTimeout   time.Duration
	ResolveMaxAttempts int
	ResolveBaseDelay   time.Duration
	ReconcileWorkers   int
	OverdueSweepEvery  time.Duration
	PlanTTL            time.Duration

	// Calendar
	Timezone string
	Location *time.Location
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Environment:        getEnv("ENVIRONMENT", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		WorkerCount:        getEnvAsInt("WORKER_COUNT", 5),
		AllowedOrigins:     getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		SentryDSN:          getEnv("SENTRY_DSN", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvAsInt("REDIS_DB", 0),
		CatalogCacheTTL:    time.Duration(getEnvAsInt("CATALOG_CACHE_TTL_MINUTES", 15)) * time.Minute,
		CatalogBaseURL:     getEnv("CATALOG_BASE_URL", ""),
		CatalogToken:       getEnv("CATALOG_TOKEN", ""),
		LedgerBaseURL:      getEnv("LEDGER_BASE_URL", ""),
		LedgerToken:        getEnv("LEDGER_TOKEN", ""),
		AuthorityBaseURL:   getEnv("AUTHORITY_BASE_URL", ""),
		AuthorityToken:     getEnv("AUTHORITY_TOKEN", ""),
		HTTPTimeout:        time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 10)) * time.Second,
		ReconcileTolerance: int64(getEnvAsInt("RECONCILE_TOLERANCE", 1000)),
		ReconcileTimeout:   time.Duration(getEnvAsInt("RECONCILE_TIMEOUT_SECONDS", 20)) * time.Second,
		ResolveMaxAttempts: getEnvAsInt("RESOLVE_MAX_ATTEMPTS", 3),
		ResolveBaseDelay:   time.Duration(getEnvAsInt("RESOLVE_BASE_DELAY_MS", 600)) * time.Millisecond,
		ReconcileWorkers:   getEnvAsInt("RECONCILE_WORKERS", 8),
		OverdueSweepEvery:  time.Duration(getEnvAsInt("OVERDUE_SWEEP_MINUTES", 60)) * time.Minute,
		PlanTTL:            time.Duration(getEnvAsInt("PLAN_TTL_MINUTES", 120)) * time.Minute,
		Timezone:           getEnv("TIMEZONE", "America/Bogota"),
	}

	// Validate required configuration
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ResolveMaxAttempts < 1 {
		return fmt.Errorf("RESOLVE_MAX_ATTEMPTS must be at least 1")
	}
	if c.ReconcileWorkers < 1 {
		return fmt.Errorf("RECONCILE_WORKERS must be at least 1")
	}
	if c.ReconcileTolerance < 0 {
		return fmt.Errorf("RECONCILE_TOLERANCE must not be negative")
	}
	if c.ReconcileTimeout <= 0 {
		return fmt.Errorf("RECONCILE_TIMEOUT_SECONDS must be positive")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	c.Location = loc
	return nil
}

// Today returns the current calendar day in the configured timezone
func (c *Config) Today() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice reads an environment variable as comma-separated slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
