// Package config provides configuration management for the application.
package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application.
type Config struct {
	// AWS
	AWSRegion     string
	ReportsBucket string
	RosterBucket  string

	// Database
	DBURL      string
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBMaxConns int

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Scoring
	WeightsFile        string
	BudgetDivisor      int64
	SearchFetchTimeout time.Duration
	SearchBatchSize    int
	ScoringWorkers     int
	RefreshWorkers     int

	// Circuit breaker
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	// Application
	Port     string
	Stage    string
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	cfg := &Config{
		// AWS
		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
		ReportsBucket: getEnv("REPORTS_BUCKET", ""),
		RosterBucket:  getEnv("ROSTER_BUCKET", ""),

		// Database
		DBURL:      getEnv("DATABASE_URL", ""),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBName:     getEnv("DB_NAME", "nil_match"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBMaxConns: getEnvInt("DB_MAX_CONNS", 10),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),

		// Scoring
		WeightsFile:        getEnv("WEIGHTS_FILE", ""),
		BudgetDivisor:      int64(getEnvInt("BUDGET_DIVISOR", 5)),
		SearchFetchTimeout: getEnvDuration("SEARCH_FETCH_TIMEOUT", 5*time.Second),
		SearchBatchSize:    getEnvInt("SEARCH_BATCH_SIZE", 500),
		ScoringWorkers:     getEnvInt("SCORING_WORKERS", 0),
		RefreshWorkers:     getEnvInt("REFRESH_WORKERS", 4),

		// Circuit breaker
		BreakerFailures: uint32(getEnvInt("BREAKER_FAILURES", 5)),
		BreakerTimeout:  getEnvDuration("BREAKER_TIMEOUT", 30*time.Second),

		// Application
		Port:     getEnv("PORT", "8080"),
		Stage:    getEnv("STAGE", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.ScoringWorkers <= 0 {
		cfg.ScoringWorkers = runtime.NumCPU()
	}
	if cfg.RefreshWorkers <= 0 {
		cfg.RefreshWorkers = 1
	}
	if cfg.SearchBatchSize <= 0 {
		cfg.SearchBatchSize = 500
	}
	if cfg.DBMaxConns <= 0 {
		cfg.DBMaxConns = 10
	}

	return cfg, nil
}

// DatabaseURL returns the PostgreSQL connection string. DATABASE_URL wins
// over the individual DB_* settings.
func (c *Config) DatabaseURL() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	sslMode := "require" // Use SSL for RDS
	if c.DBHost == "localhost" || c.DBHost == "127.0.0.1" {
		sslMode = "disable" // Disable SSL for local development
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + strconv.Itoa(c.DBPort) + "/" + c.DBName + "?sslmode=" + sslMode
}

// CacheEnabled reports whether a Redis address is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration retrieves an environment variable as a duration or returns a
// default value. Bare integers are read as seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
