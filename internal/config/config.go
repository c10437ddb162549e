// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	StorePath        string        // Fund store path (plain .db or gzip-wrapped .db.gz)
	IndexStorePath   string        // Benchmark index store path; empty disables the benchmark gate
	ScratchDir       string        // Directory for snapshot exports
	BenchmarkCode    string        // Benchmark index code (e.g. 000300)
	BenchmarkMarket  string        // Benchmark index market (e.g. CN)
	RiskFreeRatePct  float64       // Annual risk-free rate used by the Sharpe ratio, in percent
	QueryTimeout     time.Duration // Deadline for bulk NAV queries
	CacheFallback    bool          // Recompute cache-missing cells on demand
	LogLevel         string
	Port             int
	DevMode          bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnvAsInt("PORT", 8010),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		StorePath:       getEnv("STORE_PATH", "./data/funds.db.gz"),
		IndexStorePath:  getEnv("INDEX_STORE_PATH", "./data/astock.db.gz"),
		ScratchDir:      getEnv("SCRATCH_DIR", "./data/scratch"),
		BenchmarkCode:   getEnv("BENCHMARK_CODE", "000300"),
		BenchmarkMarket: getEnv("BENCHMARK_MARKET", "CN"),
		RiskFreeRatePct: getEnvAsFloat("RISK_FREE_RATE_PCT", 3.0),
		QueryTimeout:    getEnvAsDuration("QUERY_TIMEOUT", 30*time.Second),
		CacheFallback:   getEnvAsBool("CACHE_FALLBACK", true),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("STORE_PATH is required")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
