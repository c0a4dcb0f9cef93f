// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir         string // base directory for databases
	DashboardDir    string // static dashboard files and JSON artifacts
	Port            int
	DevMode         bool
	LogLevel        string
	LookbackDays    int    // historical window, clamped by the reconstructor
	RefreshSchedule string // cron spec; empty disables scheduled refreshes
}

// Load reads configuration from environment variables, with a .env file as
// an optional source.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DASH_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dashboardDir := getEnv("DASH_DASHBOARD_DIR", "./dashboard")
	absDashboardDir, err := filepath.Abs(dashboardDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dashboard directory path: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		DashboardDir:    absDashboardDir,
		Port:            getEnvAsInt("DASH_PORT", 8085),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LookbackDays:    getEnvAsInt("DASH_LOOKBACK_DAYS", 30),
		RefreshSchedule: getEnv("DASH_REFRESH_SCHEDULE", "@every 30m"),
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}

	return cfg, nil
}

// PortfolioDBPath returns the portfolio database location.
func (c *Config) PortfolioDBPath() string {
	return filepath.Join(c.DataDir, "portfolio.db")
}

// CacheDBPath returns the cache database location.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "cache.db")
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
