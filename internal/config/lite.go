// Package config provides configuration management for the risk server.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external services and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for data files

	// Prediction settings
	PredictionMode    string        // http, script or none
	PredictionURL     string        // Base URL in http mode
	PythonPath        string        // Interpreter in script mode
	PredictionScript  string        // Script path in script mode
	PredictionTimeout time.Duration // Bound on the single external attempt

	// Cache settings
	CacheMaxItems int           // Maximum items in memory prediction cache
	CacheTTL      time.Duration // Default cache TTL

	// History settings
	HistoryLimit int // Records returned when no limit is given

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".livercare")

	return &LiteConfig{
		DataDir:           dataDir,
		PredictionMode:    "none",
		PythonPath:        "python",
		PredictionTimeout: 5 * time.Second,
		CacheMaxItems:     1000,
		CacheTTL:          time.Hour,
		HistoryLimit:      50,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("LIVERCARE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Prediction
	if v := os.Getenv("LIVERCARE_PREDICTION_MODE"); v != "" {
		cfg.PredictionMode = v
	}
	cfg.PredictionURL = os.Getenv("LIVERCARE_PREDICTION_URL")
	if v := os.Getenv("LIVERCARE_PYTHON_PATH"); v != "" {
		cfg.PythonPath = v
	}
	cfg.PredictionScript = os.Getenv("LIVERCARE_PREDICTION_SCRIPT")
	if v := os.Getenv("LIVERCARE_PREDICTION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PredictionTimeout = d
		}
	}

	// Cache settings
	if v := os.Getenv("LIVERCARE_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("LIVERCARE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("LIVERCARE_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryLimit = n
		}
	}

	// Logging
	if v := os.Getenv("LIVERCARE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LIVERCARE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// HistoryDBPath returns the path to the detection history SQLite database.
func (c *LiteConfig) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// ExportDir returns the directory for JSON and XLSX exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}
