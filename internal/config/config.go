package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"costdash/internal/core"
)

// Backend names accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendSheets = "sheets"
)

var validBackends = []string{BackendMemory, BackendSheets}

type Config struct {
	// HTTP Server
	Port     string
	LogLevel string

	// Import source
	DataBackend string
	DataDir     string

	// Upload audit log (empty disables)
	SQLiteDBPath string

	// AMQP (empty URL disables)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Dashboard
	DisplayFrom    string
	DisplayTo      string
	CurrencySymbol string

	// Uploads and dataset sessions
	MaxUploadBytes       int64
	DatasetTTL           time.Duration
	DatasetCacheSize     int
	CacheCleanupInterval time.Duration
	UploadsPerMinute     int
}

func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "8081"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataBackend: getEnv("DATA_BACKEND", BackendMemory),
		DataDir:     getEnv("DATA_DIR", "./data"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/costdash.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "costdash"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "upload_audit"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Costs"),

		DisplayFrom:    getEnv("DISPLAY_FROM", "2023-03-01"),
		DisplayTo:      getEnv("DISPLAY_TO", "2023-10-31"),
		CurrencySymbol: getEnv("CURRENCY_SYMBOL", "Rp"),

		MaxUploadBytes:       getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		DatasetTTL:           getEnvDuration("DATASET_TTL", 2*time.Hour),
		DatasetCacheSize:     getEnvInt("DATASET_CACHE_SIZE", 32),
		CacheCleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 5*time.Minute),
		UploadsPerMinute:     getEnvInt("UPLOADS_PER_MINUTE", 20),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == BackendSheets && c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
	}

	// The audit log is optional; make sure its directory exists when enabled
	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := c.DisplayWindow(); err != nil {
		errors = append(errors, err.Error())
	}

	if strings.TrimSpace(c.CurrencySymbol) == "" {
		errors = append(errors, "currency symbol cannot be empty")
	}

	if c.MaxUploadBytes < 1024 {
		errors = append(errors, fmt.Sprintf("invalid max upload size %d: must be at least 1024 bytes", c.MaxUploadBytes))
	}
	if c.DatasetTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid dataset TTL %v: must be at least 1 minute", c.DatasetTTL))
	}
	if c.DatasetCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid dataset cache size %d: must be at least 1", c.DatasetCacheSize))
	} else if c.DatasetCacheSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid dataset cache size %d: must be at most 1000", c.DatasetCacheSize))
	}
	if c.CacheCleanupInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache cleanup interval %v: must be at least 1 second", c.CacheCleanupInterval))
	}
	if c.UploadsPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid uploads per minute %d: must be at least 1", c.UploadsPerMinute))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// DisplayWindow parses DISPLAY_FROM and DISPLAY_TO.
func (c *Config) DisplayWindow() (core.DisplayWindow, error) {
	from, ok := core.ParseDate(c.DisplayFrom)
	if !ok {
		return core.DisplayWindow{}, fmt.Errorf("invalid display start '%s': expected YYYY-MM-DD", c.DisplayFrom)
	}
	to, ok := core.ParseDate(c.DisplayTo)
	if !ok {
		return core.DisplayWindow{}, fmt.Errorf("invalid display end '%s': expected YYYY-MM-DD", c.DisplayTo)
	}
	w := core.DisplayWindow{From: from, To: to}
	if err := w.Validate(); err != nil {
		return core.DisplayWindow{}, fmt.Errorf("invalid display window %s..%s: %w", c.DisplayFrom, c.DisplayTo, err)
	}
	return w, nil
}

// ParseLevel maps LOG_LEVEL names to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be one of debug, info, warn, error", s)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
