// Package cli provides the initialization shared by cmd/costdash and
// cmd/costdash-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"costdash/internal/amqp"
	"costdash/internal/config"
	applog "costdash/internal/log"
	"costdash/internal/services"
	"costdash/internal/storage"

	"github.com/joho/godotenv"
)

// SetupLogger builds the process logger for LOG_LEVEL and makes it the
// slog default. An unknown level falls back to info.
func SetupLogger(w io.Writer, level, component string) *applog.Logger {
	lvl, err := config.ParseLevel(level)
	logger := applog.New(applog.Config{
		Component: component,
		Handler:   applog.NewTextHandler(w, lvl),
	})
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info level", applog.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite initializes a SQLite repository with the given path.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *applog.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", applog.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// NewUploadService wires the optional audit log and AMQP publisher.
// A broker that cannot be reached at startup is logged and skipped; the
// audit log then receives rows directly.
func NewUploadService(logger *applog.Logger, cfg *config.Config) (*services.UploadService, error) {
	var audit services.AuditLog
	if cfg.SQLiteDBPath != "" {
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		audit = repo
		logger.Info("Upload audit log enabled", "path", cfg.SQLiteDBPath)
	}

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, recording uploads directly", applog.FieldError, err)
		} else {
			publisher = client
			logger.Info("Publishing upload events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	return services.NewUploadService(audit, publisher), nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received", applog.FieldOperation, applog.OpShutdown)
	}()
	return ctx, stop
}
