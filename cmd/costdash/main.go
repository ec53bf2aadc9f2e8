package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"costdash/internal/backend"
	"costdash/internal/cache"
	"costdash/internal/cli"
	"costdash/internal/config"
	"costdash/internal/core"
	apphttp "costdash/internal/http"
	applog "costdash/internal/log"
	"costdash/internal/middleware/ratelimit"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Stdout, os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	if err := run(logger, cfg); err != nil {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(logger *applog.Logger, cfg *config.Config) error {
	ctx, stop := cli.SignalContext(logger)
	defer stop()

	window, err := cfg.DisplayWindow()
	if err != nil {
		return err
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("backend config: %w", err)
	}
	src, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateSource(ctx, bcfg)
	if err != nil {
		return fmt.Errorf("create import source: %w", err)
	}
	if src.Cleanup != nil {
		defer func() {
			if err := src.Cleanup(); err != nil {
				logger.Warn("Import source cleanup failed", applog.FieldError, err)
			}
		}()
	}

	uploads, err := cli.NewUploadService(logger.WithComponent(applog.ComponentStorage), cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := uploads.Close(); err != nil {
			logger.Warn("Closing upload bookkeeping failed", applog.FieldError, err)
		}
	}()

	datasets := cache.NewDatasetStore(cfg.DatasetCacheSize, cfg.DatasetTTL)
	manager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
	manager.Register(datasets)
	manager.StartCleanup(cfg.CacheCleanupInterval)
	defer manager.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Logger:         logger,
		Datasets:       datasets,
		Uploads:        uploads,
		Source:         src.Source,
		Limiter:        ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.UploadsPerMinute}),
		Window:         window,
		Money:          core.NewCurrencyFormat(cfg.CurrencySymbol, language.Indonesian),
		MaxUploadBytes: cfg.MaxUploadBytes,
		Ready:          uploads.Ping,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting costdash server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"display_window", window.From.String()+".."+window.To.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		m := srv.Metrics()
		logger.Info("HTTP server drained",
			"requests", m.TotalRequests,
			"server_errors", m.ServerErrors,
			"datasets_cached", datasets.Size(),
			"datasets_evicted", datasets.Evicted())
		return nil
	})

	return g.Wait()
}
