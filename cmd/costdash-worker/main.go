package main

import (
	"os"

	"costdash/internal/amqp"
	"costdash/internal/cli"
	applog "costdash/internal/log"
	"costdash/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Stdout, os.Getenv("LOG_LEVEL"), applog.ComponentWorker)

	logger.Info("Starting costdash-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" || cfg.SQLiteDBPath == "" {
		logger.Error("Worker needs both AMQP_URL and SQLITE_DB_PATH")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := worker.NewAuditWorker(repo).Run(ctx, client); err != nil {
		logger.Error("Message consumption failed", applog.FieldError, err)
		stop()
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
