package main

import (
	"context"
	"errors"
	"time"

	"cashbot/internal/amqp"
	"cashbot/internal/cli"
	"cashbot/internal/config"
	"cashbot/internal/log"
	"cashbot/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig((*config.Config).ValidateWorker)
	if err != nil {
		cli.Fatal(cli.SetupLogger(nil), "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg)
	logger.Info("Starting cashbot-worker", "queue", cfg.AMQPQueue)

	archive, err := cli.InitSQLite(logger, cfg.ArchiveDBPath)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize archive", err, log.FieldPath, cfg.ArchiveDBPath)
	}
	defer archive.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		cli.Fatal(logger, "Failed to initialize AMQP client", err)
	}
	defer client.Close()

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)

	archiver := worker.NewArchiveWorker(archive, logger)
	if err := archiver.StartupCheck(ctx); err != nil {
		logger.Error("Startup check failed", log.FieldError, err)
	}

	if err := client.ConsumeExpenseRecorded(ctx, archiver.HandleRecorded); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
