package main

import (
	"context"
	"os"
	"time"

	"cashrecon/internal/backend"
	"cashrecon/internal/cli"
	"cashrecon/internal/log"
	"cashrecon/internal/services"
	"cashrecon/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting recompute-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	if backendCfg.Type == backend.MemoryBackend {
		logger.Warn("Memory backend is private to this process, the worker only sees its own data")
	}
	be, err := backend.NewFactory(logger).Create(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err)
		os.Exit(1)
	}

	analytics := services.NewAnalyticsService(be.Repository, be.Expenses, be.Cache, logger)
	restater := services.NewRestatementService(be.Repository, analytics, cfg.SweepBatchSize, logger)

	var consumer worker.Consumer
	if be.Publisher != nil {
		consumer = be.Publisher
	}
	w := worker.NewRecomputeWorker(restater, consumer, cfg.SweepInterval, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	if err := w.Run(ctx); err != nil {
		logger.Error("Worker stopped", log.FieldError, err)
		_ = be.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
