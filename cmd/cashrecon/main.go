package main

import (
	"context"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"cashrecon/internal/backend"
	"cashrecon/internal/cli"
	apphttp "cashrecon/internal/http"
	"cashrecon/internal/log"
	"cashrecon/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	be, err := backend.NewFactory(logger).Create(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	analytics := services.NewAnalyticsService(be.Repository, be.Expenses, be.Cache, logger)
	opts := services.ReportServiceOptions{
		Locker:      be.Locker,
		Invalidator: analytics,
		Expenses:    be.Expenses,
		Logger:      logger,
	}
	// A nil *amqp.Client must not become a non-nil Publisher.
	if be.Publisher != nil {
		opts.Publisher = be.Publisher
	}
	reports := services.NewReportService(be.Repository, opts)

	srv := apphttp.NewServer(reports, analytics, apphttp.Options{
		Addr:               ":" + cfg.Port,
		AllowedOrigins:     cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
		Ready:              be.Ready,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting cashrecon server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"expense_source", cfg.ExpenseSource,
		"amqp_enabled", be.Publisher != nil)
	if err := srv.Start(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = be.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
