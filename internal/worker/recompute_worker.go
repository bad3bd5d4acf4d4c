// Package worker runs the recompute path: every submitted report is re-derived
// after the fact, and reports stamped with an older formula are swept in batches.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cashrecon/internal/amqp"
	"cashrecon/internal/log"
)

// startupBatches bounds the catch-up sweep run before consuming.
const startupBatches = 5

// Restater re-derives reports and persists the drifted ones.
type Restater interface {
	HandleReportSubmitted(ctx context.Context, msg *amqp.ReportSubmittedMessage) (bool, error)
	SweepOutdated(ctx context.Context) (int, error)
}

// Consumer delivers report events until ctx ends.
type Consumer interface {
	ConsumeReportSubmitted(ctx context.Context, handler func(context.Context, *amqp.ReportSubmittedMessage) error) error
}

// RecomputeWorker consumes report events and sweeps outdated reports.
type RecomputeWorker struct {
	restater Restater
	consumer Consumer
	interval time.Duration
	logger   *log.Logger
}

// NewRecomputeWorker creates the worker. A nil consumer runs the sweep only.
func NewRecomputeWorker(restater Restater, consumer Consumer, interval time.Duration, logger *log.Logger) *RecomputeWorker {
	if logger == nil {
		logger = log.Nop()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &RecomputeWorker{
		restater: restater,
		consumer: consumer,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMessage processes a single report event. A returned error requeues
// the delivery.
func (w *RecomputeWorker) HandleMessage(ctx context.Context, msg *amqp.ReportSubmittedMessage) error {
	w.logger.DebugContext(ctx, "Processing report message",
		log.FieldReportID, msg.ReportID,
		log.FieldVersion, msg.Version,
		"formula_version", msg.FormulaVersion)

	restated, err := w.restater.HandleReportSubmitted(ctx, msg)
	if err != nil {
		return fmt.Errorf("recompute report %s: %w", msg.ReportID, err)
	}
	if restated {
		w.logger.InfoContext(ctx, "Report recomputed with drift", log.FieldReportID, msg.ReportID)
	}
	return nil
}

// StartupSweep catches up on reports left outdated while the worker was
// down. It stops early once a batch restates nothing.
func (w *RecomputeWorker) StartupSweep(ctx context.Context) error {
	total := 0
	for i := 0; i < startupBatches; i++ {
		n, err := w.restater.SweepOutdated(ctx)
		if err != nil {
			return fmt.Errorf("startup sweep: %w", err)
		}
		total += n
		if n == 0 {
			break
		}
	}
	if total == 0 {
		w.logger.InfoContext(ctx, "No outdated reports found on startup")
	} else {
		w.logger.InfoContext(ctx, "Startup sweep completed", "restated", total)
	}
	return nil
}

// Run sweeps once, then consumes events and sweeps every interval until ctx
// ends or consumption fails for good.
func (w *RecomputeWorker) Run(ctx context.Context) error {
	if err := w.StartupSweep(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed startup sweep", log.FieldError, err)
	}

	consumeErr := make(chan error, 1)
	if w.consumer != nil {
		go func() {
			consumeErr <- w.consumer.ConsumeReportSubmitted(ctx, w.HandleMessage)
		}()
	} else {
		w.logger.Info("Skipping AMQP message consumption - no broker configured")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-consumeErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("message consumption failed: %w", err)
			}
			return nil
		case <-ticker.C:
			if _, err := w.restater.SweepOutdated(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic sweep failed", log.FieldError, err)
			}
		}
	}
}
