package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cashrecon/internal/amqp"
	"cashrecon/internal/core"
	"cashrecon/internal/log"
	"cashrecon/internal/reconcile"
	"cashrecon/internal/sources"
)

// RestatementActor stamps reports rewritten by the recompute path.
const RestatementActor = "system:recompute"

type restatementRepository interface {
	sources.ReportReader
	sources.ReportWriter
}

// RestatementService re-derives persisted reports and rewrites the ones whose
// cached figures disagree with the current formula.
type RestatementService struct {
	repo        restatementRepository
	invalidator Invalidator
	batchSize   int
	logger      *log.Logger
	now         func() time.Time
}

func NewRestatementService(repo restatementRepository, invalidator Invalidator, batchSize int, logger *log.Logger) *RestatementService {
	if logger == nil {
		logger = log.Nop()
	}
	if batchSize < 1 {
		batchSize = 50
	}
	return &RestatementService{
		repo:        repo,
		invalidator: invalidator,
		batchSize:   batchSize,
		logger:      logger.WithComponent(log.ComponentWorker),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HandleReportSubmitted checks the report named by msg and restates it when
// stale. It reports whether a restatement was written.
func (s *RestatementService) HandleReportSubmitted(ctx context.Context, msg *amqp.ReportSubmittedMessage) (bool, error) {
	r, err := s.repo.GetReport(ctx, msg.ReportID)
	if errors.Is(err, sources.ErrNotFound) {
		// Nothing to recompute; acknowledging drops the message.
		s.logger.WarnContext(ctx, "Report of message not found", log.FieldReportID, msg.ReportID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get report: %w", err)
	}
	if r.Version > msg.Version {
		s.logger.DebugContext(ctx, "Message superseded by a newer version",
			log.FieldReportID, r.ID, log.FieldVersion, r.Version, "message_version", msg.Version)
	}
	return s.Restate(ctx, r)
}

// Restate rewrites r when its persisted figures are stale. A concurrent
// writer winning the version check is not an error: its write is fresh.
func (s *RestatementService) Restate(ctx context.Context, r core.DailyReport) (bool, error) {
	if r.Phase != core.PhaseSubmitted || !reconcile.IsStale(r) {
		return false, nil
	}

	fresh := reconcile.ComputeDailyReport(r)
	fresh.Version = r.Version + 1
	fresh.UpdatedAt = s.now()
	fresh.UpdatedBy = RestatementActor

	if err := s.repo.UpdateReport(ctx, fresh, r.Version); err != nil {
		if errors.Is(err, sources.ErrConflict) {
			s.logger.InfoContext(ctx, "Report changed during restatement, skipping", log.FieldReportID, r.ID)
			return false, nil
		}
		return false, fmt.Errorf("restate report %s: %w", r.ID, err)
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, r.StoreID)
	}
	s.logger.WarnContext(ctx, "Report restated",
		append(log.NewFields().WithOperation(log.OpRestate).WithReport(r.ID, r.StoreID, r.Date.String(), string(fresh.Status)).ToSlice(),
			"previous_status", string(r.Status),
			"previous_discrepancy", r.Discrepancy.StringFixed(2),
			log.FieldDiscrepancy, fresh.Discrepancy.StringFixed(2),
			"previous_formula_version", r.FormulaVersion,
			log.FieldVersion, fresh.Version)...)
	return true, nil
}

// SweepOutdated restates one batch of reports stamped with an older formula
// version and returns how many were rewritten.
func (s *RestatementService) SweepOutdated(ctx context.Context) (int, error) {
	reports, err := s.repo.ListOutdatedReports(ctx, reconcile.FormulaVersion, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list outdated reports: %w", err)
	}
	if len(reports) == 0 {
		return 0, nil
	}

	restated, failed := 0, 0
	for _, r := range reports {
		if ctx.Err() != nil {
			return restated, ctx.Err()
		}
		ok, err := s.Restate(ctx, r)
		if err != nil {
			failed++
			s.logger.ErrorContext(ctx, "Failed to restate report", log.FieldReportID, r.ID, log.FieldError, err)
			continue
		}
		if ok {
			restated++
		}
	}

	s.logger.InfoContext(ctx, "Sweep completed",
		"total", len(reports),
		"restated", restated,
		"errors", failed)
	return restated, nil
}
