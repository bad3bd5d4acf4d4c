package services

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"cashrecon/internal/cache"
	"cashrecon/internal/core"
	"cashrecon/internal/log"
	"cashrecon/internal/period"
	"cashrecon/internal/sources"
)

// AnalyticsService answers period dashboards. Results are cached per store
// scope and period until a write to that store invalidates them.
type AnalyticsService struct {
	reports  sources.ReportReader
	expenses sources.ExpenseLister
	cache    cache.Cache[period.Result]
	logger   *log.Logger
}

var _ Invalidator = (*AnalyticsService)(nil)

// NewAnalyticsService creates the service. A nil cache disables caching.
func NewAnalyticsService(reports sources.ReportReader, expenses sources.ExpenseLister, c cache.Cache[period.Result], logger *log.Logger) *AnalyticsService {
	if logger == nil {
		logger = log.Nop()
	}
	return &AnalyticsService{
		reports:  reports,
		expenses: expenses,
		cache:    c,
		logger:   logger.WithComponent(log.ComponentAnalytics),
	}
}

// Aggregate loads the submitted reports and the general expenses of the
// period concurrently and folds them in a single pass.
func (s *AnalyticsService) Aggregate(ctx context.Context, scope period.Scope, pred period.Predicate) (period.Result, error) {
	key := cache.Key(scope.StoreID, pred.String())
	if s.cache != nil {
		if res, ok := s.cache.Get(ctx, key); ok {
			s.logger.DebugContext(ctx, "Analytics cache hit", log.FieldPeriod, pred.String(), log.FieldStoreID, scope.StoreID)
			return res, nil
		}
	}

	var (
		reports  []core.DailyReport
		expenses []core.GeneralExpense
	)
	if !pred.Empty() {
		from, to := pred.Bounds()
		f := sources.Filter{StoreID: scope.StoreID, From: from, To: to}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			all, err := s.reports.ListReports(gctx, f)
			if err != nil {
				return fmt.Errorf("list reports: %w", err)
			}
			for _, r := range all {
				if r.Phase == core.PhaseSubmitted {
					reports = append(reports, r)
				}
			}
			return nil
		})
		g.Go(func() error {
			var err error
			expenses, err = s.expenses.ListExpenses(gctx, f)
			if err != nil {
				return fmt.Errorf("list expenses: %w", err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return period.Result{}, err
		}
	}

	res, err := period.Aggregate(reports, expenses, scope, pred)
	if err != nil {
		return period.Result{}, err
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, res)
	}
	s.logger.DebugContext(ctx, "Period aggregated",
		log.FieldOperation, log.OpAggregate,
		log.FieldPeriod, res.Period,
		log.FieldStoreID, scope.StoreID,
		log.FieldCount, res.Totals.ReportCount)
	return res, nil
}

// Invalidate drops cached results of storeID and of the all-stores scope.
func (s *AnalyticsService) Invalidate(ctx context.Context, storeID string) {
	if s.cache == nil {
		return
	}
	n := s.cache.DeletePrefix(ctx, cache.StorePrefix(storeID))
	if storeID != "" {
		n += s.cache.DeletePrefix(ctx, cache.StorePrefix(""))
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "Invalidated cached periods", log.FieldStoreID, storeID, log.FieldCount, n)
	}
}
