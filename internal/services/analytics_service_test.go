package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashrecon/internal/cache"
	"cashrecon/internal/core"
	"cashrecon/internal/period"
	"cashrecon/internal/sources"
)

type failingExpenses struct{}

func (failingExpenses) ListExpenses(context.Context, sources.Filter) ([]core.GeneralExpense, error) {
	return nil, errors.New("sheet unavailable")
}

func TestAnalyticsAggregateAndCache(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.openAndClose(t)
	_, err := f.svc.OpenDay(ctx, "s1", core.NewDate(2025, 3, 15), exampleOpening(), "")
	require.NoError(t, err)
	_, err = f.svc.AddExpense(ctx, core.GeneralExpense{StoreID: "s1", Date: core.NewDate(2025, 3, 2), Category: "Rent", Amount: dec("100")})
	require.NoError(t, err)

	lru := cache.NewLRUCache[period.Result](16, time.Minute)
	analytics := NewAnalyticsService(f.repo, f.repo, lru, nil)

	res, err := analytics.Aggregate(ctx, period.Scope{StoreID: "s1"}, period.Year(2025))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Totals.ReportCount, "open reports are left out")
	assert.True(t, res.Totals.GrossSales.Equal(dec("500")))
	assert.True(t, res.Totals.RunningProfit.Equal(dec("280")))
	assert.Len(t, res.Series, 12)
	assert.Equal(t, 1, lru.Size())

	// Writes that bypass the service are invisible until invalidation.
	require.NoError(t, f.repo.AddExpense(ctx, core.GeneralExpense{ID: "x", StoreID: "s1", Date: core.NewDate(2025, 4, 1), Category: "Rent", Amount: dec("20")}))
	cached, err := analytics.Aggregate(ctx, period.Scope{StoreID: "s1"}, period.Year(2025))
	require.NoError(t, err)
	assert.True(t, cached.Totals.Expenses.Equal(dec("100")))

	analytics.Invalidate(ctx, "s1")
	assert.Equal(t, 0, lru.Size())
	fresh, err := analytics.Aggregate(ctx, period.Scope{StoreID: "s1"}, period.Year(2025))
	require.NoError(t, err)
	assert.True(t, fresh.Totals.Expenses.Equal(dec("120")))
}

func TestAnalyticsInvalidateDropsAllStoresScope(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lru := cache.NewLRUCache[period.Result](16, time.Minute)
	analytics := NewAnalyticsService(f.repo, f.repo, lru, nil)

	_, err := analytics.Aggregate(ctx, period.Scope{}, period.Month(2025, 3))
	require.NoError(t, err)
	_, err = analytics.Aggregate(ctx, period.Scope{StoreID: "s2"}, period.Month(2025, 3))
	require.NoError(t, err)
	require.Equal(t, 2, lru.Size())

	analytics.Invalidate(ctx, "s1")
	assert.Equal(t, 1, lru.Size(), "only the all-stores entry depends on s1")
}

func TestAnalyticsEmptyRangeSkipsLoading(t *testing.T) {
	analytics := NewAnalyticsService(memoryWithoutData(), failingExpenses{}, nil, nil)
	res, err := analytics.Aggregate(context.Background(), period.Scope{}, period.Range(core.NewDate(2025, 3, 2), core.NewDate(2025, 3, 1)))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Totals.ReportCount)
	assert.Empty(t, res.Series)
}

func TestAnalyticsPropagatesLoadErrors(t *testing.T) {
	analytics := NewAnalyticsService(memoryWithoutData(), failingExpenses{}, nil, nil)
	_, err := analytics.Aggregate(context.Background(), period.Scope{}, period.Day(day))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheet unavailable")
}

func memoryWithoutData() sources.ReportReader {
	return newFixtureRepo()
}
