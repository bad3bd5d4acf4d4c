package period

import (
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashrecon/internal/core"
	"cashrecon/internal/reconcile"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "%s: want %s, got %s", field, want, got)
}

// report builds a computed report whose gross sales equal sales and whose
// derived gcash is zero.
func report(id, store string, d core.Date, sales, fundIn string) core.DailyReport {
	r := core.DailyReport{
		ID:            id,
		StoreID:       store,
		Date:          d,
		SODGpo:        dec("1000"),
		FundIn:        dec(fundIn),
		EODGpo:        dec("1000").Add(dec(fundIn)),
		EODActualCash: dec(sales),
		CustomSales:   []core.ManualSaleLine{{Name: "sale", Amount: dec(sales), Cost: dec("0")}},
	}
	return reconcile.ComputeDailyReport(r)
}

func expense(id, store string, d core.Date, category, amount string) core.GeneralExpense {
	return core.GeneralExpense{ID: id, StoreID: store, Date: d, Category: category, Amount: dec(amount)}
}

func TestAggregateYearZeroFill(t *testing.T) {
	reports := []core.DailyReport{
		report("r1", "s1", core.NewDate(2025, 3, 4), "100", "0"),
		report("r2", "s1", core.NewDate(2025, 3, 20), "50", "0"),
		report("r3", "s1", core.NewDate(2025, 7, 9), "80", "0"),
		report("r4", "s1", core.NewDate(2024, 7, 9), "999", "0"),
	}

	res, err := Aggregate(reports, nil, Scope{}, Year(2025))
	require.NoError(t, err)
	require.Len(t, res.Series, 12)

	zero := 0
	for i, b := range res.Series {
		assert.Equal(t, core.NewDate(2025, i+1, 1).MonthKey(), b.Key)
		if b.IsZero() {
			zero++
		}
	}
	assert.Equal(t, 10, zero)
	assertDec(t, "150", res.Series[2].NetSales, "march")
	assertDec(t, "80", res.Series[6].NetSales, "july")
	assertDec(t, "230", res.Totals.GrossSales, "grossSales")
	assert.Equal(t, 3, res.Totals.ReportCount)
}

func TestAggregateEmptyYearStillHasTwelveBuckets(t *testing.T) {
	res, err := Aggregate(nil, nil, Scope{StoreID: "s1"}, Year(2026))
	require.NoError(t, err)
	assert.Len(t, res.Series, 12)
	assert.Equal(t, "2026-01", res.Series[0].Key)
	assert.Equal(t, "2026-12", res.Series[11].Key)
}

func TestAggregateRangeOnlyObservedDays(t *testing.T) {
	reports := []core.DailyReport{
		report("r2", "s1", core.NewDate(2025, 3, 9), "40", "0"),
		report("r1", "s1", core.NewDate(2025, 3, 2), "60", "0"),
		report("r3", "s1", core.NewDate(2025, 4, 2), "70", "0"),
	}
	expenses := []core.GeneralExpense{
		expense("e1", "s1", core.NewDate(2025, 3, 5), "Utilities", "12"),
	}

	res, err := Aggregate(reports, expenses, Scope{}, Range(core.NewDate(2025, 3, 1), core.NewDate(2025, 3, 31)))
	require.NoError(t, err)

	keys := make([]string, 0, len(res.Series))
	for _, b := range res.Series {
		keys = append(keys, b.Key)
	}
	assert.Equal(t, []string{"2025-03-02", "2025-03-05", "2025-03-09"}, keys)
	assertDec(t, "12", res.Series[1].Expenses, "expense bucket")
}

func TestAggregateMonthUsesDailyBuckets(t *testing.T) {
	reports := []core.DailyReport{
		report("r1", "s1", core.NewDate(2025, 2, 28), "60", "0"),
		report("r2", "s1", core.NewDate(2025, 3, 1), "40", "0"),
	}
	res, err := Aggregate(reports, nil, Scope{}, Month(2025, 2))
	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	assert.Equal(t, "2025-02-28", res.Series[0].Key)
}

func TestAggregateDay(t *testing.T) {
	d := core.NewDate(2025, 5, 5)
	reports := []core.DailyReport{
		report("r1", "s1", d, "60", "0"),
		report("r2", "s2", d, "40", "0"),
		report("r3", "s1", core.NewDate(2025, 5, 6), "10", "0"),
	}
	res, err := Aggregate(reports, nil, Scope{}, Day(d))
	require.NoError(t, err)
	require.Len(t, res.Series, 1)
	assertDec(t, "100", res.Series[0].NetSales, "both stores")
	assert.Equal(t, 2, res.Totals.ReportCount)
}

func TestAggregateTotalsAndFundIn(t *testing.T) {
	reports := []core.DailyReport{
		report("r1", "s1", core.NewDate(2025, 6, 1), "200", "50"),
		report("r2", "s1", core.NewDate(2025, 6, 2), "100", "0"),
		report("r3", "s2", core.NewDate(2025, 6, 2), "900", "300"),
	}
	expenses := []core.GeneralExpense{
		expense("e1", "s1", core.NewDate(2025, 6, 1), "Rent", "75"),
		expense("e2", "s1", core.NewDate(2025, 6, 2), core.CategoryFundIn, "500"),
		expense("e3", "s2", core.NewDate(2025, 6, 2), "Rent", "1000"),
	}

	res, err := Aggregate(reports, expenses, Scope{StoreID: "s1"}, Month(2025, 6))
	require.NoError(t, err)

	assertDec(t, "300", res.Totals.GrossSales, "grossSales")
	assertDec(t, "300", res.Totals.NetProfit, "netProfit")
	assertDec(t, "75", res.Totals.Expenses, "expenses exclude fund-in")
	assertDec(t, "225", res.Totals.RunningProfit, "runningProfit")
	assertDec(t, "550", res.Totals.FundIn, "report fund-in plus fund-in rows")
	assert.Equal(t, 2, res.Totals.ReportCount)
	assert.Equal(t, 2, res.Totals.ExpenseCount)
	assert.Equal(t, 2, res.Totals.StatusCounts[core.Balanced])

	require.Len(t, res.Series, 2)
	assertDec(t, "50", res.Series[0].FundIn, "day one fund-in")
	assertDec(t, "500", res.Series[1].FundIn, "day two fund-in")
	assertDec(t, "0", res.Series[1].Expenses, "fund-in row is not an expense")
}

func TestAggregateGrossSalesIncludesDiscrepancy(t *testing.T) {
	r := report("r1", "s1", core.NewDate(2025, 6, 1), "100", "0")
	r.EODGcash = dec("35")
	r = reconcile.ComputeDailyReport(r)

	res, err := Aggregate([]core.DailyReport{r}, nil, Scope{}, Day(r.Date))
	require.NoError(t, err)
	assertDec(t, "135", res.Totals.GrossSales, "grossSales")
	assert.True(t, res.Totals.GrossSales.Equal(r.TotalNetSales.Add(r.Discrepancy)))
	assert.Equal(t, 1, res.Totals.StatusCounts[core.Surplus])
}

func TestAggregateRederivesStaleReports(t *testing.T) {
	r := report("r1", "s1", core.NewDate(2025, 6, 1), "100", "0")
	r.RecordedProfit = dec("12345")
	r.TotalNetSales = dec("0")

	res, err := Aggregate([]core.DailyReport{r}, nil, Scope{}, Day(r.Date))
	require.NoError(t, err)
	assertDec(t, "100", res.Totals.NetProfit, "netProfit")
	assertDec(t, "100", res.Totals.GrossSales, "grossSales")
}

func TestAggregateRejectsZeroDates(t *testing.T) {
	good := report("r1", "s1", core.NewDate(2025, 6, 1), "100", "0")
	bad := good
	bad.ID = "broken"
	bad.Date = core.Date{}

	_, err := Aggregate([]core.DailyReport{good, bad}, nil, Scope{}, Year(2025))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidDate)
	assert.Contains(t, err.Error(), "broken")

	_, err = Aggregate(nil, []core.GeneralExpense{{ID: "e-bad", StoreID: "s1", Category: "Rent"}}, Scope{}, Year(2025))
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestAggregateInvertedRangeIsEmpty(t *testing.T) {
	reports := []core.DailyReport{report("r1", "s1", core.NewDate(2025, 6, 1), "100", "0")}
	pred := Range(core.NewDate(2025, 6, 30), core.NewDate(2025, 6, 1))
	assert.True(t, pred.Empty())

	res, err := Aggregate(reports, nil, Scope{}, pred)
	require.NoError(t, err)
	assert.Empty(t, res.Series)
	assert.Zero(t, res.Totals.ReportCount)
	assert.True(t, res.Totals.GrossSales.IsZero())
}

func TestParseQuery(t *testing.T) {
	cases := []struct {
		query string
		want  string
		ok    bool
	}{
		{"day=2025-03-01", "day:2025-03-01", true},
		{"month=2025-02", "month:2025-02", true},
		{"year=2025", "year:2025", true},
		{"from=2025-01-01&to=2025-01-31", "range:2025-01-01..2025-01-31", true},
		{"", "", false},
		{"day=2025-03-01&year=2025", "", false},
		{"day=03/01/2025", "", false},
		{"month=2025-13", "", false},
		{"year=twenty", "", false},
		{"from=2025-01-01", "", false},
		{"from=2025-02-01&to=2025-01-01", "", false},
	}
	for _, tc := range cases {
		q, err := url.ParseQuery(tc.query)
		require.NoError(t, err)
		pred, err := ParseQuery(q)
		if !tc.ok {
			assert.ErrorIs(t, err, ErrInvalidPeriod, "query %q", tc.query)
			continue
		}
		require.NoError(t, err, "query %q", tc.query)
		assert.Equal(t, tc.want, pred.String())
	}
}

func TestMonthBounds(t *testing.T) {
	from, to := Month(2024, 2).Bounds()
	assert.Equal(t, "2024-02-01", from.String())
	assert.Equal(t, "2024-02-29", to.String())
}
