// Package period folds daily reports and general expenses over a date
// predicate into dashboard totals and a chart series.
package period

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"cashrecon/internal/core"
	"cashrecon/internal/reconcile"
)

// Scope restricts aggregation to one store. An empty StoreID means every store.
type Scope struct {
	StoreID string `json:"storeId,omitempty"`
}

func (s Scope) includes(storeID string) bool {
	return s.StoreID == "" || s.StoreID == storeID
}

type Totals struct {
	GrossSales    decimal.Decimal     `json:"grossSales"`
	NetProfit     decimal.Decimal     `json:"netProfit"`
	Expenses      decimal.Decimal     `json:"expenses"`
	RunningProfit decimal.Decimal     `json:"runningProfit"`
	FundIn        decimal.Decimal     `json:"fundIn"`
	ReportCount   int                 `json:"reportCount"`
	ExpenseCount  int                 `json:"expenseCount"`
	StatusCounts  map[core.Status]int `json:"statusCounts"`
}

// Bucket is one point of the chart series. NetSales holds the gross end of
// day sales of the bucket.
type Bucket struct {
	Key            string          `json:"key"`
	NetSales       decimal.Decimal `json:"netSales"`
	Expenses       decimal.Decimal `json:"expenses"`
	FundIn         decimal.Decimal `json:"fundIn"`
	RecordedProfit decimal.Decimal `json:"recordedProfit"`
}

// IsZero reports whether the bucket saw no activity.
func (b Bucket) IsZero() bool {
	return b.NetSales.IsZero() && b.Expenses.IsZero() && b.FundIn.IsZero() && b.RecordedProfit.IsZero()
}

type Result struct {
	Period string   `json:"period"`
	Scope  Scope    `json:"scope"`
	Totals Totals   `json:"totals"`
	Series []Bucket `json:"series"`
}

func newBucket(key string) *Bucket {
	return &Bucket{
		Key:            key,
		NetSales:       decimal.Zero,
		Expenses:       decimal.Zero,
		FundIn:         decimal.Zero,
		RecordedProfit: decimal.Zero,
	}
}

// Aggregate walks reports and expenses once, re-deriving each report, and
// returns the totals plus a lexicographically sorted series. A whole-year
// predicate yields twelve monthly buckets, zero-filled; every other predicate
// yields only the days that saw activity.
//
// An entry with a zero date is rejected with core.ErrInvalidDate instead of
// being dropped, so totals and series never disagree.
func Aggregate(reports []core.DailyReport, expenses []core.GeneralExpense, scope Scope, pred Predicate) (Result, error) {
	res := Result{
		Period: pred.String(),
		Scope:  scope,
		Totals: Totals{
			GrossSales:    decimal.Zero,
			NetProfit:     decimal.Zero,
			Expenses:      decimal.Zero,
			RunningProfit: decimal.Zero,
			FundIn:        decimal.Zero,
			StatusCounts: map[core.Status]int{
				core.Balanced: 0,
				core.Shortage: 0,
				core.Surplus:  0,
			},
		},
	}

	buckets := make(map[string]*Bucket)
	if pred.WholeYear() {
		year := pred.start.Year()
		for m := 1; m <= 12; m++ {
			key := core.NewDate(year, m, 1).MonthKey()
			buckets[key] = newBucket(key)
		}
	}
	bucket := func(d core.Date) *Bucket {
		key := pred.bucketKey(d)
		b, ok := buckets[key]
		if !ok {
			b = newBucket(key)
			buckets[key] = b
		}
		return b
	}

	for _, r := range reports {
		if err := r.Date.Validate(); err != nil {
			return Result{}, fmt.Errorf("report %q: %w", r.ID, err)
		}
		if !scope.includes(r.StoreID) || !pred.Contains(r.Date) {
			continue
		}
		f := reconcile.Derive(r)
		b := bucket(r.Date)
		b.NetSales = b.NetSales.Add(f.TotalEodSales)
		b.RecordedProfit = b.RecordedProfit.Add(f.RecordedProfit)
		b.FundIn = b.FundIn.Add(r.FundIn)

		res.Totals.ReportCount++
		res.Totals.GrossSales = res.Totals.GrossSales.Add(f.TotalEodSales)
		res.Totals.NetProfit = res.Totals.NetProfit.Add(f.RecordedProfit)
		res.Totals.FundIn = res.Totals.FundIn.Add(r.FundIn)
		res.Totals.StatusCounts[f.Status]++
	}

	for _, e := range expenses {
		if err := e.Date.Validate(); err != nil {
			return Result{}, fmt.Errorf("expense %q: %w", e.ID, err)
		}
		if !scope.includes(e.StoreID) || !pred.Contains(e.Date) {
			continue
		}
		b := bucket(e.Date)
		res.Totals.ExpenseCount++
		if e.IsFundIn() {
			b.FundIn = b.FundIn.Add(e.Amount)
			res.Totals.FundIn = res.Totals.FundIn.Add(e.Amount)
			continue
		}
		b.Expenses = b.Expenses.Add(e.Amount)
		res.Totals.Expenses = res.Totals.Expenses.Add(e.Amount)
	}

	res.Totals.RunningProfit = res.Totals.NetProfit.Sub(res.Totals.Expenses)

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	res.Series = make([]Bucket, 0, len(keys))
	for _, k := range keys {
		res.Series = append(res.Series, *buckets[k])
	}
	return res, nil
}
