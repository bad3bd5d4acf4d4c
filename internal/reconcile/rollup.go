package reconcile

import (
	"github.com/shopspring/decimal"

	"cashrecon/internal/core"
)

// Summary is the footer row of a report listing.
type Summary struct {
	ReportCount        int                 `json:"reportCount"`
	TotalStartFund     decimal.Decimal     `json:"totalStartFund"`
	TotalEndAssets     decimal.Decimal     `json:"totalEndAssets"`
	SalesRevenue       decimal.Decimal     `json:"salesRevenue"`
	SalesNet           decimal.Decimal     `json:"salesNet"`
	BankTransferFees   decimal.Decimal     `json:"bankTransferFees"`
	TotalExpenses      decimal.Decimal     `json:"totalExpenses"`
	TheoreticalGrowth  decimal.Decimal     `json:"theoreticalGrowth"`
	Discrepancy        decimal.Decimal     `json:"discrepancy"`
	TotalEodSales      decimal.Decimal     `json:"totalEodSales"`
	RecordedProfit     decimal.Decimal     `json:"recordedProfit"`
	NotebookDifference decimal.Decimal     `json:"notebookDifference"`
	StatusCounts       map[core.Status]int `json:"statusCounts"`
	Stale              int                 `json:"stale"`
}

// RollupTotals re-derives every report and sums the columns. Persisted
// derived fields are never read, only compared to count stale rows.
func RollupTotals(reports []core.DailyReport) Summary {
	s := Summary{
		TotalStartFund:     decimal.Zero,
		TotalEndAssets:     decimal.Zero,
		SalesRevenue:       decimal.Zero,
		SalesNet:           decimal.Zero,
		BankTransferFees:   decimal.Zero,
		TotalExpenses:      decimal.Zero,
		TheoreticalGrowth:  decimal.Zero,
		Discrepancy:        decimal.Zero,
		TotalEodSales:      decimal.Zero,
		RecordedProfit:     decimal.Zero,
		NotebookDifference: decimal.Zero,
		StatusCounts: map[core.Status]int{
			core.Balanced: 0,
			core.Shortage: 0,
			core.Surplus:  0,
		},
	}
	for _, r := range reports {
		f := Derive(r)
		s.ReportCount++
		s.TotalStartFund = s.TotalStartFund.Add(f.TotalStartFund)
		s.TotalEndAssets = s.TotalEndAssets.Add(f.TotalEndAssets)
		s.SalesRevenue = s.SalesRevenue.Add(f.Sales.Revenue)
		s.SalesNet = s.SalesNet.Add(f.Sales.Net)
		s.BankTransferFees = s.BankTransferFees.Add(r.BankTransferFees)
		s.TotalExpenses = s.TotalExpenses.Add(f.TotalExpenses)
		s.TheoreticalGrowth = s.TheoreticalGrowth.Add(f.TheoreticalGrowth)
		s.Discrepancy = s.Discrepancy.Add(f.Discrepancy)
		s.TotalEodSales = s.TotalEodSales.Add(f.TotalEodSales)
		s.RecordedProfit = s.RecordedProfit.Add(f.RecordedProfit)
		s.NotebookDifference = s.NotebookDifference.Add(f.NotebookDifference)
		s.StatusCounts[f.Status]++
		if IsStale(r) {
			s.Stale++
		}
	}
	return s
}
