// Package reconcile holds the daily reconciliation formula. Every surface that
// shows a derived figure (write path, history rollup, period analytics, the
// recompute worker) goes through Derive.
package reconcile

import (
	"github.com/shopspring/decimal"

	"cashrecon/internal/core"
)

// FormulaVersion is stamped on persisted reports. Bump it whenever Derive
// changes so the recompute worker restates older rows.
const FormulaVersion = 1

// Figures are the derived values of one daily report.
type Figures struct {
	TotalStartFund     decimal.Decimal `json:"totalStartFund"`
	TotalEndAssets     decimal.Decimal `json:"totalEndAssets"`
	Sales              SalesTotals     `json:"sales"`
	OperationalTotal   decimal.Decimal `json:"operationalExpensesTotal"`
	TotalExpenses      decimal.Decimal `json:"totalExpenses"`
	TheoreticalGrowth  decimal.Decimal `json:"theoreticalGrowth"`
	RawDerivedGcashNet decimal.Decimal `json:"rawDerivedGcashNet"`
	DerivedGcashNet    decimal.Decimal `json:"derivedGcashNet"`
	EffectiveGcashNet  decimal.Decimal `json:"effectiveGcashNet"`
	TotalEodSales      decimal.Decimal `json:"totalEodSales"`
	RecordedProfit     decimal.Decimal `json:"recordedProfit"`
	Discrepancy        decimal.Decimal `json:"discrepancy"`
	NotebookDifference decimal.Decimal `json:"notebookDifference"`
	Status             core.Status     `json:"status"`
}

// ActualCashSales is the growth of assets over the day.
func (f Figures) ActualCashSales() decimal.Decimal {
	return f.TheoreticalGrowth
}

// Derive computes the figures of a report from its entered values only.
// Inputs are expected to be validated already; Derive never fails.
func Derive(r core.DailyReport) Figures {
	var f Figures
	f.TotalStartFund = core.SumAmounts(r.SODGpo, r.SODGcash, r.SODPettyCash, r.FundIn, r.CashATM)
	f.TotalEndAssets = core.SumAmounts(r.EODGpo, r.EODGcash, r.EODActualCash)
	f.Sales = SummarizeSales(r.CustomSales, r.PosSalesDetails)

	f.OperationalTotal = operationalTotal(r)
	f.TotalExpenses = r.BankTransferFees.Add(f.OperationalTotal)

	f.TheoreticalGrowth = f.TotalEndAssets.Sub(f.TotalStartFund)
	f.RawDerivedGcashNet = f.TheoreticalGrowth.Sub(f.Sales.Revenue)
	f.DerivedGcashNet = core.Snap(f.RawDerivedGcashNet)

	f.EffectiveGcashNet = f.DerivedGcashNet
	f.NotebookDifference = decimal.Zero
	if r.GcashNotebook != nil {
		f.EffectiveGcashNet = *r.GcashNotebook
		f.NotebookDifference = core.Snap(f.DerivedGcashNet.Sub(*r.GcashNotebook))
	}

	f.TotalEodSales = f.EffectiveGcashNet.Add(f.Sales.Revenue)
	f.RecordedProfit = f.EffectiveGcashNet.Add(f.Sales.Net).Sub(f.TotalExpenses)
	f.Discrepancy = f.EffectiveGcashNet
	f.Status = Classify(f.Discrepancy)
	return f
}

// Classify maps a discrepancy to its variance status.
func Classify(discrepancy decimal.Decimal) core.Status {
	switch {
	case discrepancy.Abs().LessThan(core.BalancedTolerance):
		return core.Balanced
	case discrepancy.IsNegative():
		return core.Shortage
	default:
		return core.Surplus
	}
}

// ComputeDailyReport returns r with every derived field refreshed and the
// current FormulaVersion stamped.
func ComputeDailyReport(r core.DailyReport) core.DailyReport {
	f := Derive(r)
	r.TotalStartFund = f.TotalStartFund
	r.TotalEndAssets = f.TotalEndAssets
	// Persisted so that totalNetSales + discrepancy == totalEodSales.
	r.TotalNetSales = f.Sales.Revenue
	r.TotalExpenses = f.TotalExpenses
	r.TheoreticalGrowth = f.TheoreticalGrowth
	r.RecordedProfit = f.RecordedProfit
	r.Discrepancy = f.Discrepancy
	r.NotebookDifference = f.NotebookDifference
	r.Status = f.Status
	r.FormulaVersion = FormulaVersion
	return r
}

// IsStale reports whether the persisted derived fields of r disagree with a
// fresh derivation, or were produced by an older formula.
func IsStale(r core.DailyReport) bool {
	if r.FormulaVersion != FormulaVersion {
		return true
	}
	fresh := ComputeDailyReport(r)
	return !(fresh.TotalStartFund.Equal(r.TotalStartFund) &&
		fresh.TotalEndAssets.Equal(r.TotalEndAssets) &&
		fresh.TotalNetSales.Equal(r.TotalNetSales) &&
		fresh.TotalExpenses.Equal(r.TotalExpenses) &&
		fresh.TheoreticalGrowth.Equal(r.TheoreticalGrowth) &&
		fresh.RecordedProfit.Equal(r.RecordedProfit) &&
		fresh.Discrepancy.Equal(r.Discrepancy) &&
		fresh.NotebookDifference.Equal(r.NotebookDifference) &&
		fresh.Status == r.Status)
}

func operationalTotal(r core.DailyReport) decimal.Decimal {
	if len(r.Expenses) == 0 {
		return r.OperationalExpenses
	}
	total := decimal.Zero
	for _, e := range r.Expenses {
		total = total.Add(e.Amount)
	}
	return total
}
