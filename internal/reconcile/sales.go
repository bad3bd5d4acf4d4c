package reconcile

import (
	"github.com/shopspring/decimal"

	"cashrecon/internal/core"
)

// SalesTotals is the merged view of manual and POS sales.
type SalesTotals struct {
	ManualRevenue decimal.Decimal `json:"manualRevenue"`
	ManualCost    decimal.Decimal `json:"manualCost"`
	ManualNet     decimal.Decimal `json:"manualNet"`
	PosRevenue    decimal.Decimal `json:"posRevenue"`
	PosCost       decimal.Decimal `json:"posCost"`
	PosNet        decimal.Decimal `json:"posNet"`
	Revenue       decimal.Decimal `json:"revenue"`
	Cost          decimal.Decimal `json:"cost"`
	Net           decimal.Decimal `json:"net"`
}

// SummarizeSales folds both sales sources into revenue, cost and net figures.
// A POS quantity multiplies both price and cost; a manual line counts once.
func SummarizeSales(custom []core.ManualSaleLine, pos []core.PosSaleLine) SalesTotals {
	s := SalesTotals{
		ManualRevenue: decimal.Zero,
		ManualCost:    decimal.Zero,
		PosRevenue:    decimal.Zero,
		PosCost:       decimal.Zero,
	}
	for _, l := range custom {
		s.ManualRevenue = s.ManualRevenue.Add(l.Amount)
		s.ManualCost = s.ManualCost.Add(l.Cost)
	}
	for _, l := range pos {
		qty := decimal.NewFromInt(l.Quantity)
		s.PosRevenue = s.PosRevenue.Add(l.Price.Mul(qty))
		s.PosCost = s.PosCost.Add(l.Cost.Mul(qty))
	}
	s.ManualNet = s.ManualRevenue.Sub(s.ManualCost)
	s.PosNet = s.PosRevenue.Sub(s.PosCost)
	s.Revenue = s.ManualRevenue.Add(s.PosRevenue)
	s.Cost = s.ManualCost.Add(s.PosCost)
	s.Net = s.ManualNet.Add(s.PosNet)
	return s
}
