package google

import (
	"context"
	"sort"

	"cashrecon/internal/core"
	"cashrecon/internal/sources"
)

// MergedExpenses lists expenses from the repository and the sheet ledger
// together, ordered by date. Writes always go to the repository.
type MergedExpenses struct {
	primary sources.ExpenseLister
	sheet   sources.ExpenseLister
}

var _ sources.ExpenseLister = (*MergedExpenses)(nil)

func NewMergedExpenses(primary, sheet sources.ExpenseLister) *MergedExpenses {
	return &MergedExpenses{primary: primary, sheet: sheet}
}

func (m *MergedExpenses) ListExpenses(ctx context.Context, f sources.Filter) ([]core.GeneralExpense, error) {
	own, err := m.primary.ListExpenses(ctx, f)
	if err != nil {
		return nil, err
	}
	fromSheet, err := m.sheet.ListExpenses(ctx, f)
	if err != nil {
		return nil, err
	}
	out := append(own, fromSheet...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}
