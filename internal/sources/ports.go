// Package sources declares the collaborators the reconciliation services read
// from and write to. Adapters live in subpackages and in internal/storage.
package sources

import (
	"context"
	"errors"

	"cashrecon/internal/core"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
	// ErrConflict is returned when a conditional write finds the row changed
	// underneath it: a report no longer open, or a stale version.
	ErrConflict = errors.New("conflicting update")
)

// Filter scopes list queries. Empty fields are unbounded.
type Filter struct {
	StoreID string
	From    core.Date
	To      core.Date
}

// Matches reports whether an entity of storeID on d passes the filter.
func (f Filter) Matches(storeID string, d core.Date) bool {
	if f.StoreID != "" && f.StoreID != storeID {
		return false
	}
	if !f.From.IsZero() && d.Before(f.From.Time) {
		return false
	}
	if !f.To.IsZero() && d.After(f.To.Time) {
		return false
	}
	return true
}

// Ports for outbound adapters.
type (
	StoreRepository interface {
		CreateStore(ctx context.Context, s core.Store) error
		GetStore(ctx context.Context, id string) (core.Store, error)
		ListStores(ctx context.Context) ([]core.Store, error)
	}

	ReportReader interface {
		GetReport(ctx context.Context, id string) (core.DailyReport, error)
		// FindReport looks a report up by its business key.
		FindReport(ctx context.Context, storeID string, date core.Date) (core.DailyReport, error)
		ListReports(ctx context.Context, f Filter) ([]core.DailyReport, error)
		// ListOutdatedReports returns submitted reports stamped with a formula
		// version below the given one, oldest first.
		ListOutdatedReports(ctx context.Context, formulaVersion int, limit int) ([]core.DailyReport, error)
	}

	ReportWriter interface {
		// CreateReport inserts an open report. ErrDuplicate when (store, date) exists.
		CreateReport(ctx context.Context, r core.DailyReport) error
		// SubmitReport moves an open report to submitted and attaches the
		// given POS lines to it in one step. ErrConflict when not open or when
		// the store's day has pending lines missing from posLineIDs.
		SubmitReport(ctx context.Context, r core.DailyReport, posLineIDs []string) error
		// UpdateReport replaces a report when its stored version equals
		// expectedVersion. ErrConflict otherwise.
		UpdateReport(ctx context.Context, r core.DailyReport, expectedVersion int) error
	}

	PosLineStore interface {
		// AddPosLine stores a pending line. ErrConflict when the report of the
		// line's store and date is already submitted.
		AddPosLine(ctx context.Context, l core.PosSaleLine) error
		// PendingPosLines returns lines of the store and date not yet attached to a report.
		PendingPosLines(ctx context.Context, storeID string, date core.Date) ([]core.PosSaleLine, error)
	}

	ExpenseWriter interface {
		AddExpense(ctx context.Context, e core.GeneralExpense) error
	}

	ExpenseLister interface {
		ListExpenses(ctx context.Context, f Filter) ([]core.GeneralExpense, error)
	}

	// Repository is the full persistence surface of a data backend.
	Repository interface {
		StoreRepository
		ReportReader
		ReportWriter
		PosLineStore
		ExpenseWriter
		ExpenseLister
	}
)
