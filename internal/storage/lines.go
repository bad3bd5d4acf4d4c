package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cashrecon/internal/core"
	"cashrecon/internal/sources"
)

func (r *Repository) AddPosLine(ctx context.Context, l core.PosSaleLine) error {
	if err := l.Validate(); err != nil {
		return err
	}
	var reportID any
	if l.ReportID != "" {
		reportID = l.ReportID
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pos line: %w", err)
	}
	defer tx.Rollback()

	// Locking the report row orders this insert against a concurrent submit.
	query := `SELECT phase FROM daily_reports WHERE store_id = ? AND report_date = ?`
	if r.dialect == Postgres {
		query += ` FOR UPDATE`
	}
	var phase string
	err = tx.QueryRowContext(ctx, r.rebind(query), l.StoreID, l.Date.String()).Scan(&phase)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("check report of pos line: %w", err)
	case core.Phase(phase) == core.PhaseSubmitted:
		return fmt.Errorf("pos line %s: report of %s on %s already submitted: %w", l.ID, l.StoreID, l.Date, sources.ErrConflict)
	}

	_, err = tx.ExecContext(ctx, r.rebind(`INSERT INTO pos_sale_lines
		(id, store_id, sale_date, report_id, name, price, cost, quantity, category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		l.ID, l.StoreID, l.Date.String(), reportID, l.Name, l.Price, l.Cost, l.Quantity, l.Category)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("pos line %s: %w", l.ID, sources.ErrDuplicate)
		}
		return fmt.Errorf("create pos line: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pos line: %w", err)
	}
	return nil
}

func (r *Repository) PendingPosLines(ctx context.Context, storeID string, date core.Date) ([]core.PosSaleLine, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT id, store_id, sale_date, report_id, name, price, cost, quantity, category
		FROM pos_sale_lines
		WHERE store_id = ? AND sale_date = ? AND report_id IS NULL
		ORDER BY created_at, id`), storeID, date.String())
	if err != nil {
		return nil, fmt.Errorf("list pending pos lines: %w", err)
	}
	defer rows.Close()

	var out []core.PosSaleLine
	for rows.Next() {
		var (
			l        core.PosSaleLine
			day      dateColumn
			reportID sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.StoreID, &day, &reportID, &l.Name, &l.Price, &l.Cost, &l.Quantity, &l.Category); err != nil {
			return nil, fmt.Errorf("scan pos line: %w", err)
		}
		l.Date = day.Date
		l.ReportID = reportID.String
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repository) AddExpense(ctx context.Context, e core.GeneralExpense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, r.rebind(`INSERT INTO general_expenses
		(id, store_id, expense_date, category, amount, description)
		VALUES (?, ?, ?, ?, ?, ?)`),
		e.ID, e.StoreID, e.Date.String(), e.Category, e.Amount, e.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("expense %s: %w", e.ID, sources.ErrDuplicate)
		}
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

func (r *Repository) ListExpenses(ctx context.Context, f sources.Filter) ([]core.GeneralExpense, error) {
	where, args := filterClause(f, "store_id", "expense_date")
	rows, err := r.db.QueryContext(ctx, r.rebind(`SELECT id, store_id, expense_date, category, amount, description
		FROM general_expenses`+where+` ORDER BY expense_date, id`), args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.GeneralExpense
	for rows.Next() {
		var (
			e   core.GeneralExpense
			day dateColumn
		)
		if err := rows.Scan(&e.ID, &e.StoreID, &day, &e.Category, &e.Amount, &e.Description); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Date = day.Date
		out = append(out, e)
	}
	return out, rows.Err()
}
