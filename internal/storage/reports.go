package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"cashrecon/internal/core"
	"cashrecon/internal/sources"
)

const reportColumns = `id, store_id, report_date, phase, version, formula_version,
	created_at, submitted_at, updated_at, updated_by,
	sod_gpo, sod_gcash, sod_petty_cash, sod_petty_cash_note, fund_in, cash_atm,
	eod_gpo, eod_gcash, eod_actual_cash,
	custom_sales, pos_sales_details, bank_transfer_fees, expenses, operational_expenses, gcash_notebook,
	total_start_fund, total_end_assets, total_net_sales, total_expenses,
	theoretical_growth, recorded_profit, discrepancy, notebook_difference, status`

// mutableColumns are rewritten on submission and override. Identity and
// creation time never change.
const mutableColumns = `phase = ?, version = ?, formula_version = ?,
	submitted_at = ?, updated_at = ?, updated_by = ?,
	sod_gpo = ?, sod_gcash = ?, sod_petty_cash = ?, sod_petty_cash_note = ?, fund_in = ?, cash_atm = ?,
	eod_gpo = ?, eod_gcash = ?, eod_actual_cash = ?,
	custom_sales = ?, pos_sales_details = ?, bank_transfer_fees = ?, expenses = ?, operational_expenses = ?, gcash_notebook = ?,
	total_start_fund = ?, total_end_assets = ?, total_net_sales = ?, total_expenses = ?,
	theoretical_growth = ?, recorded_profit = ?, discrepancy = ?, notebook_difference = ?, status = ?`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (core.DailyReport, error) {
	var (
		r                               core.DailyReport
		date                            dateColumn
		createdAt, submittedAt, updated timeColumn
		customSales, posSales, expenses string
		notebook                        decimal.NullDecimal
		phase, status                   string
	)
	err := row.Scan(
		&r.ID, &r.StoreID, &date, &phase, &r.Version, &r.FormulaVersion,
		&createdAt, &submittedAt, &updated, &r.UpdatedBy,
		&r.SODGpo, &r.SODGcash, &r.SODPettyCash, &r.SODPettyCashNote, &r.FundIn, &r.CashATM,
		&r.EODGpo, &r.EODGcash, &r.EODActualCash,
		&customSales, &posSales, &r.BankTransferFees, &expenses, &r.OperationalExpenses, &notebook,
		&r.TotalStartFund, &r.TotalEndAssets, &r.TotalNetSales, &r.TotalExpenses,
		&r.TheoreticalGrowth, &r.RecordedProfit, &r.Discrepancy, &r.NotebookDifference, &status,
	)
	if err != nil {
		return core.DailyReport{}, err
	}
	r.Date = date.Date
	r.Phase = core.Phase(phase)
	r.Status = core.Status(status)
	r.CreatedAt = createdAt.Time
	r.SubmittedAt = submittedAt.Time
	r.UpdatedAt = updated.Time
	if notebook.Valid {
		nb := notebook.Decimal
		r.GcashNotebook = &nb
	}
	if err := json.Unmarshal([]byte(customSales), &r.CustomSales); err != nil {
		return core.DailyReport{}, fmt.Errorf("decode custom sales of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(posSales), &r.PosSalesDetails); err != nil {
		return core.DailyReport{}, fmt.Errorf("decode pos sales of %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(expenses), &r.Expenses); err != nil {
		return core.DailyReport{}, fmt.Errorf("decode expenses of %s: %w", r.ID, err)
	}
	return r, nil
}

func encodeLines(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

// mutableArgs returns the values of mutableColumns in order.
func mutableArgs(r core.DailyReport) ([]any, error) {
	customSales, err := encodeLines(r.CustomSales)
	if err != nil {
		return nil, fmt.Errorf("encode custom sales: %w", err)
	}
	posSales, err := encodeLines(r.PosSalesDetails)
	if err != nil {
		return nil, fmt.Errorf("encode pos sales: %w", err)
	}
	expenses, err := encodeLines(r.Expenses)
	if err != nil {
		return nil, fmt.Errorf("encode expenses: %w", err)
	}
	var notebook any
	if r.GcashNotebook != nil {
		notebook = r.GcashNotebook.String()
	}
	return []any{
		string(r.Phase), r.Version, r.FormulaVersion,
		nullTime(r.SubmittedAt), r.UpdatedAt.UTC(), r.UpdatedBy,
		r.SODGpo, r.SODGcash, r.SODPettyCash, r.SODPettyCashNote, r.FundIn, r.CashATM,
		r.EODGpo, r.EODGcash, r.EODActualCash,
		customSales, posSales, r.BankTransferFees, expenses, r.OperationalExpenses, notebook,
		r.TotalStartFund, r.TotalEndAssets, r.TotalNetSales, r.TotalExpenses,
		r.TheoreticalGrowth, r.RecordedProfit, r.Discrepancy, r.NotebookDifference, string(r.Status),
	}, nil
}

func (r *Repository) CreateReport(ctx context.Context, rep core.DailyReport) error {
	if err := rep.ValidateOpening(); err != nil {
		return err
	}
	args, err := mutableArgs(rep)
	if err != nil {
		return err
	}
	args = append([]any{rep.ID, rep.StoreID, rep.Date.String(), rep.CreatedAt.UTC()}, args...)

	query := `INSERT INTO daily_reports (id, store_id, report_date, created_at,
		phase, version, formula_version, submitted_at, updated_at, updated_by,
		sod_gpo, sod_gcash, sod_petty_cash, sod_petty_cash_note, fund_in, cash_atm,
		eod_gpo, eod_gcash, eod_actual_cash,
		custom_sales, pos_sales_details, bank_transfer_fees, expenses, operational_expenses, gcash_notebook,
		total_start_fund, total_end_assets, total_net_sales, total_expenses,
		theoretical_growth, recorded_profit, discrepancy, notebook_difference, status)
		VALUES (` + placeholders(len(args)) + `)`

	if _, err := r.db.ExecContext(ctx, r.rebind(query), args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("report %s on %s: %w", rep.StoreID, rep.Date, sources.ErrDuplicate)
		}
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

func (r *Repository) SubmitReport(ctx context.Context, rep core.DailyReport, posLineIDs []string) error {
	if err := rep.Validate(); err != nil {
		return err
	}
	args, err := mutableArgs(rep)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submit: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		r.rebind(`UPDATE daily_reports SET `+mutableColumns+` WHERE id = ? AND phase = ?`),
		append(args, rep.ID, string(core.PhaseOpen))...)
	if err != nil {
		return fmt.Errorf("submit report: %w", err)
	}
	if err := r.checkAffected(ctx, tx, res, rep.ID); err != nil {
		return err
	}

	if len(posLineIDs) > 0 {
		attachArgs := []any{rep.ID}
		for _, id := range posLineIDs {
			attachArgs = append(attachArgs, id)
		}
		query := `UPDATE pos_sale_lines SET report_id = ? WHERE report_id IS NULL AND id IN (` +
			placeholders(len(posLineIDs)) + `)`
		if _, err := tx.ExecContext(ctx, r.rebind(query), attachArgs...); err != nil {
			return fmt.Errorf("attach pos lines: %w", err)
		}
	}

	var unattached int
	err = tx.QueryRowContext(ctx, r.rebind(`SELECT COUNT(*) FROM pos_sale_lines
		WHERE store_id = ? AND sale_date = ? AND report_id IS NULL`), rep.StoreID, rep.Date.String()).Scan(&unattached)
	if err != nil {
		return fmt.Errorf("count pending pos lines: %w", err)
	}
	if unattached > 0 {
		return fmt.Errorf("report %s: %d pos lines arrived after the close was computed: %w", rep.ID, unattached, sources.ErrConflict)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit submit: %w", err)
	}
	return nil
}

func (r *Repository) UpdateReport(ctx context.Context, rep core.DailyReport, expectedVersion int) error {
	if err := rep.Validate(); err != nil {
		return err
	}
	args, err := mutableArgs(rep)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		r.rebind(`UPDATE daily_reports SET `+mutableColumns+` WHERE id = ? AND version = ?`),
		append(args, rep.ID, expectedVersion)...)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	if err := r.checkAffected(ctx, tx, res, rep.ID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

// checkAffected turns a conditional update that touched nothing into
// ErrNotFound or ErrConflict.
func (r *Repository) checkAffected(ctx context.Context, tx *sql.Tx, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = tx.QueryRowContext(ctx, r.rebind(`SELECT 1 FROM daily_reports WHERE id = ?`), id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("report %s: %w", id, sources.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check report %s: %w", id, err)
	}
	return fmt.Errorf("report %s: %w", id, sources.ErrConflict)
}

func (r *Repository) GetReport(ctx context.Context, id string) (core.DailyReport, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(`SELECT `+reportColumns+` FROM daily_reports WHERE id = ?`), id)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DailyReport{}, fmt.Errorf("report %s: %w", id, sources.ErrNotFound)
	}
	if err != nil {
		return core.DailyReport{}, fmt.Errorf("get report: %w", err)
	}
	return rep, nil
}

func (r *Repository) FindReport(ctx context.Context, storeID string, date core.Date) (core.DailyReport, error) {
	row := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT `+reportColumns+` FROM daily_reports WHERE store_id = ? AND report_date = ?`),
		storeID, date.String())
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.DailyReport{}, fmt.Errorf("report %s on %s: %w", storeID, date, sources.ErrNotFound)
	}
	if err != nil {
		return core.DailyReport{}, fmt.Errorf("find report: %w", err)
	}
	return rep, nil
}

func (r *Repository) ListReports(ctx context.Context, f sources.Filter) ([]core.DailyReport, error) {
	where, args := filterClause(f, "store_id", "report_date")
	query := `SELECT ` + reportColumns + ` FROM daily_reports` + where + ` ORDER BY report_date, store_id`
	return r.queryReports(ctx, query, args...)
}

func (r *Repository) ListOutdatedReports(ctx context.Context, formulaVersion int, limit int) ([]core.DailyReport, error) {
	query := `SELECT ` + reportColumns + ` FROM daily_reports
		WHERE phase = ? AND formula_version < ? ORDER BY report_date, store_id`
	args := []any{string(core.PhaseSubmitted), formulaVersion}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryReports(ctx, query, args...)
}

func (r *Repository) queryReports(ctx context.Context, query string, args ...any) ([]core.DailyReport, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []core.DailyReport
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}

func filterClause(f sources.Filter, storeCol, dateCol string) (string, []any) {
	var conds []string
	var args []any
	if f.StoreID != "" {
		conds = append(conds, storeCol+" = ?")
		args = append(args, f.StoreID)
	}
	if !f.From.IsZero() {
		conds = append(conds, dateCol+" >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		conds = append(conds, dateCol+" <= ?")
		args = append(args, f.To.String())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
