// Package google reads general expenses kept in a Google Sheets ledger.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cashrecon/internal/core"
	"cashrecon/internal/log"
	"cashrecon/internal/sources"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	expensesSheet string
	logger        *log.Logger
}

var _ sources.ExpenseLister = (*Client)(nil)

// Options configure the client. Exactly one of CredentialsJSON or
// CredentialsFile must be set.
type Options struct {
	SpreadsheetID   string
	ExpensesSheet   string
	CredentialsJSON string
	CredentialsFile string
	Logger          *log.Logger
}

// New creates a read-only Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheet := strings.TrimSpace(opts.ExpensesSheet)
	if sheet == "" {
		sheet = "Expenses"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	creds, err := credentials(opts)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", spreadsheetID, "sheet", sheet)

	return &Client{svc: svc, spreadsheetID: spreadsheetID, expensesSheet: sheet, logger: logger}, nil
}

func credentials(opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials")
	}
}

// ListExpenses scans the expenses sheet and returns the rows that pass f.
func (c *Client) ListExpenses(ctx context.Context, f sources.Filter) ([]core.GeneralExpense, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:F", c.expensesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out, err := parseExpenses(resp.Values, f)
	if err != nil {
		c.logger.WarnContext(ctx, "Rejected expenses sheet", "range", rng, log.FieldError, err)
		return nil, fmt.Errorf("parse %s: %w", rng, err)
	}
	c.logger.DebugContext(ctx, "Read expenses sheet", "range", rng, log.FieldCount, len(out))
	return out, nil
}
