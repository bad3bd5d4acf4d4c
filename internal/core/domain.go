package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Balanced Status = "BALANCED"
	Shortage Status = "SHORTAGE"
	Surplus  Status = "SURPLUS"
)

const (
	PhaseOpen      Phase = "open"
	PhaseSubmitted Phase = "submitted"
)

// CategoryFundIn marks a general expense row that is a fund injection, not a cost.
const CategoryFundIn = "GPO Fund-in"

const dateLayout = "2006-01-02"

type (
	Status string
	Phase  string

	Date struct {
		time.Time
	}

	Store struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Location string `json:"location"`
	}

	// ManualSaleLine is a free-form sale recorded outside the POS.
	ManualSaleLine struct {
		ID       string          `json:"id"`
		Name     string          `json:"name"`
		Amount   decimal.Decimal `json:"amount"`
		Cost     decimal.Decimal `json:"cost"`
		Category string          `json:"category,omitempty"`
	}

	// PosSaleLine is a cart line produced by the point of sale. ReportID is
	// empty while the line is pending reconciliation.
	PosSaleLine struct {
		ID       string          `json:"id"`
		StoreID  string          `json:"storeId"`
		Date     Date            `json:"date"`
		ReportID string          `json:"reportId,omitempty"`
		Name     string          `json:"name"`
		Price    decimal.Decimal `json:"price"`
		Cost     decimal.Decimal `json:"cost"`
		Quantity int64           `json:"quantity"`
		Category string          `json:"category,omitempty"`
	}

	ExpenseLine struct {
		ID          string          `json:"id"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
	}

	GeneralExpense struct {
		ID          string          `json:"id"`
		StoreID     string          `json:"storeId"`
		Date        Date            `json:"date"`
		Category    string          `json:"category"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
	}

	// DailyReport is the reconciliation statement of one store for one day.
	DailyReport struct {
		ID      string `json:"id"`
		StoreID string `json:"storeId"`
		Date    Date   `json:"date"`

		Phase          Phase     `json:"phase"`
		Version        int       `json:"version"`
		FormulaVersion int       `json:"formulaVersion"`
		CreatedAt      time.Time `json:"createdAt"`
		SubmittedAt    time.Time `json:"submittedAt"`
		UpdatedAt      time.Time `json:"updatedAt"`
		UpdatedBy      string    `json:"updatedBy,omitempty"`

		// Start of day, frozen once the day is opened.
		SODGpo           decimal.Decimal `json:"sodGpo"`
		SODGcash         decimal.Decimal `json:"sodGcash"`
		SODPettyCash     decimal.Decimal `json:"sodPettyCash"`
		SODPettyCashNote string          `json:"sodPettyCashNote,omitempty"`
		FundIn           decimal.Decimal `json:"fundIn"`
		CashATM          decimal.Decimal `json:"cashAtm"`

		// End of day.
		EODGpo        decimal.Decimal `json:"eodGpo"`
		EODGcash      decimal.Decimal `json:"eodGcash"`
		EODActualCash decimal.Decimal `json:"eodActualCash"`

		CustomSales     []ManualSaleLine `json:"customSales"`
		PosSalesDetails []PosSaleLine    `json:"posSalesDetails"`

		BankTransferFees decimal.Decimal `json:"bankTransferFees"`
		Expenses         []ExpenseLine   `json:"expenses"`
		// Deprecated: superseded by Expenses, only read when Expenses is empty.
		OperationalExpenses decimal.Decimal `json:"operationalExpenses"`

		GcashNotebook *decimal.Decimal `json:"gcashNotebook,omitempty"`

		// Derived, cached values. Recompute rather than trust.
		TotalStartFund     decimal.Decimal `json:"totalStartFund"`
		TotalEndAssets     decimal.Decimal `json:"totalEndAssets"`
		TotalNetSales      decimal.Decimal `json:"totalNetSales"`
		TotalExpenses      decimal.Decimal `json:"totalExpenses"`
		TheoreticalGrowth  decimal.Decimal `json:"theoreticalGrowth"`
		RecordedProfit     decimal.Decimal `json:"recordedProfit"`
		Discrepancy        decimal.Decimal `json:"discrepancy"`
		NotebookDifference decimal.Decimal `json:"notebookDifference"`
		Status             Status          `json:"status"`
	}
)

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNegativeAmount  = errors.New("amount cannot be negative")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrEmptyStoreID    = errors.New("empty store id")
	ErrEmptyName       = errors.New("empty name")
	ErrEmptyCategory   = errors.New("empty category")
	ErrInvalidPhase    = errors.New("invalid phase")
)

// ParseDate parses a YYYY-MM-DD string into a UTC Date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	y, m, day := d.Date()
	if d.Location() != time.UTC || !d.Equal(time.Date(y, m, day, 0, 0, 0, 0, time.UTC)) {
		return fmt.Errorf("%w: %s is not a UTC calendar day", ErrInvalidDate, d.Time.Format(time.RFC3339))
	}
	return nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MonthKey formats the date as YYYY-MM.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (d Date) Day() int {
	return d.Time.Day()
}

func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) Year() int {
	return d.Time.Year()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (s Status) Valid() bool {
	switch s {
	case Balanced, Shortage, Surplus:
		return true
	}
	return false
}

func (p Phase) Valid() bool {
	return p == PhaseOpen || p == PhaseSubmitted
}

// IsFundIn reports whether the row is a fund injection.
func (e GeneralExpense) IsFundIn() bool {
	return strings.EqualFold(strings.TrimSpace(e.Category), CategoryFundIn)
}

func nonNegative(field string, d decimal.Decimal) error {
	if d.IsNegative() {
		return fmt.Errorf("%s: %w", field, ErrNegativeAmount)
	}
	return nil
}

func (s Store) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if len(s.Name) > 120 {
		return errors.New("store name too long (max 120 characters)")
	}
	return nil
}

func (l ManualSaleLine) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrEmptyName
	}
	if err := nonNegative("amount", l.Amount); err != nil {
		return err
	}
	return nonNegative("cost", l.Cost)
}

func (l PosSaleLine) Validate() error {
	if strings.TrimSpace(l.StoreID) == "" {
		return ErrEmptyStoreID
	}
	if err := l.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(l.Name) == "" {
		return ErrEmptyName
	}
	if l.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if err := nonNegative("price", l.Price); err != nil {
		return err
	}
	return nonNegative("cost", l.Cost)
}

func (l ExpenseLine) Validate() error {
	if len(l.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nonNegative("amount", l.Amount)
}

func (e GeneralExpense) Validate() error {
	if strings.TrimSpace(e.StoreID) == "" {
		return ErrEmptyStoreID
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if len(e.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return nonNegative("amount", e.Amount)
}

// ValidateOpening checks the start-of-day inputs.
func (r DailyReport) ValidateOpening() error {
	if strings.TrimSpace(r.StoreID) == "" {
		return ErrEmptyStoreID
	}
	if err := r.Date.Validate(); err != nil {
		return err
	}
	checks := []struct {
		name  string
		value decimal.Decimal
	}{
		{"sodGpo", r.SODGpo},
		{"sodGcash", r.SODGcash},
		{"sodPettyCash", r.SODPettyCash},
		{"fundIn", r.FundIn},
		{"cashAtm", r.CashATM},
	}
	for _, c := range checks {
		if err := nonNegative(c.name, c.value); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks every entered value of the report. Derived fields are not
// inspected since they may legitimately be negative.
func (r DailyReport) Validate() error {
	if err := r.ValidateOpening(); err != nil {
		return err
	}
	if r.Phase != "" && !r.Phase.Valid() {
		return ErrInvalidPhase
	}
	checks := []struct {
		name  string
		value decimal.Decimal
	}{
		{"eodGpo", r.EODGpo},
		{"eodGcash", r.EODGcash},
		{"eodActualCash", r.EODActualCash},
		{"bankTransferFees", r.BankTransferFees},
		{"operationalExpenses", r.OperationalExpenses},
	}
	for _, c := range checks {
		if err := nonNegative(c.name, c.value); err != nil {
			return err
		}
	}
	for i, l := range r.CustomSales {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("customSales[%d]: %w", i, err)
		}
	}
	for i, l := range r.PosSalesDetails {
		if l.Quantity <= 0 {
			return fmt.Errorf("posSalesDetails[%d]: %w", i, ErrInvalidQuantity)
		}
		if err := nonNegative("price", l.Price); err != nil {
			return fmt.Errorf("posSalesDetails[%d]: %w", i, err)
		}
		if err := nonNegative("cost", l.Cost); err != nil {
			return fmt.Errorf("posSalesDetails[%d]: %w", i, err)
		}
	}
	for i, l := range r.Expenses {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("expenses[%d]: %w", i, err)
		}
	}
	return nil
}
