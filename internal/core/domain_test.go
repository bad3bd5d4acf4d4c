package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
		{Date{Time: time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)}, false},
		{Date{Time: time.Date(2025, 3, 1, 0, 0, 0, 0, time.FixedZone("PHT", 8*3600))}, false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok {
			assert.NoError(t, err, "case %d", i)
		} else {
			assert.ErrorIs(t, err, ErrInvalidDate, "case %d", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-07")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-07", d.String())
	assert.Equal(t, "2025-03", d.MonthKey())

	for _, bad := range []string{"", "2025-13-01", "07/03/2025", "2025-3-7"} {
		_, err := ParseDate(bad)
		assert.ErrorIs(t, err, ErrInvalidDate, "input %q", bad)
	}
}

func TestDateJSON(t *testing.T) {
	var payload struct {
		Date Date `json:"date"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2025-07-01"}`), &payload))
	assert.Equal(t, NewDate(2025, 7, 1), payload.Date)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2025-07-01"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"date":"yesterday"}`), &payload))
}

func TestGeneralExpenseIsFundIn(t *testing.T) {
	assert.True(t, GeneralExpense{Category: "GPO Fund-in"}.IsFundIn())
	assert.True(t, GeneralExpense{Category: " gpo fund-in "}.IsFundIn())
	assert.False(t, GeneralExpense{Category: "Utilities"}.IsFundIn())
}

func TestGeneralExpenseValidate(t *testing.T) {
	good := GeneralExpense{
		StoreID:  "s1",
		Date:     NewDate(2025, 1, 1),
		Category: "Utilities",
		Amount:   MustAmount("12.50"),
	}
	require.NoError(t, good.Validate())

	bads := []GeneralExpense{
		{Date: NewDate(2025, 1, 1), Category: "c", Amount: decimal.NewFromInt(1)},
		{StoreID: "s1", Category: "c", Amount: decimal.NewFromInt(1)},
		{StoreID: "s1", Date: NewDate(2025, 1, 1), Amount: decimal.NewFromInt(1)},
		{StoreID: "s1", Date: NewDate(2025, 1, 1), Category: "c", Amount: decimal.NewFromInt(-1)},
	}
	for i, e := range bads {
		assert.Error(t, e.Validate(), "case %d", i)
	}
}

func TestPosSaleLineValidate(t *testing.T) {
	line := PosSaleLine{
		StoreID:  "s1",
		Date:     NewDate(2025, 1, 1),
		Name:     "Soda",
		Price:    decimal.NewFromInt(50),
		Cost:     decimal.NewFromInt(30),
		Quantity: 4,
	}
	require.NoError(t, line.Validate())

	line.Quantity = 0
	assert.ErrorIs(t, line.Validate(), ErrInvalidQuantity)
}

func TestDailyReportValidate(t *testing.T) {
	base := DailyReport{
		StoreID: "s1",
		Date:    NewDate(2025, 1, 1),
		SODGpo:  decimal.NewFromInt(1000),
	}
	require.NoError(t, base.Validate())

	cases := map[string]func(r *DailyReport){
		"missing store":    func(r *DailyReport) { r.StoreID = "" },
		"zero date":        func(r *DailyReport) { r.Date = Date{} },
		"negative sod":     func(r *DailyReport) { r.SODGcash = decimal.NewFromInt(-5) },
		"negative eod":     func(r *DailyReport) { r.EODActualCash = decimal.NewFromInt(-5) },
		"negative fee":     func(r *DailyReport) { r.BankTransferFees = decimal.NewFromInt(-1) },
		"bad phase":        func(r *DailyReport) { r.Phase = "draft" },
		"bad manual line":  func(r *DailyReport) { r.CustomSales = []ManualSaleLine{{Name: "fee", Amount: decimal.NewFromInt(-1)}} },
		"zero pos qty":     func(r *DailyReport) { r.PosSalesDetails = []PosSaleLine{{Name: "x", Price: decimal.NewFromInt(1)}} },
		"negative expense": func(r *DailyReport) { r.Expenses = []ExpenseLine{{Amount: decimal.NewFromInt(-3)}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := base
			mutate(&r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestDailyReportValidateAllowsNegativeDerivedFields(t *testing.T) {
	notebook := decimal.NewFromInt(-40)
	r := DailyReport{
		StoreID:           "s1",
		Date:              NewDate(2025, 1, 1),
		GcashNotebook:     &notebook,
		Discrepancy:       decimal.NewFromInt(-40),
		TheoreticalGrowth: decimal.NewFromInt(-10),
	}
	assert.NoError(t, r.Validate())
}
