package http

import (
	"github.com/shopspring/decimal"

	"cashrecon/internal/core"
	"cashrecon/internal/services"
)

// Money fields arrive as JSON numbers or strings and are rounded to cents.
func amount(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// amountOf reads a pointer field. Required fields are never nil after
// binding; a nil optional field counts as zero.
func amountOf(p *decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	return amount(*p)
}

type storeRequest struct {
	ID       string `json:"id" binding:"omitempty,max=64"`
	Name     string `json:"name" binding:"required,max=120"`
	Location string `json:"location" binding:"max=200"`
}

func (r storeRequest) toStore() core.Store {
	return core.Store{ID: r.ID, Name: r.Name, Location: r.Location}
}

type openRequest struct {
	SODGpo           *decimal.Decimal `json:"sodGpo" binding:"required,nonneg"`
	SODGcash         *decimal.Decimal `json:"sodGcash" binding:"required,nonneg"`
	SODPettyCash     *decimal.Decimal `json:"sodPettyCash" binding:"required,nonneg"`
	SODPettyCashNote string           `json:"sodPettyCashNote" binding:"max=500"`
	FundIn           *decimal.Decimal `json:"fundIn" binding:"omitempty,nonneg"`
	CashATM          *decimal.Decimal `json:"cashAtm" binding:"omitempty,nonneg"`
}

func (r openRequest) toOpening() services.Opening {
	return services.Opening{
		SODGpo:           amountOf(r.SODGpo),
		SODGcash:         amountOf(r.SODGcash),
		SODPettyCash:     amountOf(r.SODPettyCash),
		SODPettyCashNote: r.SODPettyCashNote,
		FundIn:           amountOf(r.FundIn),
		CashATM:          amountOf(r.CashATM),
	}
}

type manualSaleRequest struct {
	ID       string           `json:"id"`
	Name     string           `json:"name" binding:"required,max=200"`
	Amount   *decimal.Decimal `json:"amount" binding:"required,nonneg"`
	Cost     *decimal.Decimal `json:"cost" binding:"omitempty,nonneg"`
	Category string           `json:"category" binding:"max=100"`
}

type expenseLineRequest struct {
	ID          string           `json:"id"`
	Amount      *decimal.Decimal `json:"amount" binding:"required,nonneg"`
	Description string           `json:"description" binding:"max=200"`
}

type closeRequest struct {
	EODGpo              *decimal.Decimal     `json:"eodGpo" binding:"required,nonneg"`
	EODGcash            *decimal.Decimal     `json:"eodGcash" binding:"required,nonneg"`
	EODActualCash       *decimal.Decimal     `json:"eodActualCash" binding:"required,nonneg"`
	CustomSales         []manualSaleRequest  `json:"customSales" binding:"dive"`
	Expenses            []expenseLineRequest `json:"expenses" binding:"dive"`
	BankTransferFees    *decimal.Decimal     `json:"bankTransferFees" binding:"required,nonneg"`
	OperationalExpenses *decimal.Decimal     `json:"operationalExpenses" binding:"omitempty,nonneg"`
	// The notebook figure is a signed net flow.
	GcashNotebook *decimal.Decimal `json:"gcashNotebook"`
}

func (r closeRequest) toClosing() services.Closing {
	c := services.Closing{
		EODGpo:              amountOf(r.EODGpo),
		EODGcash:            amountOf(r.EODGcash),
		EODActualCash:       amountOf(r.EODActualCash),
		BankTransferFees:    amountOf(r.BankTransferFees),
		OperationalExpenses: amountOf(r.OperationalExpenses),
		CustomSales:         make([]core.ManualSaleLine, len(r.CustomSales)),
		Expenses:            make([]core.ExpenseLine, len(r.Expenses)),
	}
	if r.GcashNotebook != nil {
		v := amount(*r.GcashNotebook)
		c.GcashNotebook = &v
	}
	for i, l := range r.CustomSales {
		c.CustomSales[i] = core.ManualSaleLine{
			ID:       l.ID,
			Name:     l.Name,
			Amount:   amountOf(l.Amount),
			Cost:     amountOf(l.Cost),
			Category: l.Category,
		}
	}
	for i, l := range r.Expenses {
		c.Expenses[i] = core.ExpenseLine{ID: l.ID, Amount: amountOf(l.Amount), Description: l.Description}
	}
	return c
}

type cartLineRequest struct {
	ID       string           `json:"id"`
	Name     string           `json:"name" binding:"required,max=200"`
	Price    *decimal.Decimal `json:"price" binding:"required,nonneg"`
	Cost     *decimal.Decimal `json:"cost" binding:"omitempty,nonneg"`
	Quantity int64            `json:"quantity" binding:"required,gte=1"`
	Category string           `json:"category" binding:"max=100"`
}

func (l cartLineRequest) toLine() core.PosSaleLine {
	return core.PosSaleLine{
		ID:       l.ID,
		Name:     l.Name,
		Price:    amountOf(l.Price),
		Cost:     amountOf(l.Cost),
		Quantity: l.Quantity,
		Category: l.Category,
	}
}

func toLines(in []cartLineRequest) []core.PosSaleLine {
	if in == nil {
		return nil
	}
	out := make([]core.PosSaleLine, len(in))
	for i, l := range in {
		out[i] = l.toLine()
	}
	return out
}

// overrideRequest replaces every entered value of a submitted report.
// Omitting posSalesDetails keeps the attached POS lines.
type overrideRequest struct {
	openRequest
	closeRequest
	PosSalesDetails []cartLineRequest `json:"posSalesDetails" binding:"omitempty,dive"`
	ExpectedVersion int               `json:"expectedVersion" binding:"gte=0"`
}

func (r overrideRequest) toOverride() services.Override {
	return services.Override{
		Opening:         r.toOpening(),
		Closing:         r.toClosing(),
		PosSalesDetails: toLines(r.PosSalesDetails),
		ExpectedVersion: r.ExpectedVersion,
	}
}

// previewRequest is a whole draft report, computed and never stored.
type previewRequest struct {
	StoreID string `json:"storeId" binding:"required"`
	Date    string `json:"date" binding:"required"`
	openRequest
	closeRequest
	PosSalesDetails []cartLineRequest `json:"posSalesDetails" binding:"omitempty,dive"`
}

func (r previewRequest) toDraft(date core.Date) core.DailyReport {
	draft := core.DailyReport{StoreID: r.StoreID, Date: date}
	o, c := r.toOpening(), r.toClosing()
	draft.SODGpo, draft.SODGcash, draft.SODPettyCash = o.SODGpo, o.SODGcash, o.SODPettyCash
	draft.SODPettyCashNote, draft.FundIn, draft.CashATM = o.SODPettyCashNote, o.FundIn, o.CashATM
	draft.EODGpo, draft.EODGcash, draft.EODActualCash = c.EODGpo, c.EODGcash, c.EODActualCash
	draft.CustomSales = c.CustomSales
	draft.Expenses = c.Expenses
	draft.BankTransferFees = c.BankTransferFees
	draft.OperationalExpenses = c.OperationalExpenses
	draft.GcashNotebook = c.GcashNotebook
	draft.PosSalesDetails = toLines(r.PosSalesDetails)
	for i := range draft.PosSalesDetails {
		draft.PosSalesDetails[i].StoreID = r.StoreID
		draft.PosSalesDetails[i].Date = date
	}
	return draft
}

type posLineRequest struct {
	StoreID string `json:"storeId" binding:"required"`
	Date    string `json:"date" binding:"required"`
	cartLineRequest
}

type expenseRequest struct {
	StoreID     string           `json:"storeId" binding:"required"`
	Date        string           `json:"date" binding:"required"`
	Category    string           `json:"category" binding:"required,max=100"`
	Amount      *decimal.Decimal `json:"amount" binding:"required,nonneg"`
	Description string           `json:"description" binding:"max=200"`
}

func (r expenseRequest) toExpense(date core.Date) core.GeneralExpense {
	return core.GeneralExpense{
		StoreID:     r.StoreID,
		Date:        date,
		Category:    r.Category,
		Amount:      amountOf(r.Amount),
		Description: r.Description,
	}
}
