package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cashrecon/internal/amqp"
	"cashrecon/internal/core"
	"cashrecon/internal/lock"
	"cashrecon/internal/log"
	"cashrecon/internal/reconcile"
	"cashrecon/internal/sources"
)

// Publisher announces submitted and overridden reports.
type Publisher interface {
	PublishReportSubmitted(ctx context.Context, msg *amqp.ReportSubmittedMessage) error
}

// Invalidator drops computed results that depend on a store.
type Invalidator interface {
	Invalidate(ctx context.Context, storeID string)
}

// Opening holds the start-of-day values entered when a day is opened.
type Opening struct {
	SODGpo           decimal.Decimal
	SODGcash         decimal.Decimal
	SODPettyCash     decimal.Decimal
	SODPettyCashNote string
	FundIn           decimal.Decimal
	CashATM          decimal.Decimal
}

func (o Opening) applyTo(r *core.DailyReport) {
	r.SODGpo = o.SODGpo
	r.SODGcash = o.SODGcash
	r.SODPettyCash = o.SODPettyCash
	r.SODPettyCashNote = o.SODPettyCashNote
	r.FundIn = o.FundIn
	r.CashATM = o.CashATM
}

// Closing holds the end-of-day values entered when a day is closed.
type Closing struct {
	EODGpo              decimal.Decimal
	EODGcash            decimal.Decimal
	EODActualCash       decimal.Decimal
	CustomSales         []core.ManualSaleLine
	Expenses            []core.ExpenseLine
	BankTransferFees    decimal.Decimal
	OperationalExpenses decimal.Decimal
	GcashNotebook       *decimal.Decimal
}

func (c Closing) applyTo(r *core.DailyReport, newID func() string) {
	r.EODGpo = c.EODGpo
	r.EODGcash = c.EODGcash
	r.EODActualCash = c.EODActualCash
	r.BankTransferFees = c.BankTransferFees
	r.OperationalExpenses = c.OperationalExpenses
	r.GcashNotebook = nil
	if c.GcashNotebook != nil {
		v := *c.GcashNotebook
		r.GcashNotebook = &v
	}

	r.CustomSales = make([]core.ManualSaleLine, len(c.CustomSales))
	for i, l := range c.CustomSales {
		if l.ID == "" {
			l.ID = newID()
		}
		r.CustomSales[i] = l
	}
	r.Expenses = make([]core.ExpenseLine, len(c.Expenses))
	for i, l := range c.Expenses {
		if l.ID == "" {
			l.ID = newID()
		}
		r.Expenses[i] = l
	}
}

// Override is an administrative edit of a submitted report. Every entered
// value is replaced. PosSalesDetails nil keeps the attached POS lines.
type Override struct {
	Opening
	Closing
	PosSalesDetails []core.PosSaleLine
	// ExpectedVersion guards against lost updates. Zero skips the check.
	ExpectedVersion int
}

// ReportList is a listing with its rollup footer.
type ReportList struct {
	Reports []core.DailyReport `json:"reports"`
	Summary reconcile.Summary  `json:"summary"`
}

type ReportServiceOptions struct {
	Locker      lock.Locker
	Publisher   Publisher
	Invalidator Invalidator
	// Expenses overrides the repository as the source of general expense listings.
	Expenses sources.ExpenseLister
	Logger   *log.Logger
}

// ReportService drives the two-phase daily report lifecycle and the
// collaborator entities (stores, POS lines, general expenses) it reads.
type ReportService struct {
	repo        sources.Repository
	expenses    sources.ExpenseLister
	locker      lock.Locker
	publisher   Publisher
	invalidator Invalidator
	logger      *log.Logger

	now   func() time.Time
	newID func() string
}

func NewReportService(repo sources.Repository, opts ReportServiceOptions) *ReportService {
	s := &ReportService{
		repo:        repo,
		expenses:    opts.Expenses,
		locker:      opts.Locker,
		publisher:   opts.Publisher,
		invalidator: opts.Invalidator,
		logger:      opts.Logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.NewString() },
	}
	if s.expenses == nil {
		s.expenses = repo
	}
	if s.locker == nil {
		s.locker = lock.Nop{}
	}
	if s.logger == nil {
		s.logger = log.Nop()
	}
	s.logger = s.logger.WithComponent(log.ComponentReport)
	return s
}

// Stores

func (s *ReportService) CreateStore(ctx context.Context, st core.Store) (core.Store, error) {
	st.ID = strings.TrimSpace(st.ID)
	if st.ID == "" {
		st.ID = s.newID()
	}
	if err := st.Validate(); err != nil {
		return core.Store{}, err
	}
	if err := s.repo.CreateStore(ctx, st); err != nil {
		if errors.Is(err, sources.ErrDuplicate) {
			return core.Store{}, fmt.Errorf("store %s: %w", st.ID, ErrStoreExists)
		}
		return core.Store{}, fmt.Errorf("create store: %w", err)
	}
	s.logger.InfoContext(ctx, "Store created", log.FieldStoreID, st.ID, log.FieldOperation, log.OpCreate)
	return st, nil
}

func (s *ReportService) GetStore(ctx context.Context, id string) (core.Store, error) {
	st, err := s.repo.GetStore(ctx, id)
	if errors.Is(err, sources.ErrNotFound) {
		return core.Store{}, fmt.Errorf("store %s: %w", id, ErrStoreNotFound)
	}
	if err != nil {
		return core.Store{}, fmt.Errorf("get store: %w", err)
	}
	return st, nil
}

func (s *ReportService) ListStores(ctx context.Context) ([]core.Store, error) {
	stores, err := s.repo.ListStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return stores, nil
}

// Report lifecycle

// OpenDay records the start-of-day counts of a store and freezes them.
func (s *ReportService) OpenDay(ctx context.Context, storeID string, date core.Date, o Opening, actor string) (core.DailyReport, error) {
	if _, err := s.GetStore(ctx, storeID); err != nil {
		return core.DailyReport{}, err
	}

	release, err := s.acquire(ctx, storeID, date)
	if err != nil {
		return core.DailyReport{}, err
	}
	defer release(context.WithoutCancel(ctx))

	if _, err := s.repo.FindReport(ctx, storeID, date); err == nil {
		return core.DailyReport{}, fmt.Errorf("%s on %s: %w", storeID, date, ErrReportExists)
	} else if !errors.Is(err, sources.ErrNotFound) {
		return core.DailyReport{}, fmt.Errorf("find report: %w", err)
	}

	now := s.now()
	r := core.DailyReport{
		ID:        s.newID(),
		StoreID:   storeID,
		Date:      date,
		Phase:     core.PhaseOpen,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		UpdatedBy: strings.TrimSpace(actor),
	}
	o.applyTo(&r)
	if err := r.ValidateOpening(); err != nil {
		return core.DailyReport{}, err
	}

	if err := s.repo.CreateReport(ctx, r); err != nil {
		if errors.Is(err, sources.ErrDuplicate) {
			return core.DailyReport{}, fmt.Errorf("%s on %s: %w", storeID, date, ErrReportExists)
		}
		return core.DailyReport{}, fmt.Errorf("create report: %w", err)
	}

	s.logger.InfoContext(ctx, "Day opened",
		log.NewFields().WithOperation(log.OpOpen).WithReport(r.ID, storeID, date.String(), "").ToSlice()...)
	return r, nil
}

// CloseDay enters the end-of-day values, attaches the pending POS lines of
// the day, computes the report and submits it. A submitted report can only
// change through OverrideReport.
func (s *ReportService) CloseDay(ctx context.Context, storeID string, date core.Date, c Closing, actor string) (core.DailyReport, error) {
	release, err := s.acquire(ctx, storeID, date)
	if err != nil {
		return core.DailyReport{}, err
	}
	defer release(context.WithoutCancel(ctx))

	r, err := s.repo.FindReport(ctx, storeID, date)
	if errors.Is(err, sources.ErrNotFound) {
		return core.DailyReport{}, fmt.Errorf("%s on %s: %w", storeID, date, ErrReportNotOpen)
	}
	if err != nil {
		return core.DailyReport{}, fmt.Errorf("find report: %w", err)
	}
	if r.Phase != core.PhaseOpen {
		return core.DailyReport{}, fmt.Errorf("report %s: %w", r.ID, ErrReportLocked)
	}

	pending, err := s.repo.PendingPosLines(ctx, storeID, date)
	if err != nil {
		return core.DailyReport{}, fmt.Errorf("pending pos lines: %w", err)
	}
	lineIDs := make([]string, len(pending))
	for i := range pending {
		pending[i].ReportID = r.ID
		lineIDs[i] = pending[i].ID
	}

	c.applyTo(&r, s.newID)
	r.PosSalesDetails = pending

	now := s.now()
	r.Phase = core.PhaseSubmitted
	r.Version++
	r.SubmittedAt = now
	r.UpdatedAt = now
	if a := strings.TrimSpace(actor); a != "" {
		r.UpdatedBy = a
	}
	r = reconcile.ComputeDailyReport(r)
	if err := r.Validate(); err != nil {
		return core.DailyReport{}, err
	}

	if err := s.repo.SubmitReport(ctx, r, lineIDs); err != nil {
		if errors.Is(err, sources.ErrConflict) {
			return core.DailyReport{}, s.submitConflict(ctx, r.ID, err)
		}
		return core.DailyReport{}, fmt.Errorf("submit report: %w", err)
	}

	s.afterWrite(ctx, r, actor)
	s.logger.InfoContext(ctx, "Day closed",
		append(log.NewFields().WithOperation(log.OpClose).WithReport(r.ID, storeID, date.String(), string(r.Status)).ToSlice(),
			log.FieldDiscrepancy, r.Discrepancy.StringFixed(2),
			log.FieldCount, len(pending))...)
	return r, nil
}

// OverrideReport is the administrative edit of a submitted report. It
// produces a new version of the same row, stamped with actor.
func (s *ReportService) OverrideReport(ctx context.Context, id string, o Override, actor string) (core.DailyReport, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return core.DailyReport{}, ErrActorRequired
	}

	cur, err := s.GetReport(ctx, id)
	if err != nil {
		return core.DailyReport{}, err
	}

	release, err := s.acquire(ctx, cur.StoreID, cur.Date)
	if err != nil {
		return core.DailyReport{}, err
	}
	defer release(context.WithoutCancel(ctx))

	// Re-read under the lock.
	cur, err = s.GetReport(ctx, id)
	if err != nil {
		return core.DailyReport{}, err
	}
	if cur.Phase != core.PhaseSubmitted {
		return core.DailyReport{}, fmt.Errorf("report %s: %w", id, ErrReportNotSubmitted)
	}
	expected := cur.Version
	if o.ExpectedVersion != 0 && o.ExpectedVersion != cur.Version {
		return core.DailyReport{}, fmt.Errorf("report %s at version %d, expected %d: %w", id, cur.Version, o.ExpectedVersion, ErrVersionConflict)
	}

	r := cur
	o.Opening.applyTo(&r)
	o.Closing.applyTo(&r, s.newID)
	if o.PosSalesDetails != nil {
		r.PosSalesDetails = make([]core.PosSaleLine, len(o.PosSalesDetails))
		for i, l := range o.PosSalesDetails {
			if l.ID == "" {
				l.ID = s.newID()
			}
			l.StoreID, l.Date, l.ReportID = r.StoreID, r.Date, r.ID
			r.PosSalesDetails[i] = l
		}
	}
	r.Version = cur.Version + 1
	r.UpdatedAt = s.now()
	r.UpdatedBy = actor
	r = reconcile.ComputeDailyReport(r)
	if err := r.Validate(); err != nil {
		return core.DailyReport{}, err
	}

	if err := s.repo.UpdateReport(ctx, r, expected); err != nil {
		if errors.Is(err, sources.ErrConflict) {
			return core.DailyReport{}, fmt.Errorf("report %s: %w", id, ErrVersionConflict)
		}
		return core.DailyReport{}, fmt.Errorf("update report: %w", err)
	}

	s.afterWrite(ctx, r, actor)
	s.logger.InfoContext(ctx, "Report overridden",
		append(log.NewFields().WithOperation(log.OpOverride).WithReport(r.ID, r.StoreID, r.Date.String(), string(r.Status)).ToSlice(),
			log.FieldActor, actor,
			log.FieldVersion, r.Version,
			"previous_status", string(cur.Status),
			log.FieldDiscrepancy, r.Discrepancy.StringFixed(2))...)
	return r, nil
}

// Preview computes a draft report without persisting anything.
func (s *ReportService) Preview(draft core.DailyReport) (core.DailyReport, reconcile.Figures, error) {
	if err := draft.Validate(); err != nil {
		return core.DailyReport{}, reconcile.Figures{}, err
	}
	return reconcile.ComputeDailyReport(draft), reconcile.Derive(draft), nil
}

func (s *ReportService) GetReport(ctx context.Context, id string) (core.DailyReport, error) {
	r, err := s.repo.GetReport(ctx, id)
	if errors.Is(err, sources.ErrNotFound) {
		return core.DailyReport{}, fmt.Errorf("report %s: %w", id, ErrReportNotFound)
	}
	if err != nil {
		return core.DailyReport{}, fmt.Errorf("get report: %w", err)
	}
	return r, nil
}

// ListReports returns the reports passing f and a rollup of the submitted ones.
func (s *ReportService) ListReports(ctx context.Context, f sources.Filter) (ReportList, error) {
	reports, err := s.repo.ListReports(ctx, f)
	if err != nil {
		return ReportList{}, fmt.Errorf("list reports: %w", err)
	}
	if reports == nil {
		reports = []core.DailyReport{}
	}
	submitted := make([]core.DailyReport, 0, len(reports))
	for _, r := range reports {
		if r.Phase == core.PhaseSubmitted {
			submitted = append(submitted, r)
		}
	}
	summary := reconcile.RollupTotals(submitted)
	if summary.Stale > 0 {
		s.logger.WarnContext(ctx, "Listing contains stale reports", log.FieldCount, summary.Stale, log.FieldStoreID, f.StoreID)
	}
	return ReportList{Reports: reports, Summary: summary}, nil
}

// POS lines

// RecordPosLine stores a POS cart line as pending for its store and date.
// Lines arriving after the day was closed are refused.
func (s *ReportService) RecordPosLine(ctx context.Context, l core.PosSaleLine) (core.PosSaleLine, error) {
	if l.ID == "" {
		l.ID = s.newID()
	}
	l.ReportID = ""
	if err := l.Validate(); err != nil {
		return core.PosSaleLine{}, err
	}
	if _, err := s.GetStore(ctx, l.StoreID); err != nil {
		return core.PosSaleLine{}, err
	}

	release, err := s.acquire(ctx, l.StoreID, l.Date)
	if err != nil {
		return core.PosSaleLine{}, err
	}
	defer release(context.WithoutCancel(ctx))

	if err := s.repo.AddPosLine(ctx, l); err != nil {
		if errors.Is(err, sources.ErrConflict) {
			return core.PosSaleLine{}, fmt.Errorf("%s on %s: %w", l.StoreID, l.Date, ErrReportLocked)
		}
		return core.PosSaleLine{}, fmt.Errorf("add pos line: %w", err)
	}
	return l, nil
}

func (s *ReportService) PendingPosLines(ctx context.Context, storeID string, date core.Date) ([]core.PosSaleLine, error) {
	lines, err := s.repo.PendingPosLines(ctx, storeID, date)
	if err != nil {
		return nil, fmt.Errorf("pending pos lines: %w", err)
	}
	if lines == nil {
		lines = []core.PosSaleLine{}
	}
	return lines, nil
}

// General expenses

func (s *ReportService) AddExpense(ctx context.Context, e core.GeneralExpense) (core.GeneralExpense, error) {
	if e.ID == "" {
		e.ID = s.newID()
	}
	if err := e.Validate(); err != nil {
		return core.GeneralExpense{}, err
	}
	if _, err := s.GetStore(ctx, e.StoreID); err != nil {
		return core.GeneralExpense{}, err
	}
	if err := s.repo.AddExpense(ctx, e); err != nil {
		return core.GeneralExpense{}, fmt.Errorf("add expense: %w", err)
	}
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, e.StoreID)
	}
	return e, nil
}

func (s *ReportService) ListExpenses(ctx context.Context, f sources.Filter) ([]core.GeneralExpense, error) {
	out, err := s.expenses.ListExpenses(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if out == nil {
		out = []core.GeneralExpense{}
	}
	return out, nil
}

// submitConflict tells a report closed by someone else apart from POS lines
// that landed between reading the pending lines and the submit. The latter
// leaves the day open and is retryable.
func (s *ReportService) submitConflict(ctx context.Context, reportID string, cause error) error {
	cur, err := s.repo.GetReport(ctx, reportID)
	if err == nil && cur.Phase == core.PhaseOpen {
		s.logger.WarnContext(ctx, "POS lines arrived during close", log.FieldReportID, reportID, log.FieldError, cause)
		return fmt.Errorf("report %s: %w", reportID, ErrDayBusy)
	}
	return fmt.Errorf("report %s: %w", reportID, ErrReportLocked)
}

func (s *ReportService) acquire(ctx context.Context, storeID string, date core.Date) (lock.Release, error) {
	release, err := s.locker.Acquire(ctx, storeID, date)
	if errors.Is(err, lock.ErrNotObtained) {
		return nil, fmt.Errorf("%s on %s: %w", storeID, date, ErrDayBusy)
	}
	if err != nil {
		return nil, err
	}
	return release, nil
}

// afterWrite publishes the event and drops cached results. Neither failure
// fails the write.
func (s *ReportService) afterWrite(ctx context.Context, r core.DailyReport, actor string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, r.StoreID)
	}
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping report message", log.FieldReportID, r.ID)
		return
	}
	if err := s.publisher.PublishReportSubmitted(ctx, amqp.NewReportSubmittedMessage(r, actor)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish report message",
			log.FieldReportID, r.ID, log.FieldOperation, log.OpPublish, log.FieldError, err)
	}
}
