package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"cashrecon/internal/core"
	"cashrecon/internal/sources"
)

// Store keeps every entity in process memory. It implements sources.Repository.
type Store struct {
	mu       sync.Mutex
	stores   map[string]core.Store
	reports  map[string]core.DailyReport
	byKey    map[string]string
	posLines []core.PosSaleLine
	expenses []core.GeneralExpense
}

var _ sources.Repository = (*Store)(nil)

func New(stores ...core.Store) *Store {
	s := &Store{
		stores:  make(map[string]core.Store),
		reports: make(map[string]core.DailyReport),
		byKey:   make(map[string]string),
	}
	for _, st := range stores {
		s.stores[st.ID] = st
	}
	return s
}

// NewFromFiles seeds stores from base/seed_stores.txt, one "id|name|location"
// per line. A single default store is used when the file is missing.
func NewFromFiles(base string) *Store {
	var stores []core.Store
	for _, line := range readLines(filepath.Join(base, "seed_stores.txt")) {
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}
		st := core.Store{ID: strings.TrimSpace(parts[0]), Name: strings.TrimSpace(parts[1])}
		if len(parts) > 2 {
			st.Location = strings.TrimSpace(parts[2])
		}
		stores = append(stores, st)
	}
	if len(stores) == 0 {
		stores = []core.Store{{ID: "main", Name: "Main Store"}}
	}
	return New(stores...)
}

func reportKey(storeID string, d core.Date) string {
	return storeID + "|" + d.String()
}

func (s *Store) CreateStore(_ context.Context, st core.Store) error {
	if err := st.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stores[st.ID]; ok {
		return fmt.Errorf("store %s: %w", st.ID, sources.ErrDuplicate)
	}
	s.stores[st.ID] = st
	return nil
}

func (s *Store) GetStore(_ context.Context, id string) (core.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[id]
	if !ok {
		return core.Store{}, fmt.Errorf("store %s: %w", id, sources.ErrNotFound)
	}
	return st, nil
}

func (s *Store) ListStores(_ context.Context) ([]core.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Store, 0, len(s.stores))
	for _, st := range s.stores {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetReport(_ context.Context, id string) (core.DailyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return core.DailyReport{}, fmt.Errorf("report %s: %w", id, sources.ErrNotFound)
	}
	return cloneReport(r), nil
}

func (s *Store) FindReport(_ context.Context, storeID string, date core.Date) (core.DailyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[reportKey(storeID, date)]
	if !ok {
		return core.DailyReport{}, fmt.Errorf("report %s on %s: %w", storeID, date, sources.ErrNotFound)
	}
	return cloneReport(s.reports[id]), nil
}

func (s *Store) ListReports(_ context.Context, f sources.Filter) ([]core.DailyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.DailyReport
	for _, r := range s.reports {
		if f.Matches(r.StoreID, r.Date) {
			out = append(out, cloneReport(r))
		}
	}
	sortReports(out)
	return out, nil
}

func (s *Store) ListOutdatedReports(_ context.Context, formulaVersion int, limit int) ([]core.DailyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.DailyReport
	for _, r := range s.reports {
		if r.Phase == core.PhaseSubmitted && r.FormulaVersion < formulaVersion {
			out = append(out, cloneReport(r))
		}
	}
	sortReports(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CreateReport(_ context.Context, r core.DailyReport) error {
	if err := r.ValidateOpening(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := reportKey(r.StoreID, r.Date)
	if _, ok := s.byKey[key]; ok {
		return fmt.Errorf("report %s on %s: %w", r.StoreID, r.Date, sources.ErrDuplicate)
	}
	if _, ok := s.reports[r.ID]; ok {
		return fmt.Errorf("report %s: %w", r.ID, sources.ErrDuplicate)
	}
	s.reports[r.ID] = cloneReport(r)
	s.byKey[key] = r.ID
	return nil
}

func (s *Store) SubmitReport(_ context.Context, r core.DailyReport, posLineIDs []string) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.reports[r.ID]
	if !ok {
		return fmt.Errorf("report %s: %w", r.ID, sources.ErrNotFound)
	}
	if cur.Phase != core.PhaseOpen {
		return fmt.Errorf("report %s is %s: %w", r.ID, cur.Phase, sources.ErrConflict)
	}
	attach := make(map[string]struct{}, len(posLineIDs))
	for _, id := range posLineIDs {
		attach[id] = struct{}{}
	}
	for _, l := range s.posLines {
		if l.ReportID != "" || l.StoreID != r.StoreID || !l.Date.Equal(r.Date.Time) {
			continue
		}
		if _, ok := attach[l.ID]; !ok {
			return fmt.Errorf("report %s: pos line %s arrived after the close was computed: %w", r.ID, l.ID, sources.ErrConflict)
		}
	}
	for i := range s.posLines {
		if _, ok := attach[s.posLines[i].ID]; ok && s.posLines[i].ReportID == "" {
			s.posLines[i].ReportID = r.ID
		}
	}
	s.reports[r.ID] = cloneReport(r)
	return nil
}

func (s *Store) UpdateReport(_ context.Context, r core.DailyReport, expectedVersion int) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.reports[r.ID]
	if !ok {
		return fmt.Errorf("report %s: %w", r.ID, sources.ErrNotFound)
	}
	if cur.Version != expectedVersion {
		return fmt.Errorf("report %s at version %d, expected %d: %w", r.ID, cur.Version, expectedVersion, sources.ErrConflict)
	}
	s.reports[r.ID] = cloneReport(r)
	return nil
}

func (s *Store) AddPosLine(_ context.Context, l core.PosSaleLine) error {
	if err := l.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reports {
		if r.StoreID == l.StoreID && r.Date.Equal(l.Date.Time) && r.Phase == core.PhaseSubmitted {
			return fmt.Errorf("report %s is %s: %w", r.ID, r.Phase, sources.ErrConflict)
		}
	}
	s.posLines = append(s.posLines, l)
	return nil
}

func (s *Store) PendingPosLines(_ context.Context, storeID string, date core.Date) ([]core.PosSaleLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.PosSaleLine
	for _, l := range s.posLines {
		if l.ReportID == "" && l.StoreID == storeID && l.Date.Equal(date.Time) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) AddExpense(_ context.Context, e core.GeneralExpense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, e)
	return nil
}

func (s *Store) ListExpenses(_ context.Context, f sources.Filter) ([]core.GeneralExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.GeneralExpense
	for _, e := range s.expenses {
		if f.Matches(e.StoreID, e.Date) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })
	return out, nil
}

func sortReports(rs []core.DailyReport) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].Date.Equal(rs[j].Date.Time) {
			return rs[i].Date.Before(rs[j].Date.Time)
		}
		return rs[i].StoreID < rs[j].StoreID
	})
}

func cloneReport(r core.DailyReport) core.DailyReport {
	r.CustomSales = append([]core.ManualSaleLine(nil), r.CustomSales...)
	r.PosSalesDetails = append([]core.PosSaleLine(nil), r.PosSalesDetails...)
	r.Expenses = append([]core.ExpenseLine(nil), r.Expenses...)
	if r.GcashNotebook != nil {
		nb := *r.GcashNotebook
		r.GcashNotebook = &nb
	}
	return r
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
