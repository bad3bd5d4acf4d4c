package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashrecon/internal/cache"
	"cashrecon/internal/core"
	"cashrecon/internal/period"
	"cashrecon/internal/services"
	"cashrecon/internal/sources/memory"
)

type testServer struct {
	t   *testing.T
	srv *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := memory.New(core.Store{ID: "s1", Name: "Downtown"}, core.Store{ID: "s2", Name: "Harbor"})
	analytics := services.NewAnalyticsService(repo, repo, cache.NewLRUCache[period.Result](32, time.Minute), nil)
	reports := services.NewReportService(repo, services.ReportServiceOptions{Invalidator: analytics})

	srv := NewServer(reports, analytics, Options{RateLimitPerMinute: 1000})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{t: t, srv: srv}
}

func (ts *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	ts.t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type errorBody struct {
	Error APIError `json:"error"`
}

const (
	openBody  = `{"sodGpo": 1000, "sodGcash": "500", "sodPettyCash": 0}`
	closeBody = `{"eodGpo": 1200, "eodGcash": 500, "eodActualCash": "300", "bankTransferFees": 0}`
	lineBody  = `{"storeId": "s1", "date": "2025-03-14", "name": "Load 50", "price": 50, "cost": 30, "quantity": 4}`
)

func (ts *testServer) openAndClose() core.DailyReport {
	ts.t.Helper()
	w := ts.do(http.MethodPost, "/api/v1/stores/s1/reports/2025-03-14/open", openBody, HeaderActor, "cashier")
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())
	w = ts.do(http.MethodPost, "/api/v1/pos-lines", lineBody)
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())
	w = ts.do(http.MethodPost, "/api/v1/stores/s1/reports/2025-03-14/close", closeBody, HeaderActor, "cashier")
	require.Equal(ts.t, http.StatusOK, w.Code, w.Body.String())
	return decode[core.DailyReport](ts.t, w)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/health", "/api/v1/health", "/ready"} {
		w := ts.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := ts.do(http.MethodGet, "/health", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestReadyReportsBackendFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := NewServer(nil, nil, Options{Ready: func(context.Context) error { return assert.AnError }})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStores(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/stores", `{"id": "s3", "name": "  Airport ", "location": "T2"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Airport", decode[core.Store](t, w).Name)

	w = ts.do(http.MethodPost, "/api/v1/stores", `{"id": "s3", "name": "Again"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/stores", `{"name": ""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeValidationFailed, decode[errorBody](t, w).Error.Code)

	w = ts.do(http.MethodGet, "/api/v1/stores", "")
	require.Equal(t, http.StatusOK, w.Code)
	stores := decode[struct {
		Stores []core.Store `json:"stores"`
	}](t, w)
	require.Len(t, stores.Stores, 3)
	assert.Equal(t, "Airport", stores.Stores[0].Name, "stores are sorted by name")

	w = ts.do(http.MethodGet, "/api/v1/stores/s2", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodGet, "/api/v1/stores/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ErrCodeNotFound, decode[errorBody](t, w).Error.Code)
}

func TestReportLifecycle(t *testing.T) {
	ts := newTestServer(t)
	r := ts.openAndClose()

	assert.Equal(t, core.PhaseSubmitted, r.Phase)
	assert.Equal(t, core.Surplus, r.Status)
	assert.True(t, r.TheoreticalGrowth.Equal(decimal.NewFromInt(500)))
	assert.True(t, r.Discrepancy.Equal(decimal.NewFromInt(300)))
	assert.True(t, r.RecordedProfit.Equal(decimal.NewFromInt(380)))
	assert.Equal(t, "cashier", r.UpdatedBy)
	require.Len(t, r.PosSalesDetails, 1)

	w := ts.do(http.MethodGet, "/api/v1/reports/"+r.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, r.Version, decode[core.DailyReport](t, w).Version)

	// The day is locked once submitted.
	w = ts.do(http.MethodPost, "/api/v1/stores/s1/reports/2025-03-14/close", closeBody)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, ErrCodeReportLocked, decode[errorBody](t, w).Error.Code)

	w = ts.do(http.MethodPost, "/api/v1/pos-lines", lineBody)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/stores/s1/reports/2025-03-14/open", openBody)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestOpenDayValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "bad date", path: "/api/v1/stores/s1/reports/2025-02-30/open", body: openBody, want: http.StatusBadRequest},
		{name: "negative amount", path: "/api/v1/stores/s1/reports/2025-03-14/open", body: `{"sodGpo": -5}`, want: http.StatusBadRequest},
		{name: "malformed amount", path: "/api/v1/stores/s1/reports/2025-03-14/open", body: `{"sodGpo": "12abc"}`, want: http.StatusBadRequest},
		{name: "empty opening", path: "/api/v1/stores/s1/reports/2025-03-14/open", body: `{}`, want: http.StatusBadRequest},
		{name: "null count", path: "/api/v1/stores/s1/reports/2025-03-14/open", body: `{"sodGpo": null, "sodGcash": 500, "sodPettyCash": 0}`, want: http.StatusBadRequest},
		{name: "malformed json", path: "/api/v1/stores/s1/reports/2025-03-14/open", body: `{`, want: http.StatusBadRequest},
		{name: "unknown store", path: "/api/v1/stores/nope/reports/2025-03-14/open", body: openBody, want: http.StatusNotFound},
		{name: "close without open", path: "/api/v1/stores/s1/reports/2025-03-15/close", body: closeBody, want: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestCloseDayRejectsNegativeLine(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/api/v1/stores/s1/reports/2025-03-14/open", openBody)
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/stores/s1/reports/2025-03-14/close",
		`{"eodGpo": 1200, "eodGcash": 500, "eodActualCash": 300, "bankTransferFees": 0, "customSales": [{"name": "Cake", "amount": -3}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[errorBody](t, w).Error.Details, "nonneg")
}

func TestCloseDayRequiresCounts(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodPost, "/api/v1/stores/s1/reports/2025-03-14/open", openBody)
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/stores/s1/reports/2025-03-14/close", `{"eodGpo": 1200, "eodGcash": 500, "bankTransferFees": 0}`)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	apiErr := decode[errorBody](t, w).Error
	assert.Equal(t, ErrCodeValidationFailed, apiErr.Code)
	assert.Contains(t, apiErr.Details, "EODActualCash: required")

	w = ts.do(http.MethodPost, "/api/v1/stores/s1/reports/2025-03-14/close", closeBody)
	assert.Equal(t, http.StatusOK, w.Code, "a rejected close leaves the day open")
}

func TestOverrideReport(t *testing.T) {
	ts := newTestServer(t)
	r := ts.openAndClose()
	path := "/api/v1/reports/" + r.ID

	override := `{"sodGpo": 1000, "sodGcash": 500, "sodPettyCash": 0, "eodGpo": 1200, "eodGcash": 500, "eodActualCash": 300,
		"bankTransferFees": 0, "gcashNotebook": 250, "expectedVersion": 2}`

	w := ts.do(http.MethodPut, path, override)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeActorRequired, decode[errorBody](t, w).Error.Code)

	w = ts.do(http.MethodPut, path, override, HeaderActor, "auditor")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[core.DailyReport](t, w)
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, "auditor", got.UpdatedBy)
	assert.True(t, got.Discrepancy.Equal(decimal.NewFromInt(250)))
	assert.True(t, got.NotebookDifference.Equal(decimal.NewFromInt(50)))
	assert.Len(t, got.PosSalesDetails, 1, "omitted POS lines are kept")

	// Replaying the same expected version loses the race.
	w = ts.do(http.MethodPut, path, override, HeaderActor, "auditor")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, ErrCodeVersionConflict, decode[errorBody](t, w).Error.Code)

	w = ts.do(http.MethodPut, "/api/v1/reports/missing", override, HeaderActor, "auditor")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListReports(t *testing.T) {
	ts := newTestServer(t)
	ts.openAndClose()
	w := ts.do(http.MethodPost, "/api/v1/stores/s2/reports/2025-03-14/open", openBody)
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/reports?from=2025-03-01&to=2025-03-31", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode[services.ReportList](t, w)
	assert.Len(t, list.Reports, 2)
	assert.Equal(t, 1, list.Summary.ReportCount, "open reports stay out of the footer")
	assert.True(t, list.Summary.Discrepancy.Equal(decimal.NewFromInt(300)))

	w = ts.do(http.MethodGet, "/api/v1/reports?store=s2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[services.ReportList](t, w).Reports, 1)

	for _, q := range []string{"from=2025-13-01", "from=2025-03-31&to=2025-03-01"} {
		w = ts.do(http.MethodGet, "/api/v1/reports?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestPreview(t *testing.T) {
	ts := newTestServer(t)

	body := `{"storeId": "s1", "date": "2025-03-14", "sodGpo": 1000, "sodGcash": 500, "sodPettyCash": 0,
		"eodGpo": 1200, "eodGcash": 500, "eodActualCash": 300, "bankTransferFees": 0,
		"posSalesDetails": [{"name": "Load 50", "price": 50, "cost": 30, "quantity": 4}]}`
	w := ts.do(http.MethodPost, "/api/v1/reconcile/preview", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[struct {
		Report  core.DailyReport `json:"report"`
		Figures struct {
			DerivedGcashNet decimal.Decimal `json:"derivedGcashNet"`
			TotalEodSales   decimal.Decimal `json:"totalEodSales"`
		} `json:"figures"`
	}](t, w)
	assert.Equal(t, core.Surplus, resp.Report.Status)
	assert.True(t, resp.Figures.DerivedGcashNet.Equal(decimal.NewFromInt(300)))
	assert.True(t, resp.Figures.TotalEodSales.Equal(decimal.NewFromInt(500)))

	w = ts.do(http.MethodGet, "/api/v1/reports", "")
	assert.Empty(t, decode[services.ReportList](t, w).Reports, "preview persists nothing")

	w = ts.do(http.MethodPost, "/api/v1/reconcile/preview", `{"storeId": "s1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPosLinesAndExpenses(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/api/v1/pos-lines", lineBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(http.MethodPost, "/api/v1/pos-lines", `{"storeId": "s1", "date": "2025-03-14", "name": "x", "price": 1, "quantity": 0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/stores/s1/pos-lines/pending?date=2025-03-14", "")
	require.Equal(t, http.StatusOK, w.Code)
	lines := decode[struct {
		Lines []core.PosSaleLine `json:"lines"`
	}](t, w)
	assert.Len(t, lines.Lines, 1)

	w = ts.do(http.MethodGet, "/api/v1/stores/s1/pos-lines/pending", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/expenses", `{"storeId": "s1", "date": "2025-03-10", "category": "Rent", "amount": "1200,50"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "decimal comma is not a JSON amount")

	w = ts.do(http.MethodPost, "/api/v1/expenses", `{"storeId": "s1", "date": "2025-03-10", "category": "Rent", "amount": 1200.5, "description": "March"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(http.MethodPost, "/api/v1/expenses", `{"storeId": "nope", "date": "2025-03-10", "category": "Rent", "amount": 1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/expenses?store=s1&from=2025-03-01&to=2025-03-31", "")
	require.Equal(t, http.StatusOK, w.Code)
	expenses := decode[struct {
		Expenses []core.GeneralExpense `json:"expenses"`
	}](t, w)
	require.Len(t, expenses.Expenses, 1)
	assert.True(t, expenses.Expenses[0].Amount.Equal(decimal.RequireFromString("1200.5")))
}

func TestAnalytics(t *testing.T) {
	ts := newTestServer(t)
	ts.openAndClose()

	w := ts.do(http.MethodGet, "/api/v1/analytics?year=2025", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[period.Result](t, w)
	assert.Len(t, res.Series, 12)
	assert.Equal(t, 1, res.Totals.ReportCount)
	assert.True(t, res.Totals.GrossSales.Equal(decimal.NewFromInt(500)))

	// A new expense invalidates the cached year.
	w = ts.do(http.MethodPost, "/api/v1/expenses", `{"storeId": "s1", "date": "2025-03-10", "category": "Rent", "amount": 100}`)
	require.Equal(t, http.StatusCreated, w.Code)
	for _, q := range []string{"year=2025", "year=2025&store=s1"} {
		w = ts.do(http.MethodGet, "/api/v1/analytics?"+q, "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode[period.Result](t, w).Totals.Expenses.Equal(decimal.NewFromInt(100)), q)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"month=2025-03", http.StatusOK},
		{"day=2025-03-14", http.StatusOK},
		{"from=2025-03-01&to=2025-03-31", http.StatusOK},
		{"", http.StatusBadRequest},
		{"month=2025-03&year=2025", http.StatusBadRequest},
		{"from=2025-03-31&to=2025-03-01", http.StatusBadRequest},
		{"year=2025&store=nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		w := ts.do(http.MethodGet, "/api/v1/analytics?"+tt.query, "")
		assert.Equal(t, tt.want, w.Code, tt.query)
	}
}

func TestRateLimitedWrites(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := memory.New()
	reports := services.NewReportService(repo, services.ReportServiceOptions{})
	srv := NewServer(reports, nil, Options{RateLimitPerMinute: 1})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	post := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/stores", strings.NewReader(`{"name": "A"}`))
		req.Header.Set("Content-Type", "application/json")
		srv.Handler().ServeHTTP(w, req)
		return w
	}
	assert.Equal(t, http.StatusCreated, post().Code)
	w := post()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, ErrCodeTooManyRequests, decode[errorBody](t, w).Error.Code)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
