package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"cashrecon/internal/core"
	"cashrecon/internal/log"
	"cashrecon/internal/middleware/ratelimit"
	"cashrecon/internal/middleware/security"
	"cashrecon/internal/middleware/trace"
	"cashrecon/internal/period"
	"cashrecon/internal/reconcile"
	"cashrecon/internal/services"
	"cashrecon/internal/sources"
)

// ReportService is the report lifecycle as the API drives it.
type ReportService interface {
	CreateStore(ctx context.Context, st core.Store) (core.Store, error)
	GetStore(ctx context.Context, id string) (core.Store, error)
	ListStores(ctx context.Context) ([]core.Store, error)

	OpenDay(ctx context.Context, storeID string, date core.Date, o services.Opening, actor string) (core.DailyReport, error)
	CloseDay(ctx context.Context, storeID string, date core.Date, c services.Closing, actor string) (core.DailyReport, error)
	OverrideReport(ctx context.Context, id string, o services.Override, actor string) (core.DailyReport, error)
	Preview(draft core.DailyReport) (core.DailyReport, reconcile.Figures, error)
	GetReport(ctx context.Context, id string) (core.DailyReport, error)
	ListReports(ctx context.Context, f sources.Filter) (services.ReportList, error)

	RecordPosLine(ctx context.Context, l core.PosSaleLine) (core.PosSaleLine, error)
	PendingPosLines(ctx context.Context, storeID string, date core.Date) ([]core.PosSaleLine, error)
	AddExpense(ctx context.Context, e core.GeneralExpense) (core.GeneralExpense, error)
	ListExpenses(ctx context.Context, f sources.Filter) ([]core.GeneralExpense, error)
}

// AnalyticsService answers period dashboards.
type AnalyticsService interface {
	Aggregate(ctx context.Context, scope period.Scope, pred period.Predicate) (period.Result, error)
}

// Options configures the HTTP server.
type Options struct {
	Addr               string
	AllowedOrigins     []string
	RateLimitPerMinute int
	Logger             *log.Logger
	// Ready reports whether backing services are reachable. Nil is always ready.
	Ready func(ctx context.Context) error
}

// Server is the JSON API of the reconciliation engine.
type Server struct {
	srv          *http.Server
	engine       *gin.Engine
	limiter      *ratelimit.Limiter
	logger       *log.Logger
	shutdownOnce sync.Once

	reports   ReportService
	analytics AnalyticsService
	ready     func(ctx context.Context) error
}

// NewServer configures middleware and routes, returning a ready-to-run server.
func NewServer(reports ReportService, analytics AnalyticsService, opts Options) *Server {
	registerValidators()

	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}

	s := &Server{
		reports:   reports,
		analytics: analytics,
		ready:     opts.Ready,
		logger:    logger.WithComponent(log.ComponentHTTP),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
			CleanupInterval:   5 * time.Minute,
		}),
	}

	engine := gin.New()
	engine.Use(
		trace.Middleware(),
		log.GinLogger(logger),
		gin.CustomRecovery(s.handlePanic),
		security.Headers(security.DefaultHeadersConfig()),
		cors.New(corsConfig(opts.AllowedOrigins)),
		s.limiter.Middleware(func(c *gin.Context) {
			s.logger.WarnContext(c.Request.Context(), "Rate limit exceeded",
				log.FieldClientIP, c.ClientIP(), log.FieldMethod, c.Request.Method, log.FieldPath, c.Request.URL.Path)
			RespondWithError(c, NewAPIError(http.StatusTooManyRequests, ErrCodeTooManyRequests, "Rate limit exceeded. Please try again later.", ""))
		}),
	)
	engine.NoRoute(func(c *gin.Context) {
		RespondWithError(c, NewAPIError(http.StatusNotFound, ErrCodeNotFound, "Route not found", c.Request.URL.Path))
	})
	s.engine = engine
	s.routes()

	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)

	api := s.engine.Group("/api/v1")
	api.GET("/health", s.handleHealth)

	api.GET("/stores", s.handleListStores)
	api.POST("/stores", s.handleCreateStore)
	api.GET("/stores/:storeId", s.handleGetStore)
	api.POST("/stores/:storeId/reports/:date/open", s.handleOpenDay)
	api.POST("/stores/:storeId/reports/:date/close", s.handleCloseDay)
	api.GET("/stores/:storeId/pos-lines/pending", s.handlePendingPosLines)

	api.GET("/reports", s.handleListReports)
	api.GET("/reports/:id", s.handleGetReport)
	api.PUT("/reports/:id", s.handleOverrideReport)
	api.POST("/reconcile/preview", s.handlePreview)

	api.GET("/analytics", s.handleAnalytics)

	api.POST("/pos-lines", s.handleRecordPosLine)
	api.POST("/expenses", s.handleAddExpense)
	api.GET("/expenses", s.handleListExpenses)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", HeaderActor, trace.HeaderRequestID}
	cfg.ExposeHeaders = []string{trace.HeaderRequestID}
	cfg.MaxAge = 12 * time.Hour

	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func (s *Server) handlePanic(c *gin.Context, recovered any) {
	s.logger.ErrorContext(c.Request.Context(), "Panic while serving request",
		"panic", recovered, log.FieldPath, c.Request.URL.Path)
	RespondWithError(c, NewAPIError(http.StatusInternalServerError, ErrCodeInternalServerError, "Internal server error", ""))
}

// Handler exposes the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.srv.Addr, log.FieldOperation, log.OpStartup)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.srv.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			RespondWithError(c, NewAPIError(http.StatusServiceUnavailable, "NOT_READY", "Service not ready", ""))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
