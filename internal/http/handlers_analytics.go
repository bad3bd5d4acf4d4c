package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cashrecon/internal/period"
)

// handleAnalytics aggregates one period: exactly one of day, month, year or
// a from/to pair, optionally scoped to a store.
func (s *Server) handleAnalytics(c *gin.Context) {
	pred, err := period.ParseQuery(c.Request.URL.Query())
	if err != nil {
		RespondValidationFailed(c, err.Error())
		return
	}
	scope := period.Scope{StoreID: strings.TrimSpace(c.Query("store"))}
	if scope.StoreID != "" {
		if _, err := s.reports.GetStore(c.Request.Context(), scope.StoreID); err != nil {
			respondServiceError(c, err)
			return
		}
	}

	res, err := s.analytics.Aggregate(c.Request.Context(), scope, pred)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
