package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleOpenDay records the start-of-day counts.
func (s *Server) handleOpenDay(c *gin.Context) {
	date, ok := pathDate(c)
	if !ok {
		return
	}
	var req openRequest
	if !bindJSON(c, &req) {
		return
	}
	req.SODPettyCashNote = sanitizeInput(req.SODPettyCashNote)

	r, err := s.reports.OpenDay(c.Request.Context(), c.Param("storeId"), date, req.toOpening(), actorOf(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// handleCloseDay enters the end-of-day values and submits the report.
func (s *Server) handleCloseDay(c *gin.Context) {
	date, ok := pathDate(c)
	if !ok {
		return
	}
	var req closeRequest
	if !bindJSON(c, &req) {
		return
	}

	r, err := s.reports.CloseDay(c.Request.Context(), c.Param("storeId"), date, req.toClosing(), actorOf(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// handleOverrideReport is the administrative edit. X-Actor is mandatory.
func (s *Server) handleOverrideReport(c *gin.Context) {
	actor := actorOf(c)
	if actor == "" {
		RespondWithError(c, NewAPIError(http.StatusBadRequest, ErrCodeActorRequired, "X-Actor header is required", ""))
		return
	}
	var req overrideRequest
	if !bindJSON(c, &req) {
		return
	}
	req.SODPettyCashNote = sanitizeInput(req.SODPettyCashNote)

	r, err := s.reports.OverrideReport(c.Request.Context(), c.Param("id"), req.toOverride(), actor)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handleGetReport(c *gin.Context) {
	r, err := s.reports.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// handleListReports returns the matching reports with their rollup footer.
func (s *Server) handleListReports(c *gin.Context) {
	f, ok := listFilter(c)
	if !ok {
		return
	}
	list, err := s.reports.ListReports(c.Request.Context(), f)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// handlePreview computes a draft report without storing it.
func (s *Server) handlePreview(c *gin.Context) {
	var req previewRequest
	if !bindJSON(c, &req) {
		return
	}
	date, ok := parseDateValue(c, "date", req.Date)
	if !ok {
		return
	}

	r, figures, err := s.reports.Preview(req.toDraft(date))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": r, "figures": figures})
}
