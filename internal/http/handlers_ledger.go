package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleRecordPosLine accepts a cart line from the point of sale.
func (s *Server) handleRecordPosLine(c *gin.Context) {
	var req posLineRequest
	if !bindJSON(c, &req) {
		return
	}
	date, ok := parseDateValue(c, "date", req.Date)
	if !ok {
		return
	}

	l := req.toLine()
	l.StoreID = req.StoreID
	l.Date = date
	l.Name = sanitizeInput(l.Name)

	saved, err := s.reports.RecordPosLine(c.Request.Context(), l)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, saved)
}

func (s *Server) handlePendingPosLines(c *gin.Context) {
	date, ok := parseDateValue(c, "date", c.Query("date"))
	if !ok {
		return
	}
	lines, err := s.reports.PendingPosLines(c.Request.Context(), c.Param("storeId"), date)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lines": lines})
}

func (s *Server) handleAddExpense(c *gin.Context) {
	var req expenseRequest
	if !bindJSON(c, &req) {
		return
	}
	date, ok := parseDateValue(c, "date", req.Date)
	if !ok {
		return
	}
	req.Category = sanitizeInput(req.Category)
	req.Description = sanitizeInput(req.Description)

	e, err := s.reports.AddExpense(c.Request.Context(), req.toExpense(date))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (s *Server) handleListExpenses(c *gin.Context) {
	f, ok := listFilter(c)
	if !ok {
		return
	}
	expenses, err := s.reports.ListExpenses(c.Request.Context(), f)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"expenses": expenses})
}
