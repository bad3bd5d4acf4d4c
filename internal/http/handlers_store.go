package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleListStores(c *gin.Context) {
	stores, err := s.reports.ListStores(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": stores})
}

func (s *Server) handleCreateStore(c *gin.Context) {
	var req storeRequest
	if !bindJSON(c, &req) {
		return
	}
	req.Name = sanitizeInput(req.Name)
	req.Location = sanitizeInput(req.Location)

	st, err := s.reports.CreateStore(c.Request.Context(), req.toStore())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (s *Server) handleGetStore(c *gin.Context) {
	st, err := s.reports.GetStore(c.Request.Context(), c.Param("storeId"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
