package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/geoscope/internal/services"

	"github.com/gin-gonic/gin"
)

type cleanupAnalysesController struct{ svc services.AnalysisService }

func NewCleanupAnalysesController(svc services.AnalysisService) *cleanupAnalysesController {
	return &cleanupAnalysesController{svc}
}

type cleanupReq struct {
	Limit int `json:"limit,omitempty"` // default: 1000
}

func (h *cleanupAnalysesController) Handle(c *gin.Context) {
	var req cleanupReq
	_ = c.ShouldBindJSON(&req) // body is optional

	deleted, err := h.svc.Cleanup(c.Request.Context(), req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
