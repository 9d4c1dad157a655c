package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/geoscope/internal/middleware"
	"github.com/osvaldoandrade/geoscope/internal/services"

	"github.com/gin-gonic/gin"
)

type cancelAnalysisController struct{ svc services.AnalysisService }

func NewCancelAnalysisController(svc services.AnalysisService) *cancelAnalysisController {
	return &cancelAnalysisController{svc}
}

func (h *cancelAnalysisController) Handle(c *gin.Context) {
	taskID := c.Param("id")
	err := h.svc.Cancel(c.Request.Context(), middleware.OwnerID(c), taskID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"taskId": taskID, "status": "CANCELED"})
	case err.Error() == "not-found":
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case err.Error() == "already-finished":
		c.JSON(http.StatusConflict, gin.H{"error": "analysis already finished"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
