package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/geoscope/internal/middleware"
	"github.com/osvaldoandrade/geoscope/internal/services"
	"github.com/osvaldoandrade/geoscope/pkg/domain"

	"github.com/gin-gonic/gin"
)

type launchAnalysisController struct{ svc services.AnalysisService }

func NewLaunchAnalysisController(svc services.AnalysisService) *launchAnalysisController {
	return &launchAnalysisController{svc}
}

// Handle accepts the batch and returns immediately with 202; the work runs
// in the background and is observed through the progress endpoint.
func (h *launchAnalysisController) Handle(c *gin.Context) {
	var req domain.LaunchAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	task, err := h.svc.Launch(c.Request.Context(), middleware.OwnerID(c), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"taskId":       task.ID,
		"status":       task.Status,
		"totalPrompts": task.TotalPrompts,
		"progressUrl":  "/v1/geoscope/analyses/" + task.ID + "/progress",
	})
}
