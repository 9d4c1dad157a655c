package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/geoscope/internal/middleware"
	"github.com/osvaldoandrade/geoscope/internal/services"

	"github.com/gin-gonic/gin"
)

type getReportController struct{ svc services.AnalysisService }

func NewGetReportController(svc services.AnalysisService) *getReportController {
	return &getReportController{svc}
}

func (h *getReportController) Handle(c *gin.Context) {
	report, err := h.svc.Report(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, report)
}
