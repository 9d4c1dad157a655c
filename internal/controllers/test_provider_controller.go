package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/geoscope/internal/services"
	"github.com/osvaldoandrade/geoscope/pkg/domain"

	"github.com/gin-gonic/gin"
)

type testProviderController struct{ svc services.AnalysisService }

func NewTestProviderController(svc services.AnalysisService) *testProviderController {
	return &testProviderController{svc}
}

func (h *testProviderController) Handle(c *gin.Context) {
	var req domain.TestProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}

	sample, err := h.svc.TestProvider(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "sample": sample})
}
