package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/geoscope/internal/middleware"
	"github.com/osvaldoandrade/geoscope/internal/services"

	"github.com/gin-gonic/gin"
)

type getProgressController struct{ svc services.AnalysisService }

func NewGetProgressController(svc services.AnalysisService) *getProgressController {
	return &getProgressController{svc}
}

func (h *getProgressController) Handle(c *gin.Context) {
	p, err := h.svc.Progress(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, p)
}
