package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/geoscope/internal/middleware"
	"github.com/osvaldoandrade/geoscope/internal/services"

	"github.com/gin-gonic/gin"
)

type getAnalysisController struct{ svc services.AnalysisService }

func NewGetAnalysisController(svc services.AnalysisService) *getAnalysisController {
	return &getAnalysisController{svc}
}

func (h *getAnalysisController) Handle(c *gin.Context) {
	task, err := h.svc.Get(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}
