package controllers

import (
	"net/http"
	"strconv"

	"github.com/osvaldoandrade/geoscope/internal/middleware"
	"github.com/osvaldoandrade/geoscope/internal/services"

	"github.com/gin-gonic/gin"
)

type listAnalysesController struct{ svc services.AnalysisService }

func NewListAnalysesController(svc services.AnalysisService) *listAnalysesController {
	return &listAnalysesController{svc}
}

func (h *listAnalysesController) Handle(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit'"})
			return
		}
		limit = n
	}

	tasks, err := h.svc.List(c.Request.Context(), middleware.OwnerID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": tasks, "count": len(tasks)})
}
