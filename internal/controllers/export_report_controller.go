package controllers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/osvaldoandrade/geoscope/internal/middleware"
	"github.com/osvaldoandrade/geoscope/internal/services"
	"github.com/osvaldoandrade/geoscope/pkg/domain"

	"github.com/gin-gonic/gin"
)

type exportReportController struct{ svc services.AnalysisService }

func NewExportReportController(svc services.AnalysisService) *exportReportController {
	return &exportReportController{svc}
}

const exportResponseLimit = 200

// Handle streams the per-prompt results as CSV. Responses are truncated to
// keep rows spreadsheet-friendly; the full text stays in the JSON report.
func (h *exportReportController) Handle(c *gin.Context) {
	report, err := h.svc.Report(c.Request.Context(), middleware.OwnerID(c), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "geoscope_"+report.TaskID+".csv"))

	w := csv.NewWriter(c.Writer)
	header := []string{"prompt", "response", "status", "has_brand_mention", "has_domain_mention", "total_brand_mentions", "total_domain_mentions"}
	for _, b := range report.Brands {
		header = append(header, "brand:"+b)
	}
	for _, d := range report.Domains {
		header = append(header, "domain:"+d)
	}
	_ = w.Write(header)

	for _, res := range report.Results {
		row := []string{
			res.Prompt,
			truncateRunes(res.Response, exportResponseLimit),
			string(res.Status),
			boolCell(res.Analysis.HasBrandMention),
			boolCell(res.Analysis.HasDomainMention),
			strconv.Itoa(res.Analysis.TotalBrandMentions),
			strconv.Itoa(res.Analysis.TotalDomainMentions),
		}
		row = appendFlagCells(row, res.Analysis.Brands, report.Brands)
		row = appendFlagCells(row, res.Analysis.Domains, report.Domains)
		_ = w.Write(row)
	}
	w.Flush()
}

func appendFlagCells(row []string, flags domain.MentionFlags, names []string) []string {
	for _, name := range names {
		row = append(row, strconv.Itoa(flags.Get(name)))
	}
	return row
}

func boolCell(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
