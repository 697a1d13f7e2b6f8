package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/naufal-dev/fyp-api/internal/service"
	"github.com/naufal-dev/fyp-api/pkg/response"
)

// ReportHandler streams allocation reports as file downloads.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs a new ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// SupervisionAllocation godoc
// @Summary Download the supervision allocation report
// @Tags Reports
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /reports/allocation [get]
func (h *ReportHandler) SupervisionAllocation(c *gin.Context) {
	format := service.ReportFormat(c.DefaultQuery("format", "csv"))

	data, contentType, err := h.reports.SupervisionAllocation(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("supervision-allocation-%s.%s", time.Now().Format("2006-01-02"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(200, contentType, data)
}
