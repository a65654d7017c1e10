package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/insightvigil/biblioteca-escolar/internal/dto"
	"github.com/insightvigil/biblioteca-escolar/internal/service"
	"github.com/insightvigil/biblioteca-escolar/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler 报表与订阅源 HTTP 处理器
type ReportHandler struct {
	reportSvc service.ReportService
	feedSvc   service.FeedService
}

// NewReportHandler 创建 ReportHandler
func NewReportHandler(reportSvc service.ReportService, feedSvc service.FeedService) *ReportHandler {
	return &ReportHandler{reportSvc: reportSvc, feedSvc: feedSvc}
}

// BookAvailability 图书库存
// GET /api/v1/books/availability
func (h *ReportHandler) BookAvailability(c *gin.Context) {
	list, err := h.reportSvc.BookAvailability(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, gin.H{"list": list})
}

// FinesReport 罚款汇总
// GET /api/v1/reports/fines?period_id=
func (h *ReportHandler) FinesReport(c *gin.Context) {
	var req dto.FinesReportRequest
	if !MustBindQuery(c, &req) {
		return
	}

	report, err := h.reportSvc.FinesReport(c.Request.Context(), &req)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.OK(c, report)
}

// ExportFines 导出罚款报表
// GET /api/v1/reports/fines/export?period_id=
func (h *ReportHandler) ExportFines(c *gin.Context) {
	var req dto.FinesReportRequest
	if !MustBindQuery(c, &req) {
		return
	}

	buf, filename, err := h.reportSvc.ExportFines(c.Request.Context(), &req)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.Attachment(c, filename, xlsxContentType, buf.Bytes())
}

// DueDateFeed 借阅人应还日期 iCalendar 订阅
// GET /api/v1/people/:id/due-dates.ics
func (h *ReportHandler) DueDateFeed(c *gin.Context) {
	id, ok := MustGetParam(c, "id", "借阅人ID不能为空")
	if !ok {
		return
	}

	feed, err := h.feedSvc.DueDateFeed(c.Request.Context(), id)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", "due-dates.ics"))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(feed))
}
