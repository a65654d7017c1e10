package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/insightvigil/biblioteca-escolar/internal/dto"
	"github.com/insightvigil/biblioteca-escolar/internal/service"
	"github.com/insightvigil/biblioteca-escolar/pkg/response"
)

// CalendarHandler 学期日历 HTTP 处理器
type CalendarHandler struct {
	calendarSvc service.CalendarService
}

// NewCalendarHandler 创建 CalendarHandler
func NewCalendarHandler(calendarSvc service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendarSvc: calendarSvc}
}

// ResolvePeriod 查询包含指定日期的学期
// GET /api/v1/periods/resolve?date=YYYY-MM-DD
func (h *CalendarHandler) ResolvePeriod(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		response.BadRequest(c, response.CodeBadRequest, "date 不能为空")
		return
	}

	period, err := h.calendarSvc.Resolve(c.Request.Context(), date)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.OK(c, period)
}

// BusinessDays 工作日推算
// GET /api/v1/periods/:id/business-days?base=YYYY-MM-DD&n=3
func (h *CalendarHandler) BusinessDays(c *gin.Context) {
	id, ok := MustGetParam(c, "id", "学期ID不能为空")
	if !ok {
		return
	}
	var req dto.BusinessDaysRequest
	if !MustBindQuery(c, &req) {
		return
	}

	result, err := h.calendarSvc.BusinessDays(c.Request.Context(), id, &req)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.OK(c, result)
}
