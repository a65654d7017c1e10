package handler

import "github.com/insightvigil/biblioteca-escolar/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Loan     *LoanHandler
	Calendar *CalendarHandler
	Policy   *PolicyHandler
	Report   *ReportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Loan:     NewLoanHandler(svc.Loan),
		Calendar: NewCalendarHandler(svc.Calendar),
		Policy:   NewPolicyHandler(svc.Policy),
		Report:   NewReportHandler(svc.Report, svc.Feed),
	}
}
