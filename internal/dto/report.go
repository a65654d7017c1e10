package dto

// ── 报表 DTO ──

// BookAvailabilityResponse 图书库存
type BookAvailabilityResponse struct {
	BookID     string `json:"book_id"`
	Title      string `json:"title"`
	TotalStock int    `json:"total_stock"`
	LoanedOut  int    `json:"loaned_out"`
	Available  int    `json:"available"`
}

// FinesReportRequest 罚款报表查询
type FinesReportRequest struct {
	PeriodID string `form:"period_id" binding:"omitempty,uuid"`
}

// PersonFineSummary 单个借阅人的罚款汇总
type PersonFineSummary struct {
	PersonID   string `json:"person_id"`
	PersonName string `json:"person_name"`
	Items      int    `json:"items"`
	Fined      string `json:"fined"`
	Paid       string `json:"paid"`
	Pending    string `json:"pending"`
}

// FinesReportResponse 罚款报表
type FinesReportResponse struct {
	PeriodID     string              `json:"period_id,omitempty"`
	ItemsFined   int                 `json:"items_fined"`
	TotalFined   string              `json:"total_fined"`
	TotalPaid    string              `json:"total_paid"`
	TotalPending string              `json:"total_pending"`
	ByPerson     []PersonFineSummary `json:"by_person"`
}
