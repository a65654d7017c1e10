package dto

// ── 借阅模块 DTO ──
// 日期统一为 "YYYY-MM-DD" 字符串，金额统一为两位小数字符串

// CreateLoanRequest 创建借阅单请求
type CreateLoanRequest struct {
	PersonID  string `json:"person_id"  binding:"required,uuid"`
	PeriodID  string `json:"period_id"  binding:"omitempty,uuid"` // 为空时按 start_date 解析所在学期
	StartDate string `json:"start_date"`                          // 为空时取今天
}

// CheckoutRequest 一次性创建借阅单并借出多本书（同一事务，任一失败整体回滚）
type CheckoutRequest struct {
	PersonID  string           `json:"person_id"  binding:"required,uuid"`
	PeriodID  string           `json:"period_id"  binding:"omitempty,uuid"`
	StartDate string           `json:"start_date"`
	Items     []AddItemRequest `json:"items"      binding:"required,min=1,dive"`
}

// AddItemRequest 向借阅单追加借阅项
// 应还日期以借阅单的 start_date 为基准计算
type AddItemRequest struct {
	BookID  string `json:"book_id"  binding:"required,uuid"`
	DueDate string `json:"due_date"` // 仅教师借阅使用
}

// RenewItemRequest 续借请求
type RenewItemRequest struct {
	DueDate string `json:"due_date"` // 仅教师续借使用
}

// ReturnItemRequest 归还请求
type ReturnItemRequest struct {
	ReturnDate string `json:"return_date"` // 为空时取今天
}

// PreviewDueDateRequest 应还日期预览（不落库）
type PreviewDueDateRequest struct {
	PersonID  string `form:"person_id"  binding:"required,uuid"`
	PeriodID  string `form:"period_id"  binding:"omitempty,uuid"`
	StartDate string `form:"start_date"`
	DueDate   string `form:"due_date"`
}

// RegisterPaymentRequest 罚款缴纳请求
type RegisterPaymentRequest struct {
	Amount string `json:"amount" binding:"required"` // "36.00"
	Method string `json:"method" binding:"omitempty,max=50"`
	Note   string `json:"note"   binding:"omitempty,max=500"`
}

// ListLoanItemsRequest 借阅项列表查询
type ListLoanItemsRequest struct {
	PaginationRequest
	PersonID    string `form:"person_id"    binding:"omitempty,uuid"`
	PeriodID    string `form:"period_id"    binding:"omitempty,uuid"`
	Status      string `form:"status"       binding:"omitempty,oneof=checked_out returned lost damaged"`
	OnlyOverdue bool   `form:"only_overdue"`
	WithDebt    bool   `form:"with_debt"`
}

// LoanResponse 借阅单响应
type LoanResponse struct {
	ID        string             `json:"id"`
	PersonID  string             `json:"person_id"`
	PeriodID  string             `json:"period_id"`
	StartDate string             `json:"start_date"`
	Status    string             `json:"status"`
	Items     []LoanItemResponse `json:"items"`
}

// LoanItemResponse 借阅项响应
// Overdue 为推导值；列表查询时附带借阅人、图书与缴费信息
type LoanItemResponse struct {
	ID           string `json:"id"`
	LoanID       string `json:"loan_id"`
	BookID       string `json:"book_id"`
	DueDate      string `json:"due_date"`
	ReturnedDate string `json:"returned_date,omitempty"`
	RenewalCount int    `json:"renewal_count"`
	FineAmount   string `json:"fine_amount"`
	Status       string `json:"status"`
	Overdue      bool   `json:"overdue"`
	// 截至今天的应计罚款（未归还逾期项），仅供展示，不落库
	AccruingFine string `json:"accruing_fine,omitempty"`

	PersonID   string `json:"person_id,omitempty"`
	PersonName string `json:"person_name,omitempty"`
	BookTitle  string `json:"book_title,omitempty"`
	PaidAmount string `json:"paid_amount,omitempty"`
	Debt       string `json:"debt,omitempty"`
}

// RenewItemResponse 续借结果
type RenewItemResponse struct {
	ID           string `json:"id"`
	DueDate      string `json:"due_date"`
	RenewalCount int    `json:"renewal_count"`
}

// ReturnItemResponse 归还结果
// 重复归还时 Changed=false，返回首次归还时存储的日期与罚款
type ReturnItemResponse struct {
	ID           string `json:"id"`
	ReturnedDate string `json:"returned_date"`
	FineAmount   string `json:"fine_amount"`
	Changed      bool   `json:"changed"`
}

// PreviewDueDateResponse 应还日期预览结果
type PreviewDueDateResponse struct {
	PeriodID string `json:"period_id"`
	DueDate  string `json:"due_date"`
}

// PaymentResponse 缴费记录响应
type PaymentResponse struct {
	ID        string `json:"id"`
	ItemID    string `json:"loan_item_id"`
	Amount    string `json:"amount"`
	Method    string `json:"method"`
	Note      string `json:"note"`
	PaidAt    string `json:"paid_at"`
	Remaining string `json:"remaining"` // 本次缴费后的未缴余额
}
