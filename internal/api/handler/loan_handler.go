package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/insightvigil/biblioteca-escolar/internal/circulation"
	"github.com/insightvigil/biblioteca-escolar/internal/dto"
	"github.com/insightvigil/biblioteca-escolar/internal/service"
	"github.com/insightvigil/biblioteca-escolar/pkg/response"
)

// LoanHandler 借阅模块 HTTP 处理器
type LoanHandler struct {
	loanSvc service.LoanService
}

// NewLoanHandler 创建 LoanHandler
func NewLoanHandler(loanSvc service.LoanService) *LoanHandler {
	return &LoanHandler{loanSvc: loanSvc}
}

// CreateLoan 创建空借阅单
// POST /api/v1/loans
func (h *LoanHandler) CreateLoan(c *gin.Context) {
	var req dto.CreateLoanRequest
	if !MustBindJSON(c, &req) {
		return
	}

	loan, err := h.loanSvc.CreateLoan(c.Request.Context(), &req)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.Created(c, loan)
}

// Checkout 创建借阅单并借出多本书
// POST /api/v1/loans/checkout
func (h *LoanHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if !MustBindJSON(c, &req) {
		return
	}

	loan, err := h.loanSvc.Checkout(c.Request.Context(), &req)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.Created(c, loan)
}

// GetLoan 借阅单详情
// GET /api/v1/loans/:id
func (h *LoanHandler) GetLoan(c *gin.Context) {
	id, ok := MustGetParam(c, "id", "借阅单ID不能为空")
	if !ok {
		return
	}

	loan, err := h.loanSvc.GetLoan(c.Request.Context(), id)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.OK(c, loan)
}

// AddItem 向借阅单追加借阅项
// POST /api/v1/loans/:id/items
func (h *LoanHandler) AddItem(c *gin.Context) {
	id, ok := MustGetParam(c, "id", "借阅单ID不能为空")
	if !ok {
		return
	}
	var req dto.AddItemRequest
	if !MustBindJSON(c, &req) {
		return
	}

	item, err := h.loanSvc.AddItem(c.Request.Context(), id, &req)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.Created(c, item)
}

// CancelLoan 取消借阅单
// POST /api/v1/loans/:id/cancel
func (h *LoanHandler) CancelLoan(c *gin.Context) {
	id, ok := MustGetParam(c, "id", "借阅单ID不能为空")
	if !ok {
		return
	}

	result, err := h.loanSvc.CancelLoan(c.Request.Context(), id)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.OK(c, result)
}

// PreviewDueDate 应还日期预览（不落库）
// GET /api/v1/loans/preview-due?person_id=&start_date=&due_date=
func (h *LoanHandler) PreviewDueDate(c *gin.Context) {
	var req dto.PreviewDueDateRequest
	if !MustBindQuery(c, &req) {
		return
	}

	result, err := h.loanSvc.PreviewDueDate(c.Request.Context(), &req)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.OK(c, result)
}

// ListItems 借阅项列表
// GET /api/v1/loan-items?person_id=&period_id=&status=&only_overdue=&with_debt=&page=&page_size=
func (h *LoanHandler) ListItems(c *gin.Context) {
	var req dto.ListLoanItemsRequest
	if !MustBindQuery(c, &req) {
		return
	}

	list, total, err := h.loanSvc.ListItems(c.Request.Context(), &req)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// RenewItem 续借
// POST /api/v1/loan-items/:id/renew
func (h *LoanHandler) RenewItem(c *gin.Context) {
	id, ok := MustGetParam(c, "id", "借阅项ID不能为空")
	if !ok {
		return
	}
	var req dto.RenewItemRequest
	if !MustBindOptionalJSON(c, &req) {
		return
	}

	result, err := h.loanSvc.RenewItem(c.Request.Context(), id, &req)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.OK(c, result)
}

// ReturnItem 归还
// POST /api/v1/loan-items/:id/return
func (h *LoanHandler) ReturnItem(c *gin.Context) {
	id, ok := MustGetParam(c, "id", "借阅项ID不能为空")
	if !ok {
		return
	}
	var req dto.ReturnItemRequest
	if !MustBindOptionalJSON(c, &req) {
		return
	}

	result, err := h.loanSvc.ReturnItem(c.Request.Context(), id, &req)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.OK(c, result)
}

// MarkLost 标记遗失
// POST /api/v1/loan-items/:id/lost
func (h *LoanHandler) MarkLost(c *gin.Context) {
	id, ok := MustGetParam(c, "id", "借阅项ID不能为空")
	if !ok {
		return
	}

	result, err := h.loanSvc.MarkLost(c.Request.Context(), id)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.OK(c, result)
}

// MarkDamaged 标记损坏
// POST /api/v1/loan-items/:id/damaged
func (h *LoanHandler) MarkDamaged(c *gin.Context) {
	id, ok := MustGetParam(c, "id", "借阅项ID不能为空")
	if !ok {
		return
	}

	result, err := h.loanSvc.MarkDamaged(c.Request.Context(), id)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.OK(c, result)
}

// RegisterPayment 登记罚款缴纳
// POST /api/v1/loan-items/:id/payments
func (h *LoanHandler) RegisterPayment(c *gin.Context) {
	id, ok := MustGetParam(c, "id", "借阅项ID不能为空")
	if !ok {
		return
	}
	var req dto.RegisterPaymentRequest
	if !MustBindJSON(c, &req) {
		return
	}

	payment, err := h.loanSvc.RegisterPayment(c.Request.Context(), id, &req)
	if err != nil {
		handleLoanError(c, err)
		return
	}

	response.Created(c, payment)
}

// ── 错误映射 ──

// loanErrorCodes 具体业务原因 → 错误码；未列出的按错误分类兜底
var loanErrorCodes = []struct {
	err    error
	status int
	code   int
}{
	// 3x1xx 资源不存在
	{service.ErrPersonNotFound, http.StatusNotFound, 30101},
	{service.ErrBookNotFound, http.StatusNotFound, 30102},
	{service.ErrLoanNotFound, http.StatusNotFound, 30103},
	{service.ErrItemNotFound, http.StatusNotFound, 30104},
	{circulation.ErrPeriodNotFound, http.StatusNotFound, 30105},

	// 3x2xx 借阅策略拒绝
	{circulation.ErrOutOfStock, http.StatusConflict, 30201},
	{circulation.ErrCeilingReached, http.StatusConflict, 30202},
	{circulation.ErrRenewalLimit, http.StatusConflict, 30203},
	{circulation.ErrItemTerminal, http.StatusConflict, 30204},
	{circulation.ErrItemAlreadyReturned, http.StatusConflict, 30205},
	{circulation.ErrLoanCancelled, http.StatusConflict, 30206},
	{circulation.ErrLoanClosed, http.StatusConflict, 30207},
	{circulation.ErrHasReturnedItems, http.StatusConflict, 30208},
	{circulation.ErrPaymentExceedsBalance, http.StatusConflict, 30209},

	// 3x3xx 输入不合法
	{circulation.ErrDueDateRequired, http.StatusBadRequest, 30301},
	{circulation.ErrDueBeforeStart, http.StatusBadRequest, 30302},
	{circulation.ErrDueOutsidePeriod, http.StatusBadRequest, 30303},
	{circulation.ErrDueBeforeCurrentDue, http.StatusBadRequest, 30304},
	{circulation.ErrStartOutsidePeriod, http.StatusBadRequest, 30305},
	{circulation.ErrReturnBeforeStart, http.StatusBadRequest, 30306},
	{circulation.ErrUnknownRole, http.StatusBadRequest, 30307},
	{circulation.ErrInvalidPaymentAmount, http.StatusBadRequest, 30308},
	{service.ErrInvalidAmount, http.StatusBadRequest, 30309},
	{service.ErrInvalidDate, http.StatusBadRequest, 30310},
	{circulation.ErrNegativeDays, http.StatusBadRequest, 30311},
	{circulation.ErrDaysOutOfRange, http.StatusBadRequest, 30312},
}

// handleLoanError 统一处理借阅模块业务错误
func handleLoanError(c *gin.Context, err error) {
	for _, e := range loanErrorCodes {
		if errors.Is(err, e.err) {
			response.Error(c, e.status, e.code, e.err.Error())
			return
		}
	}
	response.FromError(c, err)
}
