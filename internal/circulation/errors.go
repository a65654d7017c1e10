package circulation

import apperrors "github.com/insightvigil/biblioteca-escolar/pkg/errors"

// ── 借阅引擎业务错误 ──

var (
	ErrPeriodNotFound = apperrors.NotFound("学期不存在")

	ErrNegativeDays          = apperrors.Validation("工作日天数不能为负")
	ErrDaysOutOfRange        = apperrors.Validation("天数超出允许范围")
	ErrDueDateRequired       = apperrors.Validation("教师借阅必须指定应还日期")
	ErrDueBeforeStart        = apperrors.Validation("应还日期不能早于借阅开始日期")
	ErrDueOutsidePeriod      = apperrors.Validation("应还日期超出学期范围")
	ErrDueBeforeCurrentDue   = apperrors.Validation("续借后的应还日期不能早于当前应还日期")
	ErrStartOutsidePeriod    = apperrors.Validation("借阅开始日期不在所选学期内")
	ErrReturnBeforeStart     = apperrors.Validation("归还日期不能早于借阅开始日期")
	ErrUnknownRole           = apperrors.Validation("未知的借阅人角色")
	ErrInvalidPolicy         = apperrors.Validation("借阅策略配置无效")
	ErrInvalidPaymentAmount  = apperrors.Validation("缴费金额必须大于 0")
	ErrPaymentExceedsBalance = apperrors.Policy("缴费金额超过未缴罚款")

	ErrOutOfStock          = apperrors.Policy("库存不足")
	ErrCeilingReached      = apperrors.Policy("已达借阅上限")
	ErrRenewalLimit        = apperrors.Policy("已达续借次数上限")
	ErrItemTerminal        = apperrors.Policy("借阅项已处于终态")
	ErrItemAlreadyReturned = apperrors.Policy("借阅项已归还")
	ErrLoanCancelled       = apperrors.Policy("借阅单已取消")
	ErrLoanClosed          = apperrors.Policy("借阅单已结束")
	ErrHasReturnedItems    = apperrors.Policy("借阅单已有归还的借阅项")
)
