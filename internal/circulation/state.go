package circulation

import (
	"time"

	"github.com/insightvigil/biblioteca-escolar/internal/model"
)

// IsTerminal RETURNED / LOST / DAMAGED 之后不再流转
func IsTerminal(status string) bool {
	switch status {
	case model.ItemStatusReturned, model.ItemStatusLost, model.ItemStatusDamaged:
		return true
	}
	return false
}

// IsOverdue 逾期为推导状态：due_date < today 且尚未归还
func IsOverdue(item *model.LoanItem, today time.Time) bool {
	return item.Status == model.ItemStatusCheckedOut &&
		item.ReturnedDate == nil &&
		Day(item.DueDate).Before(Day(today))
}

// AllTerminal 借阅项是否全部处于终态（空集合返回 false）
func AllTerminal(items []model.LoanItem) bool {
	if len(items) == 0 {
		return false
	}
	for i := range items {
		if !IsTerminal(items[i].Status) {
			return false
		}
	}
	return true
}

// CheckAddItem 借阅单必须仍为 active
func CheckAddItem(loan *model.Loan) error {
	switch loan.Status {
	case model.LoanStatusActive:
		return nil
	case model.LoanStatusCancelled:
		return ErrLoanCancelled
	default:
		return ErrLoanClosed
	}
}

// CheckRenew 续借前置条件
func CheckRenew(loan *model.Loan, item *model.LoanItem, p Policy) error {
	if loan.Status == model.LoanStatusCancelled {
		return ErrLoanCancelled
	}
	if IsTerminal(item.Status) {
		return ErrItemTerminal
	}
	if item.RenewalCount >= p.MaxRenewals {
		return ErrRenewalLimit
	}
	return nil
}

// CheckReturn 归还前置条件；noop=true 表示已归还，直接返回已存储的结果
func CheckReturn(item *model.LoanItem) (noop bool, err error) {
	switch item.Status {
	case model.ItemStatusReturned:
		return true, nil
	case model.ItemStatusCheckedOut:
		return false, nil
	default:
		return false, ErrItemTerminal
	}
}

// CheckMark 标记遗失 / 损坏的前置条件；已处于目标状态时 noop=true
func CheckMark(loan *model.Loan, item *model.LoanItem, target string) (noop bool, err error) {
	if item.Status == target {
		return true, nil
	}
	if loan.Status == model.LoanStatusCancelled {
		return false, ErrLoanCancelled
	}
	switch item.Status {
	case model.ItemStatusCheckedOut:
		return false, nil
	case model.ItemStatusReturned:
		return false, ErrItemAlreadyReturned
	default:
		return false, ErrItemTerminal
	}
}

// CheckCancel 取消借阅单的前置条件；已取消时 noop=true
// 任一借阅项已归还则拒绝取消
func CheckCancel(loan *model.Loan, items []model.LoanItem) (noop bool, err error) {
	switch loan.Status {
	case model.LoanStatusCancelled:
		return true, nil
	case model.LoanStatusReturned:
		return false, ErrLoanClosed
	}
	for i := range items {
		if items[i].Status == model.ItemStatusReturned {
			return false, ErrHasReturnedItems
		}
	}
	return false, nil
}
