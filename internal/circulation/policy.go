package circulation

import (
	"github.com/shopspring/decimal"

	"github.com/insightvigil/biblioteca-escolar/internal/model"
)

// RenewalBasis 续借起算基准
type RenewalBasis string

const (
	// RenewalFromDueDate 从当前应还日期起算，无论续借申请多晚
	RenewalFromDueDate RenewalBasis = "due_date"
	// RenewalFromToday 从 max(今天, 当前应还日期) 起算
	RenewalFromToday RenewalBasis = "today"
)

// GraceUnit 宽限期计量单位
type GraceUnit string

const (
	GraceCalendarDays GraceUnit = "calendar"
	GraceBusinessDays GraceUnit = "business"
)

// GraceOrder 宽限期与周末剔除的先后顺序
type GraceOrder string

const (
	// GraceAfterWeekendExclusion 先剔除周末，再从剩余计费日中扣除宽限
	GraceAfterWeekendExclusion GraceOrder = "after_weekend_exclusion"
	// GraceBeforeWeekendExclusion 先在原始日历上扣除宽限窗口，再剔除周末
	GraceBeforeWeekendExclusion GraceOrder = "before_weekend_exclusion"
)

// Policy 借阅策略快照（不可变值对象）
//
// 每个事务读取一次并按值向下传递，同一操作内不会观察到策略变化。
// 续借基准、宽限单位、宽限顺序、应还日期是否按工作日计算均为显式开关。
type Policy struct {
	Version                  int
	CurrentPeriodID          string
	LoanDaysStudent          int
	DueUsesBusinessDays      bool
	MaxBooksStudent          int
	MaxBooksProfessor        int
	MaxRenewals              int
	FinePerDay               decimal.Decimal
	GraceDays                int
	CountWeekendsWhenOverdue bool
	RenewalBasis             RenewalBasis
	GraceUnit                GraceUnit
	GraceOrder               GraceOrder
}

// PolicyFromSettings 由 loan_settings 行构建快照；空字符串开关取 defaults 中的值
func PolicyFromSettings(s *model.LoanSettings, defaults Policy) Policy {
	p := Policy{
		Version:                  s.Version,
		LoanDaysStudent:          s.LoanDaysStudent,
		DueUsesBusinessDays:      s.DueUsesBusinessDays,
		MaxBooksStudent:          s.MaxBooksStudent,
		MaxBooksProfessor:        s.MaxBooksProfessor,
		MaxRenewals:              s.MaxRenewals,
		FinePerDay:               s.FinePerDay,
		GraceDays:                s.GraceDays,
		CountWeekendsWhenOverdue: s.CountWeekendsWhenOverdue,
		RenewalBasis:             RenewalBasis(s.RenewalBasis),
		GraceUnit:                GraceUnit(s.GraceUnit),
		GraceOrder:               GraceOrder(s.GraceOrder),
	}
	if s.CurrentPeriodID != nil {
		p.CurrentPeriodID = *s.CurrentPeriodID
	}
	if p.RenewalBasis == "" {
		p.RenewalBasis = defaults.RenewalBasis
	}
	if p.GraceUnit == "" {
		p.GraceUnit = defaults.GraceUnit
	}
	if p.GraceOrder == "" {
		p.GraceOrder = defaults.GraceOrder
	}
	return p
}

// Validate 校验策略取值
func (p Policy) Validate() error {
	if p.LoanDaysStudent < 0 || p.MaxBooksStudent < 0 || p.MaxBooksProfessor < 0 ||
		p.MaxRenewals < 0 || p.GraceDays < 0 || p.FinePerDay.IsNegative() {
		return ErrInvalidPolicy
	}
	if p.LoanDaysStudent > MaxDaysAhead || p.GraceDays > MaxDaysAhead {
		return ErrInvalidPolicy
	}
	switch p.RenewalBasis {
	case RenewalFromDueDate, RenewalFromToday:
	default:
		return ErrInvalidPolicy
	}
	switch p.GraceUnit {
	case GraceCalendarDays, GraceBusinessDays:
	default:
		return ErrInvalidPolicy
	}
	switch p.GraceOrder {
	case GraceAfterWeekendExclusion, GraceBeforeWeekendExclusion:
	default:
		return ErrInvalidPolicy
	}
	return nil
}

// MaxConcurrent 角色的同时在借上限
func (p Policy) MaxConcurrent(role string) (int, error) {
	switch role {
	case model.RoleStudent:
		return p.MaxBooksStudent, nil
	case model.RoleProfessor:
		return p.MaxBooksProfessor, nil
	default:
		return 0, ErrUnknownRole
	}
}
