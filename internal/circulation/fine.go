package circulation

import (
	"time"

	"github.com/shopspring/decimal"
)

// FineResult 罚款计算结果
type FineResult struct {
	OverdueDays    int             // 剔除周末（若策略要求）后的逾期天数，未扣宽限
	ChargeableDays int             // 扣除宽限后的计费天数
	Amount         decimal.Decimal // ChargeableDays * FinePerDay
}

// ComputeFine 计算 due 之后到 ref（含）的逾期罚款
//
// 逐日遍历 (due, ref]：
//   - CountWeekendsWhenOverdue=false 时周末不计费；节假日始终计费
//   - 宽限期内的日子免罚；GraceUnit 决定哪些日子消耗宽限额度，
//     GraceOrder 决定宽限窗口在周末剔除之前还是之后确定
//
// ref <= due 时结果为零。
func ComputeFine(cal *Calendar, due, ref time.Time, p Policy) FineResult {
	due, ref = Day(due), Day(ref)
	res := FineResult{Amount: decimal.Zero}
	if !ref.After(due) {
		return res
	}

	graceLeft := p.GraceDays
	for d := nextDay(due); !d.After(ref); d = nextDay(d) {
		counted := p.CountWeekendsWhenOverdue || !IsWeekend(d)
		if counted {
			res.OverdueDays++
		}

		if graceLeft > 0 {
			if consumesGrace(cal, d, counted, p) {
				graceLeft--
			}
			continue
		}

		if counted {
			res.ChargeableDays++
		}
	}

	res.Amount = p.FinePerDay.Mul(decimal.NewFromInt(int64(res.ChargeableDays)))
	return res
}

// consumesGrace 当天是否消耗一天宽限额度
func consumesGrace(cal *Calendar, d time.Time, counted bool, p Policy) bool {
	unitDay := p.GraceUnit == GraceCalendarDays || cal.IsBusinessDay(d)
	if p.GraceOrder == GraceBeforeWeekendExclusion {
		return unitDay
	}
	return counted && unitDay
}
