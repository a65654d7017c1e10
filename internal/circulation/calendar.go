package circulation

import (
	"time"

	"github.com/insightvigil/biblioteca-escolar/internal/model"
)

// Calendar 单个学期的工作日日历
// 由学期边界与该学期节假日集合构成，只读、可并发使用
type Calendar struct {
	PeriodID string
	Start    time.Time
	End      time.Time
	holidays map[time.Time]struct{}
}

// NewCalendar 根据学期与节假日构建日历
func NewCalendar(period *model.AcademicPeriod, holidays []time.Time) *Calendar {
	set := make(map[time.Time]struct{}, len(holidays))
	for _, h := range holidays {
		set[Day(h)] = struct{}{}
	}
	return &Calendar{
		PeriodID: period.PeriodID,
		Start:    Day(period.StartDate),
		End:      Day(period.EndDate),
		holidays: set,
	}
}

// Contains 日期是否落在学期范围内（含首尾）
func (c *Calendar) Contains(d time.Time) bool {
	d = Day(d)
	return !d.Before(c.Start) && !d.After(c.End)
}

// IsHoliday 是否为本学期节假日
func (c *Calendar) IsHoliday(d time.Time) bool {
	_, ok := c.holidays[Day(d)]
	return ok
}

// IsBusinessDay 既非周末也非本学期节假日
func (c *Calendar) IsBusinessDay(d time.Time) bool {
	return !IsWeekend(d) && !c.IsHoliday(d)
}

// Holidays 节假日列表（无序）
func (c *Calendar) Holidays() []time.Time {
	out := make([]time.Time, 0, len(c.holidays))
	for d := range c.holidays {
		out = append(out, d)
	}
	return out
}

// MaxDaysAhead 单次日期推算允许的最大天数
const MaxDaysAhead = 366

func checkDays(n int) error {
	if n < 0 {
		return ErrNegativeDays
	}
	if n > MaxDaysAhead {
		return ErrDaysOutOfRange
	}
	return nil
}

// AddBusinessDays 从 base 起逐日向后推进，仅工作日计数，直到累计 n 天
// n = 0 时原样返回 base
func (c *Calendar) AddBusinessDays(base time.Time, n int) (time.Time, error) {
	if err := checkDays(n); err != nil {
		return time.Time{}, err
	}
	d := Day(base)
	for added := 0; added < n; {
		d = nextDay(d)
		if c.IsBusinessDay(d) {
			added++
		}
	}
	return d, nil
}

// AddCalendarDays 按自然日推进（策略关闭工作日计算时使用）
func (c *Calendar) AddCalendarDays(base time.Time, n int) (time.Time, error) {
	if err := checkDays(n); err != nil {
		return time.Time{}, err
	}
	return Day(base).AddDate(0, 0, n), nil
}
