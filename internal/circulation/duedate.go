package circulation

import (
	"time"

	"github.com/insightvigil/biblioteca-escolar/internal/model"
)

// DueDateFor 计算借出时的应还日期
//
//   - 学生：start 起 LoanDaysStudent 个工作日（或自然日，取决于策略）
//   - 教师：无固定借期，必须显式给出；需 >= start 且落在学期内
//
// 学生借阅忽略 explicit。
func DueDateFor(role string, cal *Calendar, start time.Time, explicit *time.Time, p Policy) (time.Time, error) {
	start = Day(start)
	switch role {
	case model.RoleStudent:
		return advance(cal, start, p.LoanDaysStudent, p)
	case model.RoleProfessor:
		if explicit == nil {
			return time.Time{}, ErrDueDateRequired
		}
		due := Day(*explicit)
		if due.Before(start) {
			return time.Time{}, ErrDueBeforeStart
		}
		if !cal.Contains(due) {
			return time.Time{}, ErrDueOutsidePeriod
		}
		return due, nil
	default:
		return time.Time{}, ErrUnknownRole
	}
}

// RenewalDueDate 计算续借后的应还日期
//
// 学生默认从当前应还日期起算（RenewalFromDueDate），迟到的续借申请不会多得天数；
// RenewalFromToday 时以 max(today, currentDue) 为基准。
// 教师续借需显式给出新日期，且不早于当前应还日期、不超出学期。
func RenewalDueDate(role string, cal *Calendar, currentDue, today time.Time, explicit *time.Time, p Policy) (time.Time, error) {
	currentDue = Day(currentDue)
	switch role {
	case model.RoleStudent:
		base := currentDue
		if p.RenewalBasis == RenewalFromToday && Day(today).After(base) {
			base = Day(today)
		}
		return advance(cal, base, p.LoanDaysStudent, p)
	case model.RoleProfessor:
		if explicit == nil {
			return time.Time{}, ErrDueDateRequired
		}
		due := Day(*explicit)
		if due.Before(currentDue) {
			return time.Time{}, ErrDueBeforeCurrentDue
		}
		if !cal.Contains(due) {
			return time.Time{}, ErrDueOutsidePeriod
		}
		return due, nil
	default:
		return time.Time{}, ErrUnknownRole
	}
}

func advance(cal *Calendar, base time.Time, days int, p Policy) (time.Time, error) {
	if p.DueUsesBusinessDays {
		return cal.AddBusinessDays(base, days)
	}
	return cal.AddCalendarDays(base, days)
}
