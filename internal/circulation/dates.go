package circulation

import "time"

// DateLayout 日期格式（与数据库 date 列一致）
const DateLayout = "2006-01-02"

// Day 截断到自然日，统一为 UTC 零点
// 所有日期比较都基于 Day 结果，避免时区与时分秒干扰
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay 解析 YYYY-MM-DD
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}

// FormatDay 格式化为 YYYY-MM-DD
func FormatDay(t time.Time) string {
	return t.Format(DateLayout)
}

// IsWeekend 周六、周日（固定，不可配置）
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func nextDay(d time.Time) time.Time {
	return d.AddDate(0, 0, 1)
}
