package model

import "time"

// AcademicPeriod 学期表，对应 academic_periods
// 学期之间不重叠，任一日期至多落在一个学期内
type AcademicPeriod struct {
	PeriodID  string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"period_id"`
	Name      string    `gorm:"type:varchar(100);not null"                     json:"name"`
	StartDate time.Time `gorm:"type:date;not null"                             json:"start_date"`
	EndDate   time.Time `gorm:"type:date;not null"                             json:"end_date"`
	BaseModel
}

// TableName 指定表名
func (AcademicPeriod) TableName() string { return "academic_periods" }

// Holiday 节假日表，对应 holidays，隶属唯一学期
type Holiday struct {
	HolidayID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"holiday_id"`
	PeriodID  string    `gorm:"type:uuid;not null;uniqueIndex:uq_holiday_period_date" json:"period_id"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex:uq_holiday_period_date"  json:"date"`
	Name      string    `gorm:"type:varchar(100);not null;default:''"          json:"name"`
	BaseModel
}

// TableName 指定表名
func (Holiday) TableName() string { return "holidays" }
