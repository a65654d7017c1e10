package model

import "github.com/shopspring/decimal"

// LoanSettings 借阅策略表，对应 loan_settings（单行强类型）
// 每次修改 Version 自增，借阅操作在事务内读取一次形成不可变快照
type LoanSettings struct {
	Singleton                bool            `gorm:"primaryKey;default:true"                json:"-"`
	CurrentPeriodID          *string         `gorm:"type:uuid"                              json:"current_period_id"`
	LoanDaysStudent          int             `gorm:"not null;default:3"                     json:"loan_days_student"`
	DueUsesBusinessDays      bool            `gorm:"not null;default:true"                  json:"due_uses_business_days"`
	FinePerDay               decimal.Decimal `gorm:"type:numeric(12,2);not null;default:12" json:"fine_per_day"`
	MaxBooksStudent          int             `gorm:"not null;default:3"                     json:"max_books_student"`
	MaxBooksProfessor        int             `gorm:"not null;default:5"                     json:"max_books_professor"`
	MaxRenewals              int             `gorm:"not null;default:2"                     json:"max_renewals"`
	GraceDays                int             `gorm:"not null;default:0"                     json:"grace_days"`
	CountWeekendsWhenOverdue bool            `gorm:"not null;default:true"                  json:"count_weekends_when_overdue"`
	RenewalBasis             string          `gorm:"type:varchar(20);not null;default:'due_date'" json:"renewal_basis"`              // due_date | today
	GraceUnit                string          `gorm:"type:varchar(20);not null;default:'calendar'" json:"grace_unit"`                 // calendar | business
	GraceOrder               string          `gorm:"type:varchar(40);not null;default:'after_weekend_exclusion'" json:"grace_order"` // after_weekend_exclusion | before_weekend_exclusion
	Version                  int             `gorm:"not null;default:1"                     json:"version"`
	BaseModel
}

// TableName 指定表名
func (LoanSettings) TableName() string { return "loan_settings" }
