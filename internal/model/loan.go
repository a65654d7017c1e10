package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 借阅单状态
const (
	LoanStatusActive    = "active"
	LoanStatusReturned  = "returned"
	LoanStatusCancelled = "cancelled"
)

// 借阅项状态；“逾期”由 due_date / returned_date 推导，不落库
const (
	ItemStatusCheckedOut = "checked_out"
	ItemStatusReturned   = "returned"
	ItemStatusLost       = "lost"
	ItemStatusDamaged    = "damaged"
)

// Loan 借阅单表，对应 loans
type Loan struct {
	LoanID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"loan_id"`
	PersonID  string    `gorm:"type:uuid;not null;index"                       json:"person_id"`
	PeriodID  string    `gorm:"type:uuid;not null;index"                       json:"period_id"`
	StartDate time.Time `gorm:"type:date;not null"                             json:"start_date"`
	Status    string    `gorm:"type:varchar(20);not null;default:'active'"     json:"status"` // active | returned | cancelled
	BaseModel
}

// TableName 指定表名
func (Loan) TableName() string { return "loans" }

// LoanItem 借阅项表，对应 loan_items
// 通过 LoanID / BookID 引用，不嵌入对象
type LoanItem struct {
	LoanItemID   string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"loan_item_id"`
	LoanID       string          `gorm:"type:uuid;not null;index"                       json:"loan_id"`
	BookID       string          `gorm:"type:uuid;not null;index"                       json:"book_id"`
	DueDate      time.Time       `gorm:"type:date;not null"                             json:"due_date"`
	ReturnedDate *time.Time      `gorm:"type:date"                                      json:"returned_date,omitempty"`
	RenewalCount int             `gorm:"not null;default:0"                             json:"renewal_count"`
	FineAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"          json:"fine_amount"`
	Status       string          `gorm:"type:varchar(20);not null;default:'checked_out'" json:"status"` // checked_out | returned | lost | damaged
	BaseModel
}

// TableName 指定表名
func (LoanItem) TableName() string { return "loan_items" }

// Payment 罚款缴纳记录，对应 payments
type Payment struct {
	PaymentID  string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"payment_id"`
	LoanItemID string          `gorm:"type:uuid;not null;index"                       json:"loan_item_id"`
	Amount     decimal.Decimal `gorm:"type:numeric(12,2);not null"                    json:"amount"`
	Method     string          `gorm:"type:varchar(50);not null;default:''"           json:"method"`
	Note       string          `gorm:"type:varchar(500);not null;default:''"          json:"note"`
	PaidAt     time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"paid_at"`
	BaseModel
}

// TableName 指定表名
func (Payment) TableName() string { return "payments" }
