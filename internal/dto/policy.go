package dto

// ── 借阅策略 DTO ──

// PolicyResponse 当前借阅策略
type PolicyResponse struct {
	Version                  int    `json:"version"`
	CurrentPeriodID          string `json:"current_period_id,omitempty"`
	LoanDaysStudent          int    `json:"loan_days_student"`
	DueUsesBusinessDays      bool   `json:"due_uses_business_days"`
	FinePerDay               string `json:"fine_per_day"`
	MaxBooksStudent          int    `json:"max_books_student"`
	MaxBooksProfessor        int    `json:"max_books_professor"`
	MaxRenewals              int    `json:"max_renewals"`
	GraceDays                int    `json:"grace_days"`
	CountWeekendsWhenOverdue bool   `json:"count_weekends_when_overdue"`
	RenewalBasis             string `json:"renewal_basis"`
	GraceUnit                string `json:"grace_unit"`
	GraceOrder               string `json:"grace_order"`
}

// UpdatePolicyRequest 更新借阅策略（部分更新，Version 用于乐观锁）
type UpdatePolicyRequest struct {
	Version                  int     `json:"version"                     binding:"required,min=1"`
	CurrentPeriodID          *string `json:"current_period_id"           binding:"omitempty,uuid"`
	LoanDaysStudent          *int    `json:"loan_days_student"           binding:"omitempty,min=0,max=366"`
	DueUsesBusinessDays      *bool   `json:"due_uses_business_days"`
	FinePerDay               *string `json:"fine_per_day"`
	MaxBooksStudent          *int    `json:"max_books_student"           binding:"omitempty,min=0"`
	MaxBooksProfessor        *int    `json:"max_books_professor"         binding:"omitempty,min=0"`
	MaxRenewals              *int    `json:"max_renewals"                binding:"omitempty,min=0"`
	GraceDays                *int    `json:"grace_days"                  binding:"omitempty,min=0,max=366"`
	CountWeekendsWhenOverdue *bool   `json:"count_weekends_when_overdue"`
	RenewalBasis             *string `json:"renewal_basis"               binding:"omitempty,oneof=due_date today"`
	GraceUnit                *string `json:"grace_unit"                  binding:"omitempty,oneof=calendar business"`
	GraceOrder               *string `json:"grace_order"                 binding:"omitempty,oneof=after_weekend_exclusion before_weekend_exclusion"`
}
