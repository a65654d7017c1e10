package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/insightvigil/biblioteca-escolar/internal/model"
	pkgerrors "github.com/insightvigil/biblioteca-escolar/pkg/errors"
)

// LoanSettingsRepository 借阅策略数据访问接口
type LoanSettingsRepository interface {
	Get(ctx context.Context) (*model.LoanSettings, error)
	// Update 按 version 乐观锁更新，版本不一致返回 ErrOptimisticLock
	Update(ctx context.Context, s *model.LoanSettings) error
}

type loanSettingsRepo struct {
	db *gorm.DB
}

// NewLoanSettingsRepo 创建 LoanSettingsRepository 实例
func NewLoanSettingsRepo(db *gorm.DB) LoanSettingsRepository {
	return &loanSettingsRepo{db: db}
}

func (r *loanSettingsRepo) Get(ctx context.Context) (*model.LoanSettings, error) {
	var s model.LoanSettings
	err := r.db.WithContext(ctx).
		Where("singleton = ?", true).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *loanSettingsRepo) Update(ctx context.Context, s *model.LoanSettings) error {
	oldVersion := s.Version
	result := r.db.WithContext(ctx).
		Model(&model.LoanSettings{}).
		Where("singleton = ? AND version = ?", true, oldVersion).
		Updates(map[string]interface{}{
			"current_period_id":           s.CurrentPeriodID,
			"loan_days_student":           s.LoanDaysStudent,
			"due_uses_business_days":      s.DueUsesBusinessDays,
			"fine_per_day":                s.FinePerDay,
			"max_books_student":           s.MaxBooksStudent,
			"max_books_professor":         s.MaxBooksProfessor,
			"max_renewals":                s.MaxRenewals,
			"grace_days":                  s.GraceDays,
			"count_weekends_when_overdue": s.CountWeekendsWhenOverdue,
			"renewal_basis":               s.RenewalBasis,
			"grace_unit":                  s.GraceUnit,
			"grace_order":                 s.GraceOrder,
			"version":                     oldVersion + 1,
			"updated_at":                  gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	s.Version = oldVersion + 1
	return nil
}
