package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/insightvigil/biblioteca-escolar/internal/model"
)

// LoanRepository 借阅单数据访问接口
type LoanRepository interface {
	Create(ctx context.Context, loan *model.Loan) error
	GetByID(ctx context.Context, id string) (*model.Loan, error)
	// GetByIDForUpdate SELECT ... FOR UPDATE；借阅单是所有借阅项写操作的第一把锁
	GetByIDForUpdate(ctx context.Context, id string) (*model.Loan, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

type loanRepo struct {
	db *gorm.DB
}

// NewLoanRepo 创建 LoanRepository 实例
func NewLoanRepo(db *gorm.DB) LoanRepository {
	return &loanRepo{db: db}
}

func (r *loanRepo) Create(ctx context.Context, loan *model.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

func (r *loanRepo) GetByID(ctx context.Context, id string) (*model.Loan, error) {
	var loan model.Loan
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", id).
		First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Loan, error) {
	var loan model.Loan
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("loan_id = ?", id).
		First(&loan).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepo) UpdateStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&model.Loan{}).
		Where("loan_id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": gorm.Expr("NOW()"),
		}).Error
}
