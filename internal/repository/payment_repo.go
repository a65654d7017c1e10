package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/insightvigil/biblioteca-escolar/internal/model"
)

// PaymentRepository 罚款缴纳记录数据访问接口
type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	ListByItem(ctx context.Context, itemID string) ([]model.Payment, error)
	SumByItem(ctx context.Context, itemID string) (decimal.Decimal, error)
}

type paymentRepo struct {
	db *gorm.DB
}

// NewPaymentRepo 创建 PaymentRepository 实例
func NewPaymentRepo(db *gorm.DB) PaymentRepository {
	return &paymentRepo{db: db}
}

func (r *paymentRepo) Create(ctx context.Context, p *model.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *paymentRepo) ListByItem(ctx context.Context, itemID string) ([]model.Payment, error) {
	var payments []model.Payment
	err := r.db.WithContext(ctx).
		Where("loan_item_id = ?", itemID).
		Order("paid_at ASC").
		Find(&payments).Error
	return payments, err
}

func (r *paymentRepo) SumByItem(ctx context.Context, itemID string) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&model.Payment{}).
		Select("SUM(amount)").
		Where("loan_item_id = ?", itemID).
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}
