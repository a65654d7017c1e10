package repository

import (
	"context"

	"gorm.io/gorm"
)

// Transactor 事务执行器
// fn 内通过 txRepo 访问的所有 Repository 共享同一事务；fn 返回错误时整体回滚
type Transactor interface {
	Transaction(ctx context.Context, fn func(txRepo *Repository) error) error
}

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Period       PeriodRepository
	Holiday      HolidayRepository
	LoanSettings LoanSettingsRepository
	Person       PersonRepository
	Book         BookRepository
	Loan         LoanRepository
	LoanItem     LoanItemRepository
	Payment      PaymentRepository

	// Transactor 非空时 Transaction 交由其执行（单元测试注入内存实现）
	Transactor Transactor
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:           db,
		Period:       NewPeriodRepo(db),
		Holiday:      NewHolidayRepo(db),
		LoanSettings: NewLoanSettingsRepo(db),
		Person:       NewPersonRepo(db),
		Book:         NewBookRepo(db),
		Loan:         NewLoanRepo(db),
		LoanItem:     NewLoanItemRepo(db),
		Payment:      NewPaymentRepo(db),
	}
}

// BeginTx 开启数据库事务
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx 返回绑定到事务连接的 Repository 副本
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Transaction 在单个数据库事务内执行 fn
// fn 返回错误或 panic 时回滚，否则提交
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.Transactor != nil {
		return r.Transactor.Transaction(ctx, fn)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}
