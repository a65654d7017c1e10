package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/insightvigil/biblioteca-escolar/internal/model"
)

// LoanItemFilter 借阅项查询条件，零值字段不参与过滤
type LoanItemFilter struct {
	LoanID   string
	PersonID string
	PeriodID string
	BookID   string
	Status   string
	// OverdueAsOf 非空时仅返回 due_date < OverdueAsOf 且未归还的借阅项
	OverdueAsOf *time.Time
	// DueOn 非空时仅返回 due_date = DueOn 且未归还的借阅项
	DueOn *time.Time
	// WithDebt 仅返回已记罚款且未缴清的借阅项
	WithDebt bool
	Offset   int
	Limit    int
}

// LoanItemRow 借阅项列表行：借阅项 + 借阅人 / 图书 / 已缴金额
type LoanItemRow struct {
	model.LoanItem
	PersonID    string          `json:"person_id"`
	PersonName  string          `json:"person_name"`
	PersonEmail string          `json:"person_email"`
	Role        string          `json:"role"`
	PeriodID    string          `json:"period_id"`
	BookTitle   string          `json:"book_title"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
}

// LoanItemRepository 借阅项数据访问接口
type LoanItemRepository interface {
	Create(ctx context.Context, item *model.LoanItem) error
	GetByID(ctx context.Context, id string) (*model.LoanItem, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.LoanItem, error)
	ListByLoan(ctx context.Context, loanID string) ([]model.LoanItem, error)
	// ListByLoanForUpdate 锁定借阅单下全部借阅项（按主键排序加锁）
	ListByLoanForUpdate(ctx context.Context, loanID string) ([]model.LoanItem, error)
	Update(ctx context.Context, item *model.LoanItem) error
	// CountActiveByBook 该书处于 checked_out 的借阅项数（逾期仍计入）
	CountActiveByBook(ctx context.Context, bookID string) (int, error)
	// CountActiveByPerson 该借阅人所有借阅单中处于 checked_out 的借阅项数
	CountActiveByPerson(ctx context.Context, personID string) (int, error)
	List(ctx context.Context, f LoanItemFilter) ([]LoanItemRow, int64, error)
}

type loanItemRepo struct {
	db *gorm.DB
}

// NewLoanItemRepo 创建 LoanItemRepository 实例
func NewLoanItemRepo(db *gorm.DB) LoanItemRepository {
	return &loanItemRepo{db: db}
}

func (r *loanItemRepo) Create(ctx context.Context, item *model.LoanItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *loanItemRepo) GetByID(ctx context.Context, id string) (*model.LoanItem, error) {
	var item model.LoanItem
	err := r.db.WithContext(ctx).
		Where("loan_item_id = ?", id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *loanItemRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.LoanItem, error) {
	var item model.LoanItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("loan_item_id = ?", id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *loanItemRepo) ListByLoan(ctx context.Context, loanID string) ([]model.LoanItem, error) {
	var items []model.LoanItem
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("created_at ASC, loan_item_id ASC").
		Find(&items).Error
	return items, err
}

func (r *loanItemRepo) ListByLoanForUpdate(ctx context.Context, loanID string) ([]model.LoanItem, error) {
	var items []model.LoanItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("loan_id = ?", loanID).
		Order("loan_item_id ASC").
		Find(&items).Error
	return items, err
}

func (r *loanItemRepo) Update(ctx context.Context, item *model.LoanItem) error {
	return r.db.WithContext(ctx).
		Model(&model.LoanItem{}).
		Where("loan_item_id = ?", item.LoanItemID).
		Updates(map[string]interface{}{
			"due_date":      item.DueDate,
			"returned_date": item.ReturnedDate,
			"renewal_count": item.RenewalCount,
			"fine_amount":   item.FineAmount,
			"status":        item.Status,
			"updated_at":    gorm.Expr("NOW()"),
		}).Error
}

func (r *loanItemRepo) CountActiveByBook(ctx context.Context, bookID string) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.LoanItem{}).
		Where("book_id = ? AND status = ?", bookID, model.ItemStatusCheckedOut).
		Count(&n).Error
	return int(n), err
}

func (r *loanItemRepo) CountActiveByPerson(ctx context.Context, personID string) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.LoanItem{}).
		Joins("JOIN loans ON loans.loan_id = loan_items.loan_id").
		Where("loans.person_id = ? AND loan_items.status = ?", personID, model.ItemStatusCheckedOut).
		Count(&n).Error
	return int(n), err
}

func (r *loanItemRepo) List(ctx context.Context, f LoanItemFilter) ([]LoanItemRow, int64, error) {
	paid := "COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.loan_item_id = loan_items.loan_item_id), 0)"

	q := r.db.WithContext(ctx).
		Table("loan_items").
		Joins("JOIN loans ON loans.loan_id = loan_items.loan_id").
		Joins("JOIN people ON people.person_id = loans.person_id").
		Joins("JOIN books ON books.book_id = loan_items.book_id")

	if f.LoanID != "" {
		q = q.Where("loan_items.loan_id = ?", f.LoanID)
	}
	if f.PersonID != "" {
		q = q.Where("loans.person_id = ?", f.PersonID)
	}
	if f.PeriodID != "" {
		q = q.Where("loans.period_id = ?", f.PeriodID)
	}
	if f.BookID != "" {
		q = q.Where("loan_items.book_id = ?", f.BookID)
	}
	if f.Status != "" {
		q = q.Where("loan_items.status = ?", f.Status)
	}
	if f.OverdueAsOf != nil {
		q = q.Where("loan_items.status = ? AND loan_items.due_date < ?",
			model.ItemStatusCheckedOut, f.OverdueAsOf.Format(dateLayout))
	}
	if f.DueOn != nil {
		q = q.Where("loan_items.status = ? AND loan_items.due_date = ?",
			model.ItemStatusCheckedOut, f.DueOn.Format(dateLayout))
	}
	if f.WithDebt {
		q = q.Where("loan_items.fine_amount > " + paid)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Select(`loan_items.*,
		loans.person_id, loans.period_id,
		people.name AS person_name, people.email AS person_email, people.role,
		books.title AS book_title,
		` + paid + ` AS paid_amount`).
		Order("loan_items.due_date ASC, loan_items.loan_item_id ASC")
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var rows []LoanItemRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
