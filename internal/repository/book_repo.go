package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/insightvigil/biblioteca-escolar/internal/model"
)

// BookAvailability 图书库存视图
type BookAvailability struct {
	BookID     string `json:"book_id"`
	Title      string `json:"title"`
	TotalStock int    `json:"total_stock"`
	Active     int    `json:"active"`
}

// BookRepository 图书数据访问接口
type BookRepository interface {
	GetByID(ctx context.Context, id string) (*model.Book, error)
	// GetByIDForUpdate SELECT ... FOR UPDATE，串行化同一本书的借出操作
	GetByIDForUpdate(ctx context.Context, id string) (*model.Book, error)
	// ListAvailability bookIDs 为空时返回全部图书
	ListAvailability(ctx context.Context, bookIDs []string) ([]BookAvailability, error)
}

type bookRepo struct {
	db *gorm.DB
}

// NewBookRepo 创建 BookRepository 实例
func NewBookRepo(db *gorm.DB) BookRepository {
	return &bookRepo{db: db}
}

func (r *bookRepo) GetByID(ctx context.Context, id string) (*model.Book, error) {
	var book model.Book
	err := r.db.WithContext(ctx).
		Where("book_id = ?", id).
		First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Book, error) {
	var book model.Book
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("book_id = ?", id).
		First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepo) ListAvailability(ctx context.Context, bookIDs []string) ([]BookAvailability, error) {
	var rows []BookAvailability
	q := r.db.WithContext(ctx).
		Table("books").
		Select(`books.book_id, books.title, books.total_stock,
			(SELECT COUNT(*) FROM loan_items li
			  WHERE li.book_id = books.book_id AND li.status = ?) AS active`, model.ItemStatusCheckedOut)
	if len(bookIDs) > 0 {
		q = q.Where("books.book_id IN ?", bookIDs)
	}
	err := q.Order("books.title ASC").Scan(&rows).Error
	return rows, err
}
