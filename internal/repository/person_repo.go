package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/insightvigil/biblioteca-escolar/internal/model"
)

const dateLayout = "2006-01-02"

// PersonRepository 借阅人数据访问接口
type PersonRepository interface {
	GetByID(ctx context.Context, id string) (*model.Person, error)
	// GetByIDForUpdate SELECT ... FOR UPDATE，串行化同一借阅人的借出操作
	GetByIDForUpdate(ctx context.Context, id string) (*model.Person, error)
}

type personRepo struct {
	db *gorm.DB
}

// NewPersonRepo 创建 PersonRepository 实例
func NewPersonRepo(db *gorm.DB) PersonRepository {
	return &personRepo{db: db}
}

func (r *personRepo) GetByID(ctx context.Context, id string) (*model.Person, error) {
	var person model.Person
	err := r.db.WithContext(ctx).
		Where("person_id = ?", id).
		First(&person).Error
	if err != nil {
		return nil, err
	}
	return &person, nil
}

// GetByIDForUpdate 必须在事务连接上调用（通过 Repository.Transaction 注入）
func (r *personRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Person, error) {
	var person model.Person
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("person_id = ?", id).
		First(&person).Error
	if err != nil {
		return nil, err
	}
	return &person, nil
}
