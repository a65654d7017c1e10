package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/insightvigil/biblioteca-escolar/internal/model"
)

// PeriodRepository 学期数据访问接口
type PeriodRepository interface {
	GetByID(ctx context.Context, id string) (*model.AcademicPeriod, error)
	// FindByDate 查找包含 d 的学期；学期互不重叠，至多一条
	FindByDate(ctx context.Context, d time.Time) (*model.AcademicPeriod, error)
	List(ctx context.Context) ([]model.AcademicPeriod, error)
}

type periodRepo struct {
	db *gorm.DB
}

// NewPeriodRepo 创建 PeriodRepository 实例
func NewPeriodRepo(db *gorm.DB) PeriodRepository {
	return &periodRepo{db: db}
}

func (r *periodRepo) GetByID(ctx context.Context, id string) (*model.AcademicPeriod, error) {
	var period model.AcademicPeriod
	err := r.db.WithContext(ctx).
		Where("period_id = ?", id).
		First(&period).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) FindByDate(ctx context.Context, d time.Time) (*model.AcademicPeriod, error) {
	var period model.AcademicPeriod
	day := d.Format(dateLayout)
	err := r.db.WithContext(ctx).
		Where("start_date <= ? AND end_date >= ?", day, day).
		First(&period).Error
	if err != nil {
		return nil, err
	}
	return &period, nil
}

func (r *periodRepo) List(ctx context.Context) ([]model.AcademicPeriod, error) {
	var periods []model.AcademicPeriod
	err := r.db.WithContext(ctx).
		Order("start_date DESC").
		Find(&periods).Error
	return periods, err
}

// ── Holiday ──

// HolidayRepository 节假日数据访问接口
type HolidayRepository interface {
	ListByPeriod(ctx context.Context, periodID string) ([]model.Holiday, error)
}

type holidayRepo struct {
	db *gorm.DB
}

// NewHolidayRepo 创建 HolidayRepository 实例
func NewHolidayRepo(db *gorm.DB) HolidayRepository {
	return &holidayRepo{db: db}
}

func (r *holidayRepo) ListByPeriod(ctx context.Context, periodID string) ([]model.Holiday, error) {
	var holidays []model.Holiday
	err := r.db.WithContext(ctx).
		Where("period_id = ?", periodID).
		Order("date ASC").
		Find(&holidays).Error
	return holidays, err
}
