package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/insightvigil/biblioteca-escolar/internal/circulation"
	"github.com/insightvigil/biblioteca-escolar/internal/dto"
	"github.com/insightvigil/biblioteca-escolar/internal/model"
	"github.com/insightvigil/biblioteca-escolar/internal/repository"
	apperrors "github.com/insightvigil/biblioteca-escolar/pkg/errors"
	"github.com/insightvigil/biblioteca-escolar/pkg/redis"
)

// ── 日历模块业务错误 ──

var (
	ErrInvalidDate = apperrors.Validation("日期格式无效，应为 YYYY-MM-DD")
)

// HolidayCache 节假日缓存（由 pkg/redis.Client 实现）
type HolidayCache interface {
	GetHolidays(ctx context.Context, periodID string) ([]string, error)
	SetHolidays(ctx context.Context, periodID string, dates []string, ttl time.Duration) error
}

// CalendarService 学期日历业务接口
//
// 学期与节假日为只读参考数据，读取不加锁；
// 配置了 Redis 时节假日经缓存读取，缓存故障降级为直接查库。
type CalendarService interface {
	// ResolvePeriod 查找包含 d 的学期
	ResolvePeriod(ctx context.Context, d time.Time) (*model.AcademicPeriod, error)
	// ForPeriod 构建学期日历（边界 + 节假日集合）
	ForPeriod(ctx context.Context, periodID string) (*circulation.Calendar, error)
	AddBusinessDays(ctx context.Context, periodID string, base time.Time, n int) (time.Time, error)

	Resolve(ctx context.Context, date string) (*dto.PeriodResponse, error)
	BusinessDays(ctx context.Context, periodID string, req *dto.BusinessDaysRequest) (*dto.BusinessDaysResponse, error)
}

type calendarService struct {
	repo   *repository.Repository
	cache  HolidayCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例；cache 可为 nil
func NewCalendarService(repo *repository.Repository, cache HolidayCache, ttl time.Duration, logger *zap.Logger) CalendarService {
	return &calendarService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// ────────────────────── ResolvePeriod ──────────────────────

func (s *calendarService) ResolvePeriod(ctx context.Context, d time.Time) (*model.AcademicPeriod, error) {
	period, err := s.repo.Period.FindByDate(ctx, circulation.Day(d))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, circulation.ErrPeriodNotFound
		}
		s.logger.Error("按日期查询学期失败", zap.String("date", circulation.FormatDay(d)), zap.Error(err))
		return nil, apperrors.Storage(err)
	}
	return period, nil
}

// ────────────────────── ForPeriod ──────────────────────

func (s *calendarService) ForPeriod(ctx context.Context, periodID string) (*circulation.Calendar, error) {
	period, err := s.repo.Period.GetByID(ctx, periodID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, circulation.ErrPeriodNotFound
		}
		s.logger.Error("查询学期失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, apperrors.Storage(err)
	}

	holidays, err := s.holidays(ctx, periodID)
	if err != nil {
		return nil, err
	}
	return circulation.NewCalendar(period, holidays), nil
}

// holidays 先读缓存，未命中或缓存故障时查库并回填
func (s *calendarService) holidays(ctx context.Context, periodID string) ([]time.Time, error) {
	if s.cache != nil {
		cached, err := s.cache.GetHolidays(ctx, periodID)
		switch {
		case err == nil:
			if days, perr := parseDays(cached); perr == nil {
				return days, nil
			}
			s.logger.Warn("节假日缓存内容无效，回源查库", zap.String("period_id", periodID))
		case errors.Is(err, redis.ErrCacheMiss):
		default:
			s.logger.Warn("读取节假日缓存失败，降级查库", zap.String("period_id", periodID), zap.Error(err))
		}
	}

	rows, err := s.repo.Holiday.ListByPeriod(ctx, periodID)
	if err != nil {
		s.logger.Error("查询节假日失败", zap.String("period_id", periodID), zap.Error(err))
		return nil, apperrors.Storage(err)
	}
	days := make([]time.Time, 0, len(rows))
	formatted := make([]string, 0, len(rows))
	for _, h := range rows {
		days = append(days, circulation.Day(h.Date))
		formatted = append(formatted, circulation.FormatDay(h.Date))
	}

	if s.cache != nil {
		if err := s.cache.SetHolidays(ctx, periodID, formatted, s.ttl); err != nil {
			s.logger.Warn("写入节假日缓存失败", zap.String("period_id", periodID), zap.Error(err))
		}
	}
	return days, nil
}

// ────────────────────── AddBusinessDays ──────────────────────

func (s *calendarService) AddBusinessDays(ctx context.Context, periodID string, base time.Time, n int) (time.Time, error) {
	if n < 0 {
		return time.Time{}, circulation.ErrNegativeDays
	}
	cal, err := s.ForPeriod(ctx, periodID)
	if err != nil {
		return time.Time{}, err
	}
	return cal.AddBusinessDays(base, n)
}

// ────────────────────── HTTP 视图 ──────────────────────

func (s *calendarService) Resolve(ctx context.Context, date string) (*dto.PeriodResponse, error) {
	d, err := circulation.ParseDay(date)
	if err != nil {
		return nil, ErrInvalidDate
	}
	period, err := s.ResolvePeriod(ctx, d)
	if err != nil {
		return nil, err
	}
	cal, err := s.ForPeriod(ctx, period.PeriodID)
	if err != nil {
		return nil, err
	}

	holidays := cal.Holidays()
	sort.Slice(holidays, func(i, j int) bool { return holidays[i].Before(holidays[j]) })
	resp := &dto.PeriodResponse{
		ID:        period.PeriodID,
		Name:      period.Name,
		StartDate: circulation.FormatDay(period.StartDate),
		EndDate:   circulation.FormatDay(period.EndDate),
		Holidays:  make([]string, 0, len(holidays)),
	}
	for _, h := range holidays {
		resp.Holidays = append(resp.Holidays, circulation.FormatDay(h))
	}
	return resp, nil
}

func (s *calendarService) BusinessDays(ctx context.Context, periodID string, req *dto.BusinessDaysRequest) (*dto.BusinessDaysResponse, error) {
	base, err := circulation.ParseDay(req.Base)
	if err != nil {
		return nil, ErrInvalidDate
	}
	result, err := s.AddBusinessDays(ctx, periodID, base, req.N)
	if err != nil {
		return nil, err
	}
	return &dto.BusinessDaysResponse{
		PeriodID: periodID,
		Base:     circulation.FormatDay(base),
		N:        req.N,
		Result:   circulation.FormatDay(result),
	}, nil
}

// ── 日期解析辅助 ──

func parseDays(values []string) ([]time.Time, error) {
	days := make([]time.Time, 0, len(values))
	for _, v := range values {
		d, err := circulation.ParseDay(v)
		if err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, nil
}

// parseDayOr 解析 YYYY-MM-DD，空串返回 def
func parseDayOr(value string, def time.Time) (time.Time, error) {
	if value == "" {
		return def, nil
	}
	d, err := circulation.ParseDay(value)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// parseOptionalDay 解析可选日期，空串返回 nil
func parseOptionalDay(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	d, err := circulation.ParseDay(value)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return &d, nil
}
