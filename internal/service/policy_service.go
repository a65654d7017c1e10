package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/insightvigil/biblioteca-escolar/config"
	"github.com/insightvigil/biblioteca-escolar/internal/circulation"
	"github.com/insightvigil/biblioteca-escolar/internal/dto"
	"github.com/insightvigil/biblioteca-escolar/internal/repository"
	apperrors "github.com/insightvigil/biblioteca-escolar/pkg/errors"
)

// ── 策略模块业务错误 ──

var (
	ErrPolicyNotInitialized = apperrors.NotFound("借阅策略未初始化")
	ErrInvalidAmount        = apperrors.Validation("金额格式无效")
)

// PolicyService 借阅策略业务接口
//
// Snapshot 在调用方事务内读取一次 loan_settings，得到的 Policy 按值向下传递，
// 同一借阅操作内不会观察到并发的策略修改。
type PolicyService interface {
	Snapshot(ctx context.Context, repo *repository.Repository) (circulation.Policy, error)
	Get(ctx context.Context) (*dto.PolicyResponse, error)
	Update(ctx context.Context, req *dto.UpdatePolicyRequest) (*dto.PolicyResponse, error)
}

type policyService struct {
	repo     *repository.Repository
	defaults circulation.Policy
	logger   *zap.Logger
}

// NewPolicyService 创建 PolicyService 实例
func NewPolicyService(repo *repository.Repository, defaults circulation.Policy, logger *zap.Logger) PolicyService {
	return &policyService{repo: repo, defaults: defaults, logger: logger}
}

// DefaultPolicy 由配置文件构建默认策略（loan_settings 缺行时使用）
// cfg 已通过 config.Validate 校验
func DefaultPolicy(cfg config.PolicyConfig) circulation.Policy {
	fine, err := decimal.NewFromString(cfg.FinePerDay)
	if err != nil {
		fine = decimal.Zero
	}
	return circulation.Policy{
		LoanDaysStudent:          cfg.LoanDaysStudent,
		DueUsesBusinessDays:      cfg.DueUsesBusinessDays,
		MaxBooksStudent:          cfg.MaxBooksStudent,
		MaxBooksProfessor:        cfg.MaxBooksProfessor,
		MaxRenewals:              cfg.MaxRenewals,
		FinePerDay:               fine,
		GraceDays:                cfg.GraceDays,
		CountWeekendsWhenOverdue: cfg.CountWeekendsWhenOverdue,
		RenewalBasis:             circulation.RenewalBasis(cfg.RenewalBasis),
		GraceUnit:                circulation.GraceUnit(cfg.GraceUnit),
		GraceOrder:               circulation.GraceOrder(cfg.GraceOrder),
	}
}

// ────────────────────── Snapshot ──────────────────────

func (s *policyService) Snapshot(ctx context.Context, repo *repository.Repository) (circulation.Policy, error) {
	settings, err := repo.LoanSettings.Get(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.defaults, nil
		}
		s.logger.Error("查询借阅策略失败", zap.Error(err))
		return circulation.Policy{}, apperrors.Storage(err)
	}

	p := circulation.PolicyFromSettings(settings, s.defaults)
	if err := p.Validate(); err != nil {
		s.logger.Error("借阅策略取值无效", zap.Int("version", p.Version))
		return circulation.Policy{}, err
	}
	return p, nil
}

// ────────────────────── Get ──────────────────────

func (s *policyService) Get(ctx context.Context) (*dto.PolicyResponse, error) {
	p, err := s.Snapshot(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	return toPolicyResponse(p), nil
}

// ────────────────────── Update ──────────────────────

func (s *policyService) Update(ctx context.Context, req *dto.UpdatePolicyRequest) (*dto.PolicyResponse, error) {
	settings, err := s.repo.LoanSettings.Get(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPolicyNotInitialized
		}
		s.logger.Error("查询借阅策略失败", zap.Error(err))
		return nil, apperrors.Storage(err)
	}
	if settings.Version != req.Version {
		return nil, apperrors.ErrOptimisticLock
	}

	if req.CurrentPeriodID != nil {
		if _, err := s.repo.Period.GetByID(ctx, *req.CurrentPeriodID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, circulation.ErrPeriodNotFound
			}
			return nil, apperrors.Storage(err)
		}
		settings.CurrentPeriodID = req.CurrentPeriodID
	}
	if req.LoanDaysStudent != nil {
		settings.LoanDaysStudent = *req.LoanDaysStudent
	}
	if req.DueUsesBusinessDays != nil {
		settings.DueUsesBusinessDays = *req.DueUsesBusinessDays
	}
	if req.FinePerDay != nil {
		fine, err := decimal.NewFromString(*req.FinePerDay)
		if err != nil {
			return nil, ErrInvalidAmount
		}
		settings.FinePerDay = fine.Round(2)
	}
	if req.MaxBooksStudent != nil {
		settings.MaxBooksStudent = *req.MaxBooksStudent
	}
	if req.MaxBooksProfessor != nil {
		settings.MaxBooksProfessor = *req.MaxBooksProfessor
	}
	if req.MaxRenewals != nil {
		settings.MaxRenewals = *req.MaxRenewals
	}
	if req.GraceDays != nil {
		settings.GraceDays = *req.GraceDays
	}
	if req.CountWeekendsWhenOverdue != nil {
		settings.CountWeekendsWhenOverdue = *req.CountWeekendsWhenOverdue
	}
	if req.RenewalBasis != nil {
		settings.RenewalBasis = *req.RenewalBasis
	}
	if req.GraceUnit != nil {
		settings.GraceUnit = *req.GraceUnit
	}
	if req.GraceOrder != nil {
		settings.GraceOrder = *req.GraceOrder
	}

	p := circulation.PolicyFromSettings(settings, s.defaults)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.LoanSettings.Update(ctx, settings); err != nil {
		if errors.Is(err, apperrors.ErrOptimisticLock) {
			return nil, err
		}
		s.logger.Error("更新借阅策略失败", zap.Error(err))
		return nil, apperrors.Storage(err)
	}

	s.logger.Info("借阅策略已更新", zap.Int("version", settings.Version))
	p.Version = settings.Version
	return toPolicyResponse(p), nil
}

func toPolicyResponse(p circulation.Policy) *dto.PolicyResponse {
	return &dto.PolicyResponse{
		Version:                  p.Version,
		CurrentPeriodID:          p.CurrentPeriodID,
		LoanDaysStudent:          p.LoanDaysStudent,
		DueUsesBusinessDays:      p.DueUsesBusinessDays,
		FinePerDay:               p.FinePerDay.StringFixed(2),
		MaxBooksStudent:          p.MaxBooksStudent,
		MaxBooksProfessor:        p.MaxBooksProfessor,
		MaxRenewals:              p.MaxRenewals,
		GraceDays:                p.GraceDays,
		CountWeekendsWhenOverdue: p.CountWeekendsWhenOverdue,
		RenewalBasis:             string(p.RenewalBasis),
		GraceUnit:                string(p.GraceUnit),
		GraceOrder:               string(p.GraceOrder),
	}
}
