package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/insightvigil/biblioteca-escolar/config"
	"github.com/insightvigil/biblioteca-escolar/internal/circulation"
	"github.com/insightvigil/biblioteca-escolar/internal/repository"
	"github.com/insightvigil/biblioteca-escolar/pkg/redis"
)

// Clock 业务时钟
// “今天”按服务器配置的时区取自然日，测试中可固定 NowFunc
type Clock struct {
	NowFunc  func() time.Time
	Location *time.Location
}

// Now 当前时间
func (c Clock) Now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now()
}

// Today 业务时区下的今天（UTC 零点表示）
func (c Clock) Today() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return circulation.Day(c.Now().In(loc))
}

// Service 所有 Service 的聚合入口
type Service struct {
	Calendar CalendarService
	Policy   PolicyService
	Loan     LoanService
	Report   ReportService
	Feed     FeedService
}

// NewService 创建 Service 聚合；rdb 为 nil 时节假日不走缓存
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	rdb *redis.Client,
	logger *zap.Logger,
) (*Service, error) {
	loc, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		return nil, err
	}
	clock := Clock{Location: loc}

	var cache HolidayCache
	if rdb != nil {
		cache = rdb
	}

	calendar := NewCalendarService(repo, cache, cfg.Cache.HolidayTTL, logger)
	policy := NewPolicyService(repo, DefaultPolicy(cfg.Policy), logger)

	return &Service{
		Calendar: calendar,
		Policy:   policy,
		Loan:     NewLoanService(repo, calendar, policy, clock, logger),
		Report:   NewReportService(repo, logger),
		Feed:     NewFeedService(repo, clock, logger),
	}, nil
}
