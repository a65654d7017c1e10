package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/insightvigil/biblioteca-escolar/internal/circulation"
	"github.com/insightvigil/biblioteca-escolar/internal/repository"
	"github.com/insightvigil/biblioteca-escolar/internal/service"
)

const (
	kindOverdue     = "overdue"
	kindDueTomorrow = "due_tomorrow"

	dedupeTTL = 48 * time.Hour
)

// Deduper 提醒去重（由 pkg/redis.Client 实现）
type Deduper interface {
	MarkReminderSent(ctx context.Context, itemID, day string, ttl time.Duration) (bool, error)
}

// ReminderStats 单次扫描结果
type ReminderStats struct {
	Overdue     int
	DueTomorrow int
	Skipped     int
}

// Reminder 逾期 / 到期提醒任务
// 周期扫描已逾期与明天到期的在借借阅项并记录提醒；
// 配置了 Redis 时同一借阅项同一天只提醒一次。
type Reminder struct {
	repo     *repository.Repository
	dedupe   Deduper
	clock    service.Clock
	interval time.Duration
	logger   *zap.Logger
}

// NewReminder 创建提醒任务；dedupe 可为 nil
func NewReminder(repo *repository.Repository, dedupe Deduper, clock service.Clock, interval time.Duration, logger *zap.Logger) *Reminder {
	return &Reminder{
		repo:     repo,
		dedupe:   dedupe,
		clock:    clock,
		interval: interval,
		logger:   logger.Named("reminder"),
	}
}

// Start 启动后立即扫描一次，之后按 interval 周期执行，ctx 取消时退出
func (r *Reminder) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		r.run(ctx)
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("提醒任务已停止")
				return
			case <-ticker.C:
				r.run(ctx)
			}
		}
	}()
}

func (r *Reminder) run(ctx context.Context) {
	stats, err := r.Check(ctx)
	if err != nil {
		r.logger.Error("提醒扫描失败", zap.Error(err))
		return
	}
	r.logger.Info("提醒扫描完成",
		zap.Int("overdue", stats.Overdue),
		zap.Int("due_tomorrow", stats.DueTomorrow),
		zap.Int("skipped", stats.Skipped),
	)
}

// Check 执行一次扫描
func (r *Reminder) Check(ctx context.Context) (ReminderStats, error) {
	var stats ReminderStats
	today := r.clock.Today()
	tomorrow := today.AddDate(0, 0, 1)

	overdue, _, err := r.repo.LoanItem.List(ctx, repository.LoanItemFilter{OverdueAsOf: &today})
	if err != nil {
		return stats, err
	}
	for i := range overdue {
		row := &overdue[i]
		if !r.claim(ctx, kindOverdue, row.LoanItemID, today) {
			stats.Skipped++
			continue
		}
		daysLate := int(today.Sub(circulation.Day(row.DueDate)).Hours() / 24)
		r.logger.Info("借阅项已逾期",
			zap.String("item_id", row.LoanItemID),
			zap.String("person_id", row.PersonID),
			zap.String("email", row.PersonEmail),
			zap.String("book", row.BookTitle),
			zap.String("due_date", circulation.FormatDay(row.DueDate)),
			zap.Int("days_late", daysLate),
		)
		stats.Overdue++
	}

	dueSoon, _, err := r.repo.LoanItem.List(ctx, repository.LoanItemFilter{DueOn: &tomorrow})
	if err != nil {
		return stats, err
	}
	for i := range dueSoon {
		row := &dueSoon[i]
		if !r.claim(ctx, kindDueTomorrow, row.LoanItemID, today) {
			stats.Skipped++
			continue
		}
		r.logger.Info("借阅项明天到期",
			zap.String("item_id", row.LoanItemID),
			zap.String("person_id", row.PersonID),
			zap.String("email", row.PersonEmail),
			zap.String("book", row.BookTitle),
			zap.String("due_date", circulation.FormatDay(row.DueDate)),
		)
		stats.DueTomorrow++
	}
	return stats, nil
}

// claim 去重失败时仍然提醒
func (r *Reminder) claim(ctx context.Context, kind, itemID string, today time.Time) bool {
	if r.dedupe == nil {
		return true
	}
	ok, err := r.dedupe.MarkReminderSent(ctx, kind+":"+itemID, circulation.FormatDay(today), dedupeTTL)
	if err != nil {
		r.logger.Warn("提醒去重失败", zap.String("item_id", itemID), zap.Error(err))
		return true
	}
	return ok
}
