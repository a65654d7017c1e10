package service

import (
	"context"
	"errors"
	"fmt"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/insightvigil/biblioteca-escolar/internal/circulation"
	"github.com/insightvigil/biblioteca-escolar/internal/model"
	"github.com/insightvigil/biblioteca-escolar/internal/repository"
	apperrors "github.com/insightvigil/biblioteca-escolar/pkg/errors"
)

// ── 应还日期订阅源 ──────────────────────────────────────────
//
// 职责：把借阅人当前在借的借阅项导出为 iCalendar (RFC 5545)。
//
//   - 每个在借借阅项一个全天事件，日期为 due_date
//   - UID 使用借阅项 ID，续借后客户端按 UID 更新同一事件
//   - 已归还 / 遗失 / 损坏的借阅项不出现在订阅源中
// ─────────────────────────────────────────────────────────────

const feedProductID = "-//biblioteca-escolar//circulation//ES"

// FeedService 应还日期订阅业务接口
type FeedService interface {
	DueDateFeed(ctx context.Context, personID string) (string, error)
}

type feedService struct {
	repo   *repository.Repository
	clock  Clock
	logger *zap.Logger
}

// NewFeedService 创建 FeedService 实例
func NewFeedService(repo *repository.Repository, clock Clock, logger *zap.Logger) FeedService {
	return &feedService{repo: repo, clock: clock, logger: logger}
}

func (s *feedService) DueDateFeed(ctx context.Context, personID string) (string, error) {
	person, err := s.repo.Person.GetByID(ctx, personID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrPersonNotFound
		}
		s.logger.Error("查询借阅人失败", zap.String("person_id", personID), zap.Error(err))
		return "", apperrors.Storage(err)
	}

	rows, _, err := s.repo.LoanItem.List(ctx, repository.LoanItemFilter{
		PersonID: personID,
		Status:   model.ItemStatusCheckedOut,
	})
	if err != nil {
		s.logger.Error("查询在借借阅项失败", zap.String("person_id", personID), zap.Error(err))
		return "", apperrors.Storage(err)
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(feedProductID)
	cal.SetXWRCalName(fmt.Sprintf("图书归还 - %s", person.Name))

	stamp := s.clock.Now().UTC()
	for _, r := range rows {
		due := circulation.Day(r.DueDate)
		event := cal.AddEvent(r.LoanItemID + "@biblioteca-escolar")
		event.SetDtStampTime(stamp)
		event.SetAllDayStartAt(due)
		event.SetAllDayEndAt(due.AddDate(0, 0, 1))
		event.SetSummary(fmt.Sprintf("归还《%s》", r.BookTitle))
		event.SetDescription(fmt.Sprintf("应还日期 %s，已续借 %d 次", circulation.FormatDay(due), r.RenewalCount))
	}

	return cal.Serialize(), nil
}
