package service

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/insightvigil/biblioteca-escolar/internal/circulation"
	"github.com/insightvigil/biblioteca-escolar/internal/dto"
	"github.com/insightvigil/biblioteca-escolar/internal/model"
	"github.com/insightvigil/biblioteca-escolar/internal/repository"
	apperrors "github.com/insightvigil/biblioteca-escolar/pkg/errors"
)

// ── 借阅模块业务错误 ──

var (
	ErrPersonNotFound = apperrors.NotFound("借阅人不存在")
	ErrBookNotFound   = apperrors.NotFound("图书不存在")
	ErrLoanNotFound   = apperrors.NotFound("借阅单不存在")
	ErrItemNotFound   = apperrors.NotFound("借阅项不存在")
)

// LoanService 借阅生命周期业务接口
//
// 设计说明：
//   - 每个写操作在单个数据库事务内完成：加锁 → 重新校验 → 修改 → 提交，失败整体回滚
//   - 加锁顺序固定为 借阅单 → 借阅人 → 图书 / 借阅项；同一事务内多本图书按 book_id 升序加锁
//   - 策略快照在事务内读取一次并按值传递
//   - 幂等操作（重复归还、重复标记、重复取消）以 Changed=false 正常返回，不报错
//   - 逾期为推导状态，不落库
type LoanService interface {
	CreateLoan(ctx context.Context, req *dto.CreateLoanRequest) (*dto.LoanResponse, error)
	Checkout(ctx context.Context, req *dto.CheckoutRequest) (*dto.LoanResponse, error)
	AddItem(ctx context.Context, loanID string, req *dto.AddItemRequest) (*dto.LoanItemResponse, error)
	RenewItem(ctx context.Context, itemID string, req *dto.RenewItemRequest) (*dto.RenewItemResponse, error)
	ReturnItem(ctx context.Context, itemID string, req *dto.ReturnItemRequest) (*dto.ReturnItemResponse, error)
	MarkLost(ctx context.Context, itemID string) (*dto.StatusChangeResponse, error)
	MarkDamaged(ctx context.Context, itemID string) (*dto.StatusChangeResponse, error)
	CancelLoan(ctx context.Context, loanID string) (*dto.StatusChangeResponse, error)
	PreviewDueDate(ctx context.Context, req *dto.PreviewDueDateRequest) (*dto.PreviewDueDateResponse, error)
	RegisterPayment(ctx context.Context, itemID string, req *dto.RegisterPaymentRequest) (*dto.PaymentResponse, error)

	GetLoan(ctx context.Context, loanID string) (*dto.LoanResponse, error)
	ListItems(ctx context.Context, req *dto.ListLoanItemsRequest) ([]dto.LoanItemResponse, int64, error)
}

type loanService struct {
	repo     *repository.Repository
	calendar CalendarService
	policy   PolicyService
	clock    Clock
	logger   *zap.Logger
}

// NewLoanService 创建 LoanService 实例
func NewLoanService(repo *repository.Repository, calendar CalendarService, policy PolicyService, clock Clock, logger *zap.Logger) LoanService {
	return &loanService{repo: repo, calendar: calendar, policy: policy, clock: clock, logger: logger}
}

// ────────────────────── CreateLoan ──────────────────────

func (s *loanService) CreateLoan(ctx context.Context, req *dto.CreateLoanRequest) (*dto.LoanResponse, error) {
	start, err := parseDayOr(req.StartDate, s.clock.Today())
	if err != nil {
		return nil, err
	}

	var loan *model.Loan
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		loan, err = s.openLoan(ctx, tx, req.PersonID, req.PeriodID, start)
		return err
	})
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	s.logger.Info("借阅单已创建",
		zap.String("loan_id", loan.LoanID),
		zap.String("person_id", loan.PersonID),
		zap.String("period_id", loan.PeriodID),
	)
	return toLoanResponse(loan, nil), nil
}

// ────────────────────── Checkout ──────────────────────

func (s *loanService) Checkout(ctx context.Context, req *dto.CheckoutRequest) (*dto.LoanResponse, error) {
	start, err := parseDayOr(req.StartDate, s.clock.Today())
	if err != nil {
		return nil, err
	}

	requests := sortedByBook(req.Items)

	var (
		loan  *model.Loan
		items []model.LoanItem
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		p, err := s.policy.Snapshot(ctx, tx)
		if err != nil {
			return err
		}
		loan, err = s.openLoan(ctx, tx, req.PersonID, req.PeriodID, start)
		if err != nil {
			return err
		}
		items = items[:0]
		for i := range requests {
			item, err := s.addItemLocked(ctx, tx, loan, &requests[i], p)
			if err != nil {
				return err
			}
			items = append(items, *item)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	s.logger.Info("借出完成",
		zap.String("loan_id", loan.LoanID),
		zap.String("person_id", loan.PersonID),
		zap.Int("items", len(items)),
	)
	return toLoanResponse(loan, items), nil
}

// ────────────────────── AddItem ──────────────────────

func (s *loanService) AddItem(ctx context.Context, loanID string, req *dto.AddItemRequest) (*dto.LoanItemResponse, error) {
	var item *model.LoanItem
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		loan, err := tx.Loan.GetByIDForUpdate(ctx, loanID)
		if err != nil {
			return s.lookupErr(err, ErrLoanNotFound, "查询借阅单失败", zap.String("loan_id", loanID))
		}
		if err := circulation.CheckAddItem(loan); err != nil {
			return err
		}
		p, err := s.policy.Snapshot(ctx, tx)
		if err != nil {
			return err
		}
		item, err = s.addItemLocked(ctx, tx, loan, req, p)
		return err
	})
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	s.logger.Info("借阅项已追加",
		zap.String("loan_id", loanID),
		zap.String("item_id", item.LoanItemID),
		zap.String("book_id", item.BookID),
	)
	resp := toItemResponse(item, s.clock.Today())
	return &resp, nil
}

// ────────────────────── RenewItem ──────────────────────

func (s *loanService) RenewItem(ctx context.Context, itemID string, req *dto.RenewItemRequest) (*dto.RenewItemResponse, error) {
	explicit, err := parseOptionalDay(req.DueDate)
	if err != nil {
		return nil, err
	}
	today := s.clock.Today()

	var item *model.LoanItem
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var loan *model.Loan
		loan, item, err = s.lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		p, err := s.policy.Snapshot(ctx, tx)
		if err != nil {
			return err
		}
		if err := circulation.CheckRenew(loan, item, p); err != nil {
			return err
		}

		person, err := tx.Person.GetByID(ctx, loan.PersonID)
		if err != nil {
			return s.lookupErr(err, ErrPersonNotFound, "查询借阅人失败", zap.String("person_id", loan.PersonID))
		}
		cal, err := s.calendar.ForPeriod(ctx, loan.PeriodID)
		if err != nil {
			return err
		}
		due, err := circulation.RenewalDueDate(person.Role, cal, item.DueDate, today, explicit, p)
		if err != nil {
			return err
		}

		item.DueDate = due
		item.RenewalCount++
		return s.saveItem(ctx, tx, item)
	})
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	s.logger.Info("借阅项已续借",
		zap.String("item_id", itemID),
		zap.String("due_date", circulation.FormatDay(item.DueDate)),
		zap.Int("renewal_count", item.RenewalCount),
	)
	return &dto.RenewItemResponse{
		ID:           item.LoanItemID,
		DueDate:      circulation.FormatDay(item.DueDate),
		RenewalCount: item.RenewalCount,
	}, nil
}

// ────────────────────── ReturnItem ──────────────────────

func (s *loanService) ReturnItem(ctx context.Context, itemID string, req *dto.ReturnItemRequest) (*dto.ReturnItemResponse, error) {
	returnDate, err := parseDayOr(req.ReturnDate, s.clock.Today())
	if err != nil {
		return nil, err
	}

	var (
		item    *model.LoanItem
		changed bool
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		var loan *model.Loan
		loan, item, err = s.lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		noop, err := circulation.CheckReturn(item)
		if err != nil || noop {
			return err
		}
		if returnDate.Before(circulation.Day(loan.StartDate)) {
			return circulation.ErrReturnBeforeStart
		}

		p, err := s.policy.Snapshot(ctx, tx)
		if err != nil {
			return err
		}
		cal, err := s.calendar.ForPeriod(ctx, loan.PeriodID)
		if err != nil {
			return err
		}
		fine := circulation.ComputeFine(cal, item.DueDate, returnDate, p)

		item.ReturnedDate = &returnDate
		item.FineAmount = fine.Amount
		item.Status = model.ItemStatusReturned
		if err := s.saveItem(ctx, tx, item); err != nil {
			return err
		}
		changed = true
		return s.closeIfDone(ctx, tx, loan)
	})
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	if changed {
		s.logger.Info("借阅项已归还",
			zap.String("item_id", itemID),
			zap.String("returned_date", circulation.FormatDay(*item.ReturnedDate)),
			zap.String("fine_amount", item.FineAmount.StringFixed(2)),
		)
	}
	resp := &dto.ReturnItemResponse{
		ID:         item.LoanItemID,
		FineAmount: item.FineAmount.StringFixed(2),
		Changed:    changed,
	}
	if item.ReturnedDate != nil {
		resp.ReturnedDate = circulation.FormatDay(*item.ReturnedDate)
	}
	return resp, nil
}

// ────────────────────── MarkLost / MarkDamaged ──────────────────────

func (s *loanService) MarkLost(ctx context.Context, itemID string) (*dto.StatusChangeResponse, error) {
	return s.mark(ctx, itemID, model.ItemStatusLost)
}

func (s *loanService) MarkDamaged(ctx context.Context, itemID string) (*dto.StatusChangeResponse, error) {
	return s.mark(ctx, itemID, model.ItemStatusDamaged)
}

// mark 终态标记不计算罚款，returned_date 保持为空
func (s *loanService) mark(ctx context.Context, itemID, target string) (*dto.StatusChangeResponse, error) {
	changed := false
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		loan, item, err := s.lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		noop, err := circulation.CheckMark(loan, item, target)
		if err != nil || noop {
			return err
		}

		item.Status = target
		if err := s.saveItem(ctx, tx, item); err != nil {
			return err
		}
		changed = true
		return s.closeIfDone(ctx, tx, loan)
	})
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	if changed {
		s.logger.Info("借阅项已标记终态", zap.String("item_id", itemID), zap.String("status", target))
	}
	return &dto.StatusChangeResponse{ID: itemID, Status: target, Changed: changed}, nil
}

// ────────────────────── CancelLoan ──────────────────────

func (s *loanService) CancelLoan(ctx context.Context, loanID string) (*dto.StatusChangeResponse, error) {
	today := s.clock.Today()
	changed := false

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		loan, err := tx.Loan.GetByIDForUpdate(ctx, loanID)
		if err != nil {
			return s.lookupErr(err, ErrLoanNotFound, "查询借阅单失败", zap.String("loan_id", loanID))
		}
		items, err := tx.LoanItem.ListByLoanForUpdate(ctx, loanID)
		if err != nil {
			s.logger.Error("锁定借阅项失败", zap.String("loan_id", loanID), zap.Error(err))
			return apperrors.Storage(err)
		}
		noop, err := circulation.CheckCancel(loan, items)
		if err != nil || noop {
			return err
		}

		// 未开始的借阅单以开始日期作为归还日期
		cancelDate := today
		if start := circulation.Day(loan.StartDate); cancelDate.Before(start) {
			cancelDate = start
		}
		for i := range items {
			if items[i].Status != model.ItemStatusCheckedOut {
				continue
			}
			items[i].Status = model.ItemStatusReturned
			items[i].ReturnedDate = &cancelDate
			items[i].FineAmount = decimal.Zero
			if err := s.saveItem(ctx, tx, &items[i]); err != nil {
				return err
			}
		}

		if err := tx.Loan.UpdateStatus(ctx, loanID, model.LoanStatusCancelled); err != nil {
			s.logger.Error("更新借阅单状态失败", zap.String("loan_id", loanID), zap.Error(err))
			return apperrors.Storage(err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	if changed {
		s.logger.Info("借阅单已取消", zap.String("loan_id", loanID))
	}
	return &dto.StatusChangeResponse{ID: loanID, Status: model.LoanStatusCancelled, Changed: changed}, nil
}

// ────────────────────── PreviewDueDate ──────────────────────

func (s *loanService) PreviewDueDate(ctx context.Context, req *dto.PreviewDueDateRequest) (*dto.PreviewDueDateResponse, error) {
	start, err := parseDayOr(req.StartDate, s.clock.Today())
	if err != nil {
		return nil, err
	}
	explicit, err := parseOptionalDay(req.DueDate)
	if err != nil {
		return nil, err
	}

	person, err := s.repo.Person.GetByID(ctx, req.PersonID)
	if err != nil {
		return nil, s.lookupErr(err, ErrPersonNotFound, "查询借阅人失败", zap.String("person_id", req.PersonID))
	}
	periodID, err := s.resolveLoanPeriod(ctx, req.PeriodID, start)
	if err != nil {
		return nil, err
	}
	cal, err := s.calendar.ForPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	p, err := s.policy.Snapshot(ctx, s.repo)
	if err != nil {
		return nil, err
	}

	due, err := circulation.DueDateFor(person.Role, cal, start, explicit, p)
	if err != nil {
		return nil, err
	}
	return &dto.PreviewDueDateResponse{PeriodID: periodID, DueDate: circulation.FormatDay(due)}, nil
}

// ────────────────────── RegisterPayment ──────────────────────

func (s *loanService) RegisterPayment(ctx context.Context, itemID string, req *dto.RegisterPaymentRequest) (*dto.PaymentResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.Equal(amount.Round(2)) {
		return nil, ErrInvalidAmount
	}
	if !amount.IsPositive() {
		return nil, circulation.ErrInvalidPaymentAmount
	}

	var (
		payment   *model.Payment
		remaining decimal.Decimal
	)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		_, item, err := s.lockItem(ctx, tx, itemID)
		if err != nil {
			return err
		}
		paid, err := tx.Payment.SumByItem(ctx, itemID)
		if err != nil {
			s.logger.Error("汇总缴费记录失败", zap.String("item_id", itemID), zap.Error(err))
			return apperrors.Storage(err)
		}
		outstanding := item.FineAmount.Sub(paid)
		if amount.GreaterThan(outstanding) {
			return circulation.ErrPaymentExceedsBalance
		}

		payment = &model.Payment{
			LoanItemID: itemID,
			Amount:     amount,
			Method:     req.Method,
			Note:       req.Note,
			PaidAt:     s.clock.Now(),
		}
		if err := tx.Payment.Create(ctx, payment); err != nil {
			s.logger.Error("写入缴费记录失败", zap.String("item_id", itemID), zap.Error(err))
			return apperrors.Storage(err)
		}
		remaining = outstanding.Sub(amount)
		return nil
	})
	if err != nil {
		return nil, apperrors.Storage(err)
	}

	s.logger.Info("罚款已缴纳",
		zap.String("item_id", itemID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("remaining", remaining.StringFixed(2)),
	)
	return &dto.PaymentResponse{
		ID:        payment.PaymentID,
		ItemID:    itemID,
		Amount:    payment.Amount.StringFixed(2),
		Method:    payment.Method,
		Note:      payment.Note,
		PaidAt:    payment.PaidAt.UTC().Format(time.RFC3339),
		Remaining: remaining.StringFixed(2),
	}, nil
}

// ────────────────────── GetLoan ──────────────────────

func (s *loanService) GetLoan(ctx context.Context, loanID string) (*dto.LoanResponse, error) {
	loan, err := s.repo.Loan.GetByID(ctx, loanID)
	if err != nil {
		return nil, s.lookupErr(err, ErrLoanNotFound, "查询借阅单失败", zap.String("loan_id", loanID))
	}
	items, err := s.repo.LoanItem.ListByLoan(ctx, loanID)
	if err != nil {
		s.logger.Error("查询借阅项失败", zap.String("loan_id", loanID), zap.Error(err))
		return nil, apperrors.Storage(err)
	}

	resp := toLoanResponse(loan, nil)
	accrual, err := s.newAccrual(ctx)
	if err != nil {
		return nil, err
	}
	for i := range items {
		r := toItemResponse(&items[i], accrual.today)
		if r.Overdue {
			fine, err := accrual.fine(ctx, loan.PeriodID, &items[i])
			if err != nil {
				return nil, err
			}
			r.AccruingFine = fine.StringFixed(2)
		}
		resp.Items = append(resp.Items, r)
	}
	return resp, nil
}

// ────────────────────── ListItems ──────────────────────

func (s *loanService) ListItems(ctx context.Context, req *dto.ListLoanItemsRequest) ([]dto.LoanItemResponse, int64, error) {
	today := s.clock.Today()
	filter := repository.LoanItemFilter{
		PersonID: req.PersonID,
		PeriodID: req.PeriodID,
		Status:   req.Status,
		WithDebt: req.WithDebt,
		Offset:   req.GetOffset(),
		Limit:    req.GetPageSize(),
	}
	if req.OnlyOverdue {
		filter.OverdueAsOf = &today
	}

	rows, total, err := s.repo.LoanItem.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询借阅项列表失败", zap.Error(err))
		return nil, 0, apperrors.Storage(err)
	}

	accrual, err := s.newAccrual(ctx)
	if err != nil {
		return nil, 0, err
	}
	list := make([]dto.LoanItemResponse, 0, len(rows))
	for i := range rows {
		r := toRowResponse(&rows[i], today)
		if r.Overdue {
			fine, err := accrual.fine(ctx, rows[i].PeriodID, &rows[i].LoanItem)
			if err != nil {
				return nil, 0, err
			}
			r.AccruingFine = fine.StringFixed(2)
		}
		list = append(list, r)
	}
	return list, total, nil
}

// ── 内部辅助 ──

// openLoan 校验借阅人与学期后创建 active 借阅单
func (s *loanService) openLoan(ctx context.Context, tx *repository.Repository, personID, periodID string, start time.Time) (*model.Loan, error) {
	if _, err := tx.Person.GetByID(ctx, personID); err != nil {
		return nil, s.lookupErr(err, ErrPersonNotFound, "查询借阅人失败", zap.String("person_id", personID))
	}
	periodID, err := s.resolveLoanPeriod(ctx, periodID, start)
	if err != nil {
		return nil, err
	}

	loan := &model.Loan{
		PersonID:  personID,
		PeriodID:  periodID,
		StartDate: start,
		Status:    model.LoanStatusActive,
	}
	if err := tx.Loan.Create(ctx, loan); err != nil {
		s.logger.Error("创建借阅单失败", zap.String("person_id", personID), zap.Error(err))
		return nil, apperrors.Storage(err)
	}
	return loan, nil
}

// resolveLoanPeriod 未指定学期时按开始日期解析；指定时开始日期必须落在该学期内
func (s *loanService) resolveLoanPeriod(ctx context.Context, periodID string, start time.Time) (string, error) {
	if periodID == "" {
		period, err := s.calendar.ResolvePeriod(ctx, start)
		if err != nil {
			if errors.Is(err, circulation.ErrPeriodNotFound) {
				return "", circulation.ErrStartOutsidePeriod
			}
			return "", err
		}
		return period.PeriodID, nil
	}

	cal, err := s.calendar.ForPeriod(ctx, periodID)
	if err != nil {
		return "", err
	}
	if !cal.Contains(start) {
		return "", circulation.ErrStartOutsidePeriod
	}
	return periodID, nil
}

// sortedByBook 按 book_id 升序复制借阅请求
// 并发借出多本书的事务以相同顺序锁图书行，不会互相等待成环
func sortedByBook(reqs []dto.AddItemRequest) []dto.AddItemRequest {
	out := slices.Clone(reqs)
	slices.SortStableFunc(out, func(a, b dto.AddItemRequest) int {
		return cmp.Compare(a.BookID, b.BookID)
	})
	return out
}

// addItemLocked 在已持有借阅单锁的事务内借出一本书
// 先锁借阅人再锁图书，持锁后重新读取计数并校验库存与上限
func (s *loanService) addItemLocked(ctx context.Context, tx *repository.Repository, loan *model.Loan, req *dto.AddItemRequest, p circulation.Policy) (*model.LoanItem, error) {
	explicit, err := parseOptionalDay(req.DueDate)
	if err != nil {
		return nil, err
	}

	person, err := tx.Person.GetByIDForUpdate(ctx, loan.PersonID)
	if err != nil {
		return nil, s.lookupErr(err, ErrPersonNotFound, "锁定借阅人失败", zap.String("person_id", loan.PersonID))
	}
	book, err := tx.Book.GetByIDForUpdate(ctx, req.BookID)
	if err != nil {
		return nil, s.lookupErr(err, ErrBookNotFound, "锁定图书失败", zap.String("book_id", req.BookID))
	}

	cal, err := s.calendar.ForPeriod(ctx, loan.PeriodID)
	if err != nil {
		return nil, err
	}
	due, err := circulation.DueDateFor(person.Role, cal, loan.StartDate, explicit, p)
	if err != nil {
		return nil, err
	}

	activeByBook, err := tx.LoanItem.CountActiveByBook(ctx, book.BookID)
	if err != nil {
		s.logger.Error("统计图书在借数失败", zap.String("book_id", book.BookID), zap.Error(err))
		return nil, apperrors.Storage(err)
	}
	activeByPerson, err := tx.LoanItem.CountActiveByPerson(ctx, person.PersonID)
	if err != nil {
		s.logger.Error("统计借阅人在借数失败", zap.String("person_id", person.PersonID), zap.Error(err))
		return nil, apperrors.Storage(err)
	}
	counts := circulation.CheckoutCounts{
		TotalStock:     book.TotalStock,
		ActiveByBook:   activeByBook,
		ActiveByPerson: activeByPerson,
	}
	if err := circulation.CheckCheckout(person.Role, counts, p); err != nil {
		return nil, err
	}

	item := &model.LoanItem{
		LoanID:     loan.LoanID,
		BookID:     book.BookID,
		DueDate:    due,
		FineAmount: decimal.Zero,
		Status:     model.ItemStatusCheckedOut,
	}
	if err := tx.LoanItem.Create(ctx, item); err != nil {
		s.logger.Error("创建借阅项失败", zap.String("loan_id", loan.LoanID), zap.Error(err))
		return nil, apperrors.Storage(err)
	}
	return item, nil
}

// lockItem 按 借阅单 → 借阅项 的顺序加锁
func (s *loanService) lockItem(ctx context.Context, tx *repository.Repository, itemID string) (*model.Loan, *model.LoanItem, error) {
	probe, err := tx.LoanItem.GetByID(ctx, itemID)
	if err != nil {
		return nil, nil, s.lookupErr(err, ErrItemNotFound, "查询借阅项失败", zap.String("item_id", itemID))
	}
	loan, err := tx.Loan.GetByIDForUpdate(ctx, probe.LoanID)
	if err != nil {
		return nil, nil, s.lookupErr(err, ErrLoanNotFound, "锁定借阅单失败", zap.String("loan_id", probe.LoanID))
	}
	item, err := tx.LoanItem.GetByIDForUpdate(ctx, itemID)
	if err != nil {
		return nil, nil, s.lookupErr(err, ErrItemNotFound, "锁定借阅项失败", zap.String("item_id", itemID))
	}
	return loan, item, nil
}

func (s *loanService) saveItem(ctx context.Context, tx *repository.Repository, item *model.LoanItem) error {
	if err := tx.LoanItem.Update(ctx, item); err != nil {
		s.logger.Error("更新借阅项失败", zap.String("item_id", item.LoanItemID), zap.Error(err))
		return apperrors.Storage(err)
	}
	return nil
}

// closeIfDone 借阅项全部进入终态后借阅单自动结束
func (s *loanService) closeIfDone(ctx context.Context, tx *repository.Repository, loan *model.Loan) error {
	if loan.Status != model.LoanStatusActive {
		return nil
	}
	items, err := tx.LoanItem.ListByLoan(ctx, loan.LoanID)
	if err != nil {
		s.logger.Error("查询借阅项失败", zap.String("loan_id", loan.LoanID), zap.Error(err))
		return apperrors.Storage(err)
	}
	if !circulation.AllTerminal(items) {
		return nil
	}
	if err := tx.Loan.UpdateStatus(ctx, loan.LoanID, model.LoanStatusReturned); err != nil {
		s.logger.Error("结束借阅单失败", zap.String("loan_id", loan.LoanID), zap.Error(err))
		return apperrors.Storage(err)
	}
	loan.Status = model.LoanStatusReturned
	return nil
}

// lookupErr 记录不存在映射为业务错误，其余记录日志并包装为存储错误
func (s *loanService) lookupErr(err error, notFound error, msg string, fields ...zap.Field) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	s.logger.Error(msg, append(fields, zap.Error(err))...)
	return apperrors.Storage(err)
}

// ── 应计罚款（只读视图） ──

// accrual 同一次读取内复用策略快照与学期日历
type accrual struct {
	svc      *loanService
	policy   circulation.Policy
	today    time.Time
	calendar map[string]*circulation.Calendar
}

func (s *loanService) newAccrual(ctx context.Context) (*accrual, error) {
	p, err := s.policy.Snapshot(ctx, s.repo)
	if err != nil {
		return nil, err
	}
	return &accrual{svc: s, policy: p, today: s.clock.Today(), calendar: map[string]*circulation.Calendar{}}, nil
}

// fine 截至今天的应计罚款
func (a *accrual) fine(ctx context.Context, periodID string, item *model.LoanItem) (decimal.Decimal, error) {
	cal, ok := a.calendar[periodID]
	if !ok {
		var err error
		cal, err = a.svc.calendar.ForPeriod(ctx, periodID)
		if err != nil {
			return decimal.Zero, err
		}
		a.calendar[periodID] = cal
	}
	return circulation.ComputeFine(cal, item.DueDate, a.today, a.policy).Amount, nil
}

// ── 响应转换 ──

func toLoanResponse(loan *model.Loan, items []model.LoanItem) *dto.LoanResponse {
	resp := &dto.LoanResponse{
		ID:        loan.LoanID,
		PersonID:  loan.PersonID,
		PeriodID:  loan.PeriodID,
		StartDate: circulation.FormatDay(loan.StartDate),
		Status:    loan.Status,
		Items:     make([]dto.LoanItemResponse, 0, len(items)),
	}
	for i := range items {
		resp.Items = append(resp.Items, toItemResponse(&items[i], time.Time{}))
	}
	return resp
}

// toItemResponse today 为零值时不推导逾期
func toItemResponse(item *model.LoanItem, today time.Time) dto.LoanItemResponse {
	resp := dto.LoanItemResponse{
		ID:           item.LoanItemID,
		LoanID:       item.LoanID,
		BookID:       item.BookID,
		DueDate:      circulation.FormatDay(item.DueDate),
		RenewalCount: item.RenewalCount,
		FineAmount:   item.FineAmount.StringFixed(2),
		Status:       item.Status,
	}
	if item.ReturnedDate != nil {
		resp.ReturnedDate = circulation.FormatDay(*item.ReturnedDate)
	}
	if !today.IsZero() {
		resp.Overdue = circulation.IsOverdue(item, today)
	}
	return resp
}

func toRowResponse(row *repository.LoanItemRow, today time.Time) dto.LoanItemResponse {
	resp := toItemResponse(&row.LoanItem, today)
	resp.PersonID = row.PersonID
	resp.PersonName = row.PersonName
	resp.BookTitle = row.BookTitle
	resp.PaidAmount = row.PaidAmount.StringFixed(2)
	debt := row.FineAmount.Sub(row.PaidAmount)
	if debt.IsNegative() {
		debt = decimal.Zero
	}
	resp.Debt = debt.StringFixed(2)
	return resp
}
