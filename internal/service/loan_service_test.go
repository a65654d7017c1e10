package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/insightvigil/biblioteca-escolar/internal/circulation"
	"github.com/insightvigil/biblioteca-escolar/internal/dto"
	"github.com/insightvigil/biblioteca-escolar/internal/model"
	apperrors "github.com/insightvigil/biblioteca-escolar/pkg/errors"
)

// ── 测试辅助 ──

func setupTestLoanService() (LoanService, *memStore, *testClock) {
	store := seedStore()
	repo := store.repository()
	logger := zap.NewNop()

	clk := &testClock{}
	clk.setToday(testDay(2025, 4, 28))

	calendar := NewCalendarService(repo, nil, 0, logger)
	policy := NewPolicyService(repo, testPolicy(), logger)
	return NewLoanService(repo, calendar, policy, clk.clock(), logger), store, clk
}

func checkoutOne(t *testing.T, svc LoanService, personID, bookID, start, due string) *dto.LoanResponse {
	t.Helper()
	loan, err := svc.Checkout(context.Background(), &dto.CheckoutRequest{
		PersonID:  personID,
		StartDate: start,
		Items:     []dto.AddItemRequest{{BookID: bookID, DueDate: due}},
	})
	if err != nil {
		t.Fatalf("Checkout 应成功: %v", err)
	}
	if len(loan.Items) != 1 {
		t.Fatalf("期望 1 个借阅项，实际=%d", len(loan.Items))
	}
	return loan
}

func returnOn(t *testing.T, svc LoanService, itemID, day string) *dto.ReturnItemResponse {
	t.Helper()
	resp, err := svc.ReturnItem(context.Background(), itemID, &dto.ReturnItemRequest{ReturnDate: day})
	if err != nil {
		t.Fatalf("ReturnItem 应成功: %v", err)
	}
	return resp
}

// ── CreateLoan 测试 ──

func TestLoanService_CreateLoan_ResolvesPeriod(t *testing.T) {
	svc, _, _ := setupTestLoanService()

	loan, err := svc.CreateLoan(context.Background(), &dto.CreateLoanRequest{PersonID: testStudentID})
	if err != nil {
		t.Fatalf("CreateLoan 应成功: %v", err)
	}
	if loan.PeriodID != testPeriodID {
		t.Errorf("期望学期=%s，实际=%s", testPeriodID, loan.PeriodID)
	}
	if loan.StartDate != "2025-04-28" {
		t.Errorf("未指定开始日期时应取今天，实际=%s", loan.StartDate)
	}
	if loan.Status != model.LoanStatusActive {
		t.Errorf("期望状态 active，实际=%s", loan.Status)
	}
}

func TestLoanService_CreateLoan_StartOutsidePeriod(t *testing.T) {
	svc, store, _ := setupTestLoanService()

	_, err := svc.CreateLoan(context.Background(), &dto.CreateLoanRequest{
		PersonID:  testStudentID,
		StartDate: "2025-06-02",
	})
	if !errors.Is(err, circulation.ErrStartOutsidePeriod) {
		t.Errorf("期望 ErrStartOutsidePeriod，实际: %v", err)
	}

	_, err = svc.CreateLoan(context.Background(), &dto.CreateLoanRequest{
		PersonID:  testStudentID,
		PeriodID:  testPeriodID,
		StartDate: "2025-04-18",
	})
	if !errors.Is(err, circulation.ErrStartOutsidePeriod) {
		t.Errorf("指定学期时期望 ErrStartOutsidePeriod，实际: %v", err)
	}
	if len(store.loans) != 0 {
		t.Errorf("失败时不应创建借阅单，实际=%d", len(store.loans))
	}
}

func TestLoanService_CreateLoan_Validation(t *testing.T) {
	svc, _, _ := setupTestLoanService()

	_, err := svc.CreateLoan(context.Background(), &dto.CreateLoanRequest{PersonID: "nobody"})
	if !errors.Is(err, ErrPersonNotFound) {
		t.Errorf("期望 ErrPersonNotFound，实际: %v", err)
	}

	_, err = svc.CreateLoan(context.Background(), &dto.CreateLoanRequest{PersonID: testStudentID, StartDate: "28/04/2025"})
	if !errors.Is(err, ErrInvalidDate) {
		t.Errorf("期望 ErrInvalidDate，实际: %v", err)
	}
}

// ── Checkout / AddItem 测试 ──

func TestLoanService_Checkout_StudentDueDate(t *testing.T) {
	svc, _, _ := setupTestLoanService()

	// 04-28(一) 起 3 个工作日：04-29、04-30，05-01 节假日跳过，05-02
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "2025-05-15")
	item := loan.Items[0]
	if item.DueDate != "2025-05-02" {
		t.Errorf("期望应还日期 2025-05-02，实际=%s", item.DueDate)
	}
	if item.Status != model.ItemStatusCheckedOut || item.FineAmount != "0.00" {
		t.Errorf("新借阅项状态异常: %+v", item)
	}
}

func TestLoanService_Checkout_Professor(t *testing.T) {
	svc, _, _ := setupTestLoanService()
	ctx := context.Background()

	_, err := svc.Checkout(ctx, &dto.CheckoutRequest{
		PersonID: testProfID,
		Items:    []dto.AddItemRequest{{BookID: testShelfBook}},
	})
	if !errors.Is(err, circulation.ErrDueDateRequired) {
		t.Errorf("期望 ErrDueDateRequired，实际: %v", err)
	}

	_, err = svc.Checkout(ctx, &dto.CheckoutRequest{
		PersonID: testProfID,
		Items:    []dto.AddItemRequest{{BookID: testShelfBook, DueDate: "2025-06-30"}},
	})
	if !errors.Is(err, circulation.ErrDueOutsidePeriod) {
		t.Errorf("期望 ErrDueOutsidePeriod，实际: %v", err)
	}

	loan := checkoutOne(t, svc, testProfID, testShelfBook, "", "2025-05-14")
	if loan.Items[0].DueDate != "2025-05-14" {
		t.Errorf("教师应还日期应为指定值，实际=%s", loan.Items[0].DueDate)
	}
}

func TestLoanService_Checkout_OutOfStock(t *testing.T) {
	svc, store, _ := setupTestLoanService()
	ctx := context.Background()

	checkoutOne(t, svc, testStudentID, testLastCopy, "", "")

	_, err := svc.Checkout(ctx, &dto.CheckoutRequest{
		PersonID: testOtherID,
		Items:    []dto.AddItemRequest{{BookID: testLastCopy}},
	})
	if !errors.Is(err, circulation.ErrOutOfStock) {
		t.Fatalf("期望 ErrOutOfStock，实际: %v", err)
	}
	if !errors.Is(err, apperrors.ErrPolicy) {
		t.Errorf("库存不足应归类为策略违规，实际: %v", err)
	}
	if len(store.loans) != 1 {
		t.Errorf("失败的借出应整体回滚，借阅单数=%d", len(store.loans))
	}
}

func TestLoanService_Checkout_CeilingRollsBackWholeCheckout(t *testing.T) {
	svc, store, _ := setupTestLoanService()

	items := make([]dto.AddItemRequest, 4)
	for i := range items {
		items[i] = dto.AddItemRequest{BookID: testShelfBook}
	}
	_, err := svc.Checkout(context.Background(), &dto.CheckoutRequest{PersonID: testStudentID, Items: items})
	if !errors.Is(err, circulation.ErrCeilingReached) {
		t.Fatalf("期望 ErrCeilingReached，实际: %v", err)
	}
	if len(store.loans) != 0 || len(store.items) != 0 {
		t.Errorf("应整体回滚，loans=%d items=%d", len(store.loans), len(store.items))
	}
}

func TestLoanService_Checkout_ConcurrentLastCopy(t *testing.T) {
	svc, store, _ := setupTestLoanService()

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		outStock int
	)
	for i := 0; i < workers; i++ {
		personID := testStudentID
		if i%2 == 1 {
			personID = testOtherID
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Checkout(context.Background(), &dto.CheckoutRequest{
				PersonID: personID,
				Items:    []dto.AddItemRequest{{BookID: testLastCopy}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, circulation.ErrOutOfStock):
				outStock++
			}
		}()
	}
	wg.Wait()

	if success != 1 || outStock != workers-1 {
		t.Errorf("最后一本书只能借出一次，success=%d outOfStock=%d", success, outStock)
	}
	if len(store.items) != 1 {
		t.Errorf("期望 1 个借阅项，实际=%d", len(store.items))
	}
}

func TestLoanService_Checkout_StorageFailureRollsBack(t *testing.T) {
	svc, store, _ := setupTestLoanService()
	store.failItemCreate = errors.New("disk full")

	_, err := svc.Checkout(context.Background(), &dto.CheckoutRequest{
		PersonID: testStudentID,
		Items:    []dto.AddItemRequest{{BookID: testShelfBook}},
	})
	if apperrors.KindOf(err) != apperrors.KindStorage {
		t.Fatalf("期望存储错误，实际: %v", err)
	}
	if len(store.loans) != 0 {
		t.Errorf("存储失败时借阅单应回滚，实际=%d", len(store.loans))
	}
}

func TestLoanService_Checkout_MissingSettingsUsesDefaults(t *testing.T) {
	svc, store, _ := setupTestLoanService()
	store.settings = nil

	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")
	if loan.Items[0].DueDate != "2025-05-02" {
		t.Errorf("缺少策略行时应使用默认策略，实际=%s", loan.Items[0].DueDate)
	}
}

func TestLoanService_Checkout_LocksBooksInIDOrder(t *testing.T) {
	svc, store, _ := setupTestLoanService()

	loan, err := svc.Checkout(context.Background(), &dto.CheckoutRequest{
		PersonID:  testStudentID,
		StartDate: "2025-04-28",
		Items:     []dto.AddItemRequest{{BookID: testShelfBook}, {BookID: testLastCopy}},
	})
	if err != nil {
		t.Fatalf("Checkout 应成功: %v", err)
	}
	if len(loan.Items) != 2 {
		t.Fatalf("期望 2 个借阅项，实际=%d", len(loan.Items))
	}

	want := []string{testLastCopy, testShelfBook}
	if len(store.bookLocks) != len(want) {
		t.Fatalf("期望锁定 %d 本图书，实际=%v", len(want), store.bookLocks)
	}
	for i := range want {
		if store.bookLocks[i] != want[i] {
			t.Errorf("图书应按 book_id 升序加锁，实际顺序=%v", store.bookLocks)
			break
		}
	}
}

func TestLoanService_AddItem_UsesLoanStartDate(t *testing.T) {
	svc, _, clk := setupTestLoanService()
	ctx := context.Background()

	loan, err := svc.CreateLoan(ctx, &dto.CreateLoanRequest{PersonID: testStudentID, StartDate: "2025-04-21"})
	if err != nil {
		t.Fatalf("CreateLoan 应成功: %v", err)
	}
	clk.setToday(testDay(2025, 5, 6))

	item, err := svc.AddItem(ctx, loan.ID, &dto.AddItemRequest{BookID: testShelfBook})
	if err != nil {
		t.Fatalf("AddItem 应成功: %v", err)
	}
	if item.DueDate != "2025-04-24" {
		t.Errorf("应还日期应以借阅单开始日期为基准，实际=%s", item.DueDate)
	}
	if !item.Overdue {
		t.Error("应还日期早于今天时应推导为逾期")
	}
}

func TestLoanService_AddItem_Errors(t *testing.T) {
	svc, _, _ := setupTestLoanService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "missing-loan", &dto.AddItemRequest{BookID: testShelfBook})
	if !errors.Is(err, ErrLoanNotFound) {
		t.Errorf("期望 ErrLoanNotFound，实际: %v", err)
	}

	loan, err := svc.CreateLoan(ctx, &dto.CreateLoanRequest{PersonID: testStudentID})
	if err != nil {
		t.Fatalf("CreateLoan 应成功: %v", err)
	}
	_, err = svc.AddItem(ctx, loan.ID, &dto.AddItemRequest{BookID: "missing-book"})
	if !errors.Is(err, ErrBookNotFound) {
		t.Errorf("期望 ErrBookNotFound，实际: %v", err)
	}

	if _, err := svc.CancelLoan(ctx, loan.ID); err != nil {
		t.Fatalf("CancelLoan 应成功: %v", err)
	}
	_, err = svc.AddItem(ctx, loan.ID, &dto.AddItemRequest{BookID: testShelfBook})
	if !errors.Is(err, circulation.ErrLoanCancelled) {
		t.Errorf("期望 ErrLoanCancelled，实际: %v", err)
	}
}

// ── RenewItem 测试 ──

func TestLoanService_RenewItem_FromDueDate(t *testing.T) {
	svc, _, clk := setupTestLoanService()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")
	clk.setToday(testDay(2025, 5, 6))

	// 迟到续借仍从 05-02 起算：05-05、05-06、05-07
	resp, err := svc.RenewItem(context.Background(), loan.Items[0].ID, &dto.RenewItemRequest{})
	if err != nil {
		t.Fatalf("RenewItem 应成功: %v", err)
	}
	if resp.DueDate != "2025-05-07" {
		t.Errorf("期望 2025-05-07，实际=%s", resp.DueDate)
	}
	if resp.RenewalCount != 1 {
		t.Errorf("期望续借次数=1，实际=%d", resp.RenewalCount)
	}
}

func TestLoanService_RenewItem_FromToday(t *testing.T) {
	svc, store, clk := setupTestLoanService()
	store.settings.RenewalBasis = string(circulation.RenewalFromToday)
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")
	clk.setToday(testDay(2025, 5, 8))

	resp, err := svc.RenewItem(context.Background(), loan.Items[0].ID, &dto.RenewItemRequest{})
	if err != nil {
		t.Fatalf("RenewItem 应成功: %v", err)
	}
	if resp.DueDate != "2025-05-13" {
		t.Errorf("期望 2025-05-13，实际=%s", resp.DueDate)
	}
}

func TestLoanService_RenewItem_Limit(t *testing.T) {
	svc, store, _ := setupTestLoanService()
	ctx := context.Background()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-21", "")
	itemID := loan.Items[0].ID

	for _, want := range []string{"2025-04-29", "2025-05-05"} {
		resp, err := svc.RenewItem(ctx, itemID, &dto.RenewItemRequest{})
		if err != nil {
			t.Fatalf("RenewItem 应成功: %v", err)
		}
		if resp.DueDate != want {
			t.Errorf("期望 %s，实际=%s", want, resp.DueDate)
		}
	}

	_, err := svc.RenewItem(ctx, itemID, &dto.RenewItemRequest{})
	if !errors.Is(err, circulation.ErrRenewalLimit) {
		t.Errorf("期望 ErrRenewalLimit，实际: %v", err)
	}
	if got := store.items[itemID]; got.RenewalCount != 2 || circulation.FormatDay(got.DueDate) != "2025-05-05" {
		t.Errorf("失败的续借不应修改借阅项: %+v", got)
	}
}

func TestLoanService_RenewItem_Professor(t *testing.T) {
	svc, _, _ := setupTestLoanService()
	ctx := context.Background()
	loan := checkoutOne(t, svc, testProfID, testShelfBook, "2025-04-28", "2025-05-09")
	itemID := loan.Items[0].ID

	_, err := svc.RenewItem(ctx, itemID, &dto.RenewItemRequest{})
	if !errors.Is(err, circulation.ErrDueDateRequired) {
		t.Errorf("期望 ErrDueDateRequired，实际: %v", err)
	}
	_, err = svc.RenewItem(ctx, itemID, &dto.RenewItemRequest{DueDate: "2025-05-08"})
	if !errors.Is(err, circulation.ErrDueBeforeCurrentDue) {
		t.Errorf("期望 ErrDueBeforeCurrentDue，实际: %v", err)
	}

	resp, err := svc.RenewItem(ctx, itemID, &dto.RenewItemRequest{DueDate: "2025-05-16"})
	if err != nil {
		t.Fatalf("RenewItem 应成功: %v", err)
	}
	if resp.DueDate != "2025-05-16" || resp.RenewalCount != 1 {
		t.Errorf("续借结果异常: %+v", resp)
	}
}

func TestLoanService_RenewItem_Terminal(t *testing.T) {
	svc, _, _ := setupTestLoanService()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")
	returnOn(t, svc, loan.Items[0].ID, "2025-04-30")

	_, err := svc.RenewItem(context.Background(), loan.Items[0].ID, &dto.RenewItemRequest{})
	if !errors.Is(err, circulation.ErrItemTerminal) {
		t.Errorf("期望 ErrItemTerminal，实际: %v", err)
	}
}

// ── ReturnItem 测试 ──

func TestLoanService_ReturnItem_OnTimeClosesLoan(t *testing.T) {
	svc, store, _ := setupTestLoanService()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")

	resp := returnOn(t, svc, loan.Items[0].ID, "2025-05-02")
	if resp.FineAmount != "0.00" || !resp.Changed {
		t.Errorf("按时归还不应罚款: %+v", resp)
	}
	if got := store.loans[loan.ID].Status; got != model.LoanStatusReturned {
		t.Errorf("全部归还后借阅单应结束，实际=%s", got)
	}
}

func TestLoanService_ReturnItem_LateCountsWeekends(t *testing.T) {
	svc, _, _ := setupTestLoanService()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")

	// 05-03(六)、05-04(日)、05-05(一) 共 3 天 × 12.00
	resp := returnOn(t, svc, loan.Items[0].ID, "2025-05-05")
	if resp.FineAmount != "36.00" {
		t.Errorf("期望罚款 36.00，实际=%s", resp.FineAmount)
	}
}

func TestLoanService_ReturnItem_LateSkipsWeekends(t *testing.T) {
	svc, store, _ := setupTestLoanService()
	store.settings.CountWeekendsWhenOverdue = false
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")

	resp := returnOn(t, svc, loan.Items[0].ID, "2025-05-05")
	if resp.FineAmount != "12.00" {
		t.Errorf("期望罚款 12.00，实际=%s", resp.FineAmount)
	}
}

func TestLoanService_ReturnItem_Idempotent(t *testing.T) {
	svc, _, _ := setupTestLoanService()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")
	itemID := loan.Items[0].ID

	first := returnOn(t, svc, itemID, "2025-05-05")
	second := returnOn(t, svc, itemID, "2025-05-09")

	if second.Changed {
		t.Error("重复归还应返回 Changed=false")
	}
	if second.ReturnedDate != first.ReturnedDate || second.FineAmount != first.FineAmount {
		t.Errorf("重复归还应返回首次结果，first=%+v second=%+v", first, second)
	}
}

func TestLoanService_ReturnItem_Errors(t *testing.T) {
	svc, _, _ := setupTestLoanService()
	ctx := context.Background()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")
	itemID := loan.Items[0].ID

	_, err := svc.ReturnItem(ctx, itemID, &dto.ReturnItemRequest{ReturnDate: "2025-04-25"})
	if !errors.Is(err, circulation.ErrReturnBeforeStart) {
		t.Errorf("期望 ErrReturnBeforeStart，实际: %v", err)
	}

	_, err = svc.ReturnItem(ctx, "missing-item", &dto.ReturnItemRequest{})
	if !errors.Is(err, ErrItemNotFound) {
		t.Errorf("期望 ErrItemNotFound，实际: %v", err)
	}

	if _, err := svc.MarkLost(ctx, itemID); err != nil {
		t.Fatalf("MarkLost 应成功: %v", err)
	}
	_, err = svc.ReturnItem(ctx, itemID, &dto.ReturnItemRequest{})
	if !errors.Is(err, circulation.ErrItemTerminal) {
		t.Errorf("期望 ErrItemTerminal，实际: %v", err)
	}
}

// ── MarkLost / MarkDamaged 测试 ──

func TestLoanService_MarkLost(t *testing.T) {
	svc, store, _ := setupTestLoanService()
	ctx := context.Background()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")
	itemID := loan.Items[0].ID

	resp, err := svc.MarkLost(ctx, itemID)
	if err != nil {
		t.Fatalf("MarkLost 应成功: %v", err)
	}
	if !resp.Changed || resp.Status != model.ItemStatusLost {
		t.Errorf("标记结果异常: %+v", resp)
	}
	if got := store.items[itemID]; got.ReturnedDate != nil || !got.FineAmount.IsZero() {
		t.Errorf("遗失不应写入归还日期或罚款: %+v", got)
	}
	if got := store.loans[loan.ID].Status; got != model.LoanStatusReturned {
		t.Errorf("全部终态后借阅单应结束，实际=%s", got)
	}

	again, err := svc.MarkLost(ctx, itemID)
	if err != nil || again.Changed {
		t.Errorf("重复标记应为 no-op，resp=%+v err=%v", again, err)
	}

	_, err = svc.MarkDamaged(ctx, itemID)
	if !errors.Is(err, circulation.ErrItemTerminal) {
		t.Errorf("期望 ErrItemTerminal，实际: %v", err)
	}
}

func TestLoanService_MarkDamaged_AfterReturn(t *testing.T) {
	svc, _, _ := setupTestLoanService()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")
	returnOn(t, svc, loan.Items[0].ID, "2025-04-30")

	_, err := svc.MarkDamaged(context.Background(), loan.Items[0].ID)
	if !errors.Is(err, circulation.ErrItemAlreadyReturned) {
		t.Errorf("期望 ErrItemAlreadyReturned，实际: %v", err)
	}
}

// ── CancelLoan 测试 ──

func TestLoanService_CancelLoan(t *testing.T) {
	svc, store, clk := setupTestLoanService()
	ctx := context.Background()

	loan, err := svc.Checkout(ctx, &dto.CheckoutRequest{
		PersonID:  testStudentID,
		StartDate: "2025-04-28",
		Items:     []dto.AddItemRequest{{BookID: testShelfBook}, {BookID: testLastCopy}},
	})
	if err != nil {
		t.Fatalf("Checkout 应成功: %v", err)
	}
	clk.setToday(testDay(2025, 5, 6))

	resp, err := svc.CancelLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("CancelLoan 应成功: %v", err)
	}
	if !resp.Changed || resp.Status != model.LoanStatusCancelled {
		t.Errorf("取消结果异常: %+v", resp)
	}
	for _, it := range loan.Items {
		got := store.items[it.ID]
		if got.Status != model.ItemStatusReturned || got.ReturnedDate == nil {
			t.Fatalf("取消后借阅项应归还: %+v", got)
		}
		if circulation.FormatDay(*got.ReturnedDate) != "2025-05-06" || !got.FineAmount.IsZero() {
			t.Errorf("取消不计罚款，归还日期为今天: %+v", got)
		}
	}

	again, err := svc.CancelLoan(ctx, loan.ID)
	if err != nil || again.Changed {
		t.Errorf("重复取消应为 no-op，resp=%+v err=%v", again, err)
	}
}

func TestLoanService_CancelLoan_FutureStart(t *testing.T) {
	svc, store, _ := setupTestLoanService()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-05-05", "")

	if _, err := svc.CancelLoan(context.Background(), loan.ID); err != nil {
		t.Fatalf("CancelLoan 应成功: %v", err)
	}
	got := store.items[loan.Items[0].ID]
	if got.ReturnedDate == nil || circulation.FormatDay(*got.ReturnedDate) != "2025-05-05" {
		t.Errorf("尚未开始的借阅单以开始日期为归还日期: %+v", got)
	}
}

func TestLoanService_CancelLoan_WithReturnedItem(t *testing.T) {
	svc, store, _ := setupTestLoanService()
	ctx := context.Background()

	loan, err := svc.Checkout(ctx, &dto.CheckoutRequest{
		PersonID:  testStudentID,
		StartDate: "2025-04-28",
		Items:     []dto.AddItemRequest{{BookID: testShelfBook}, {BookID: testLastCopy}},
	})
	if err != nil {
		t.Fatalf("Checkout 应成功: %v", err)
	}
	returnOn(t, svc, loan.Items[0].ID, "2025-04-29")

	_, err = svc.CancelLoan(ctx, loan.ID)
	if !errors.Is(err, circulation.ErrHasReturnedItems) {
		t.Errorf("期望 ErrHasReturnedItems，实际: %v", err)
	}
	if got := store.items[loan.Items[1].ID].Status; got != model.ItemStatusCheckedOut {
		t.Errorf("拒绝取消时借阅项不应变化，实际=%s", got)
	}
}

func TestLoanService_CancelLoan_Closed(t *testing.T) {
	svc, _, _ := setupTestLoanService()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")
	if _, err := svc.MarkDamaged(context.Background(), loan.Items[0].ID); err != nil {
		t.Fatalf("MarkDamaged 应成功: %v", err)
	}

	_, err := svc.CancelLoan(context.Background(), loan.ID)
	if !errors.Is(err, circulation.ErrLoanClosed) {
		t.Errorf("期望 ErrLoanClosed，实际: %v", err)
	}
}

// ── PreviewDueDate 测试 ──

func TestLoanService_PreviewDueDate(t *testing.T) {
	svc, store, _ := setupTestLoanService()
	ctx := context.Background()

	resp, err := svc.PreviewDueDate(ctx, &dto.PreviewDueDateRequest{PersonID: testStudentID})
	if err != nil {
		t.Fatalf("PreviewDueDate 应成功: %v", err)
	}
	if resp.DueDate != "2025-05-02" || resp.PeriodID != testPeriodID {
		t.Errorf("预览结果异常: %+v", resp)
	}
	if len(store.loans) != 0 {
		t.Error("预览不应写入数据")
	}

	_, err = svc.PreviewDueDate(ctx, &dto.PreviewDueDateRequest{PersonID: testProfID})
	if !errors.Is(err, circulation.ErrDueDateRequired) {
		t.Errorf("期望 ErrDueDateRequired，实际: %v", err)
	}

	_, err = svc.PreviewDueDate(ctx, &dto.PreviewDueDateRequest{PersonID: testStudentID, StartDate: "2025-07-01"})
	if !errors.Is(err, circulation.ErrStartOutsidePeriod) {
		t.Errorf("期望 ErrStartOutsidePeriod，实际: %v", err)
	}
}

// ── RegisterPayment 测试 ──

func TestLoanService_RegisterPayment(t *testing.T) {
	svc, store, _ := setupTestLoanService()
	ctx := context.Background()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")
	itemID := loan.Items[0].ID
	returnOn(t, svc, itemID, "2025-05-05")

	resp, err := svc.RegisterPayment(ctx, itemID, &dto.RegisterPaymentRequest{Amount: "20", Method: "efectivo"})
	if err != nil {
		t.Fatalf("RegisterPayment 应成功: %v", err)
	}
	if resp.Amount != "20.00" || resp.Remaining != "16.00" {
		t.Errorf("缴费结果异常: %+v", resp)
	}

	_, err = svc.RegisterPayment(ctx, itemID, &dto.RegisterPaymentRequest{Amount: "20.00"})
	if !errors.Is(err, circulation.ErrPaymentExceedsBalance) {
		t.Errorf("期望 ErrPaymentExceedsBalance，实际: %v", err)
	}

	resp, err = svc.RegisterPayment(ctx, itemID, &dto.RegisterPaymentRequest{Amount: "16.00"})
	if err != nil {
		t.Fatalf("RegisterPayment 应成功: %v", err)
	}
	if resp.Remaining != "0.00" {
		t.Errorf("期望余额 0.00，实际=%s", resp.Remaining)
	}
	if len(store.payments) != 2 {
		t.Errorf("期望 2 条缴费记录，实际=%d", len(store.payments))
	}
}

func TestLoanService_RegisterPayment_InvalidAmount(t *testing.T) {
	svc, _, _ := setupTestLoanService()
	ctx := context.Background()

	tests := []struct {
		amount string
		want   error
	}{
		{"abc", ErrInvalidAmount},
		{"1.234", ErrInvalidAmount},
		{"1.2301", ErrInvalidAmount},
		{"0", circulation.ErrInvalidPaymentAmount},
		{"-5.00", circulation.ErrInvalidPaymentAmount},
	}
	for _, tt := range tests {
		_, err := svc.RegisterPayment(ctx, "any-item", &dto.RegisterPaymentRequest{Amount: tt.amount})
		if !errors.Is(err, tt.want) {
			t.Errorf("amount=%q 期望 %v，实际: %v", tt.amount, tt.want, err)
		}
	}
}

func TestLoanService_RegisterPayment_TrailingZeros(t *testing.T) {
	svc, _, _ := setupTestLoanService()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")
	itemID := loan.Items[0].ID
	returnOn(t, svc, itemID, "2025-05-05")

	resp, err := svc.RegisterPayment(context.Background(), itemID, &dto.RegisterPaymentRequest{Amount: "10.500"})
	if err != nil {
		t.Fatalf("\"10.500\" 是合法的两位小数金额: %v", err)
	}
	if resp.Amount != "10.50" || resp.Remaining != "25.50" {
		t.Errorf("缴费结果异常: %+v", resp)
	}
}

func TestLoanService_RegisterPayment_StorageFailure(t *testing.T) {
	svc, store, _ := setupTestLoanService()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")
	returnOn(t, svc, loan.Items[0].ID, "2025-05-05")
	store.failPayment = errors.New("connection reset")

	_, err := svc.RegisterPayment(context.Background(), loan.Items[0].ID, &dto.RegisterPaymentRequest{Amount: "10.00"})
	if !errors.Is(err, apperrors.ErrStorage) {
		t.Errorf("期望存储错误，实际: %v", err)
	}
}

// ── 查询测试 ──

func TestLoanService_ListItems_OverdueWithAccruingFine(t *testing.T) {
	svc, _, clk := setupTestLoanService()
	ctx := context.Background()
	late := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")
	checkoutOne(t, svc, testProfID, testShelfBook, "2025-04-28", "2025-05-14")
	clk.setToday(testDay(2025, 5, 6))

	list, total, err := svc.ListItems(ctx, &dto.ListLoanItemsRequest{OnlyOverdue: true})
	if err != nil {
		t.Fatalf("ListItems 应成功: %v", err)
	}
	if total != 1 || len(list) != 1 {
		t.Fatalf("期望 1 个逾期项，total=%d len=%d", total, len(list))
	}
	got := list[0]
	if got.ID != late.Items[0].ID || !got.Overdue {
		t.Errorf("逾期项异常: %+v", got)
	}
	// 05-03 ~ 05-06 共 4 天
	if got.AccruingFine != "48.00" {
		t.Errorf("期望应计罚款 48.00，实际=%s", got.AccruingFine)
	}
	if got.FineAmount != "0.00" {
		t.Errorf("未归还前不应落库罚款，实际=%s", got.FineAmount)
	}
	if got.PersonName != "Ana" || got.Debt != "0.00" {
		t.Errorf("列表行缺少关联信息: %+v", got)
	}
}

func TestLoanService_ListItems_WithDebt(t *testing.T) {
	svc, _, _ := setupTestLoanService()
	ctx := context.Background()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")
	returnOn(t, svc, loan.Items[0].ID, "2025-05-05")
	if _, err := svc.RegisterPayment(ctx, loan.Items[0].ID, &dto.RegisterPaymentRequest{Amount: "6.00"}); err != nil {
		t.Fatalf("RegisterPayment 应成功: %v", err)
	}

	list, _, err := svc.ListItems(ctx, &dto.ListLoanItemsRequest{WithDebt: true})
	if err != nil {
		t.Fatalf("ListItems 应成功: %v", err)
	}
	if len(list) != 1 || list[0].PaidAmount != "6.00" || list[0].Debt != "30.00" {
		t.Errorf("欠款列表异常: %+v", list)
	}
}

func TestLoanService_GetLoan(t *testing.T) {
	svc, _, clk := setupTestLoanService()
	ctx := context.Background()
	loan := checkoutOne(t, svc, testStudentID, testShelfBook, "2025-04-28", "")
	clk.setToday(testDay(2025, 5, 3))

	got, err := svc.GetLoan(ctx, loan.ID)
	if err != nil {
		t.Fatalf("GetLoan 应成功: %v", err)
	}
	if len(got.Items) != 1 || !got.Items[0].Overdue || got.Items[0].AccruingFine != "12.00" {
		t.Errorf("借阅单详情异常: %+v", got)
	}

	_, err = svc.GetLoan(ctx, "missing-loan")
	if !errors.Is(err, ErrLoanNotFound) {
		t.Errorf("期望 ErrLoanNotFound，实际: %v", err)
	}
}
