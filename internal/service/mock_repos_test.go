package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/insightvigil/biblioteca-escolar/internal/circulation"
	"github.com/insightvigil/biblioteca-escolar/internal/model"
	"github.com/insightvigil/biblioteca-escolar/internal/repository"
	pkgerrors "github.com/insightvigil/biblioteca-escolar/pkg/errors"
)

// ── 内存存储 ──
//
// txMu 串行化事务（等价于行锁下的串行执行），dataMu 保护单次读写；
// 事务失败时从快照恢复，模拟回滚。

type memStore struct {
	txMu   sync.Mutex
	dataMu sync.Mutex

	periods  map[string]model.AcademicPeriod
	holidays []model.Holiday
	settings *model.LoanSettings
	people   map[string]model.Person
	books    map[string]model.Book
	loans    map[string]model.Loan
	items    map[string]model.LoanItem
	payments []model.Payment

	// 图书行加锁顺序
	bookLocks []string

	// 故障注入
	failItemCreate error
	failPayment    error
}

func newMemStore() *memStore {
	return &memStore{
		periods: make(map[string]model.AcademicPeriod),
		people:  make(map[string]model.Person),
		books:   make(map[string]model.Book),
		loans:   make(map[string]model.Loan),
		items:   make(map[string]model.LoanItem),
	}
}

type memSnapshot struct {
	settings *model.LoanSettings
	loans    map[string]model.Loan
	items    map[string]model.LoanItem
	payments []model.Payment
}

func (m *memStore) snapshot() memSnapshot {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	snap := memSnapshot{
		loans:    make(map[string]model.Loan, len(m.loans)),
		items:    make(map[string]model.LoanItem, len(m.items)),
		payments: append([]model.Payment(nil), m.payments...),
	}
	if m.settings != nil {
		s := *m.settings
		snap.settings = &s
	}
	for k, v := range m.loans {
		snap.loans[k] = v
	}
	for k, v := range m.items {
		snap.items[k] = v
	}
	return snap
}

func (m *memStore) restore(snap memSnapshot) {
	m.dataMu.Lock()
	defer m.dataMu.Unlock()
	m.settings = snap.settings
	m.loans = snap.loans
	m.items = snap.items
	m.payments = snap.payments
}

// repository 组装指向同一内存存储的 Repository
func (m *memStore) repository() *repository.Repository {
	repo := &repository.Repository{
		Period:       &mockPeriodRepo{m},
		Holiday:      &mockHolidayRepo{m},
		LoanSettings: &mockLoanSettingsRepo{m},
		Person:       &mockPersonRepo{m},
		Book:         &mockBookRepo{m},
		Loan:         &mockLoanRepo{m},
		LoanItem:     &mockLoanItemRepo{m},
		Payment:      &mockPaymentRepo{m},
	}
	repo.Transactor = &memTransactor{store: m, repo: repo}
	return repo
}

// ── Mock Transactor ──

type memTransactor struct {
	store *memStore
	repo  *repository.Repository
}

func (t *memTransactor) Transaction(_ context.Context, fn func(txRepo *repository.Repository) error) error {
	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()

	snap := t.store.snapshot()
	if err := fn(t.repo); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// ── Mock PeriodRepository / HolidayRepository ──

type mockPeriodRepo struct{ m *memStore }

func (r *mockPeriodRepo) GetByID(_ context.Context, id string) (*model.AcademicPeriod, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	if p, ok := r.m.periods[id]; ok {
		return &p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockPeriodRepo) FindByDate(_ context.Context, d time.Time) (*model.AcademicPeriod, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	for _, p := range r.m.periods {
		if !d.Before(p.StartDate) && !d.After(p.EndDate) {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockPeriodRepo) List(_ context.Context) ([]model.AcademicPeriod, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	var result []model.AcademicPeriod
	for _, p := range r.m.periods {
		result = append(result, p)
	}
	return result, nil
}

type mockHolidayRepo struct{ m *memStore }

func (r *mockHolidayRepo) ListByPeriod(_ context.Context, periodID string) ([]model.Holiday, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	var result []model.Holiday
	for _, h := range r.m.holidays {
		if h.PeriodID == periodID {
			result = append(result, h)
		}
	}
	return result, nil
}

// ── Mock LoanSettingsRepository ──

type mockLoanSettingsRepo struct{ m *memStore }

func (r *mockLoanSettingsRepo) Get(_ context.Context) (*model.LoanSettings, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	if r.m.settings == nil {
		return nil, gorm.ErrRecordNotFound
	}
	s := *r.m.settings
	return &s, nil
}

func (r *mockLoanSettingsRepo) Update(_ context.Context, s *model.LoanSettings) error {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	if r.m.settings == nil || r.m.settings.Version != s.Version {
		return pkgerrors.ErrOptimisticLock
	}
	s.Version++
	stored := *s
	r.m.settings = &stored
	return nil
}

// ── Mock PersonRepository / BookRepository ──

type mockPersonRepo struct{ m *memStore }

func (r *mockPersonRepo) GetByID(_ context.Context, id string) (*model.Person, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	if p, ok := r.m.people[id]; ok {
		return &p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockPersonRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Person, error) {
	return r.GetByID(ctx, id)
}

type mockBookRepo struct{ m *memStore }

func (r *mockBookRepo) GetByID(_ context.Context, id string) (*model.Book, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	if b, ok := r.m.books[id]; ok {
		return &b, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockBookRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Book, error) {
	r.m.dataMu.Lock()
	r.m.bookLocks = append(r.m.bookLocks, id)
	r.m.dataMu.Unlock()
	return r.GetByID(ctx, id)
}

func (r *mockBookRepo) ListAvailability(_ context.Context, bookIDs []string) ([]repository.BookAvailability, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	want := make(map[string]bool, len(bookIDs))
	for _, id := range bookIDs {
		want[id] = true
	}
	var result []repository.BookAvailability
	for _, b := range r.m.books {
		if len(want) > 0 && !want[b.BookID] {
			continue
		}
		active := 0
		for _, it := range r.m.items {
			if it.BookID == b.BookID && it.Status == model.ItemStatusCheckedOut {
				active++
			}
		}
		result = append(result, repository.BookAvailability{BookID: b.BookID, Title: b.Title, TotalStock: b.TotalStock, Active: active})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Title < result[j].Title })
	return result, nil
}

// ── Mock LoanRepository ──

type mockLoanRepo struct{ m *memStore }

func (r *mockLoanRepo) Create(_ context.Context, loan *model.Loan) error {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	if loan.LoanID == "" {
		loan.LoanID = uuid.NewString()
	}
	r.m.loans[loan.LoanID] = *loan
	return nil
}

func (r *mockLoanRepo) GetByID(_ context.Context, id string) (*model.Loan, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	if l, ok := r.m.loans[id]; ok {
		return &l, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockLoanRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Loan, error) {
	return r.GetByID(ctx, id)
}

func (r *mockLoanRepo) UpdateStatus(_ context.Context, id, status string) error {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	l, ok := r.m.loans[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	l.Status = status
	r.m.loans[id] = l
	return nil
}

// ── Mock LoanItemRepository ──

type mockLoanItemRepo struct{ m *memStore }

func (r *mockLoanItemRepo) Create(_ context.Context, item *model.LoanItem) error {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	if r.m.failItemCreate != nil {
		return r.m.failItemCreate
	}
	if item.LoanItemID == "" {
		item.LoanItemID = uuid.NewString()
	}
	item.CreatedAt = time.Now()
	r.m.items[item.LoanItemID] = *item
	return nil
}

func (r *mockLoanItemRepo) GetByID(_ context.Context, id string) (*model.LoanItem, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	if it, ok := r.m.items[id]; ok {
		return &it, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *mockLoanItemRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.LoanItem, error) {
	return r.GetByID(ctx, id)
}

func (r *mockLoanItemRepo) ListByLoan(_ context.Context, loanID string) ([]model.LoanItem, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	var result []model.LoanItem
	for _, it := range r.m.items {
		if it.LoanID == loanID {
			result = append(result, it)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].LoanItemID < result[j].LoanItemID })
	return result, nil
}

func (r *mockLoanItemRepo) ListByLoanForUpdate(ctx context.Context, loanID string) ([]model.LoanItem, error) {
	return r.ListByLoan(ctx, loanID)
}

func (r *mockLoanItemRepo) Update(_ context.Context, item *model.LoanItem) error {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	if _, ok := r.m.items[item.LoanItemID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.m.items[item.LoanItemID] = *item
	return nil
}

func (r *mockLoanItemRepo) CountActiveByBook(_ context.Context, bookID string) (int, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	n := 0
	for _, it := range r.m.items {
		if it.BookID == bookID && it.Status == model.ItemStatusCheckedOut {
			n++
		}
	}
	return n, nil
}

func (r *mockLoanItemRepo) CountActiveByPerson(_ context.Context, personID string) (int, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	n := 0
	for _, it := range r.m.items {
		if r.m.loans[it.LoanID].PersonID == personID && it.Status == model.ItemStatusCheckedOut {
			n++
		}
	}
	return n, nil
}

func (r *mockLoanItemRepo) List(_ context.Context, f repository.LoanItemFilter) ([]repository.LoanItemRow, int64, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()

	var rows []repository.LoanItemRow
	for _, it := range r.m.items {
		loan := r.m.loans[it.LoanID]
		person := r.m.people[loan.PersonID]
		paid := decimal.Zero
		for _, p := range r.m.payments {
			if p.LoanItemID == it.LoanItemID {
				paid = paid.Add(p.Amount)
			}
		}

		switch {
		case f.LoanID != "" && it.LoanID != f.LoanID,
			f.PersonID != "" && loan.PersonID != f.PersonID,
			f.PeriodID != "" && loan.PeriodID != f.PeriodID,
			f.BookID != "" && it.BookID != f.BookID,
			f.Status != "" && it.Status != f.Status,
			f.OverdueAsOf != nil && (it.Status != model.ItemStatusCheckedOut || !it.DueDate.Before(*f.OverdueAsOf)),
			f.DueOn != nil && (it.Status != model.ItemStatusCheckedOut || !it.DueDate.Equal(*f.DueOn)),
			f.WithDebt && !it.FineAmount.GreaterThan(paid):
			continue
		}

		rows = append(rows, repository.LoanItemRow{
			LoanItem:    it,
			PersonID:    loan.PersonID,
			PersonName:  person.Name,
			PersonEmail: person.Email,
			Role:        person.Role,
			PeriodID:    loan.PeriodID,
			BookTitle:   r.m.books[it.BookID].Title,
			PaidAmount:  paid,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].DueDate.Equal(rows[j].DueDate) {
			return rows[i].DueDate.Before(rows[j].DueDate)
		}
		return rows[i].LoanItemID < rows[j].LoanItemID
	})

	total := int64(len(rows))
	if f.Offset > 0 {
		if f.Offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[f.Offset:]
		}
	}
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return rows, total, nil
}

// ── Mock PaymentRepository ──

type mockPaymentRepo struct{ m *memStore }

func (r *mockPaymentRepo) Create(_ context.Context, p *model.Payment) error {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	if r.m.failPayment != nil {
		return r.m.failPayment
	}
	if p.PaymentID == "" {
		p.PaymentID = uuid.NewString()
	}
	r.m.payments = append(r.m.payments, *p)
	return nil
}

func (r *mockPaymentRepo) ListByItem(_ context.Context, itemID string) ([]model.Payment, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	var result []model.Payment
	for _, p := range r.m.payments {
		if p.LoanItemID == itemID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (r *mockPaymentRepo) SumByItem(_ context.Context, itemID string) (decimal.Decimal, error) {
	r.m.dataMu.Lock()
	defer r.m.dataMu.Unlock()
	sum := decimal.Zero
	for _, p := range r.m.payments {
		if p.LoanItemID == itemID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

// ── 测试夹具 ──
//
// 学期 2025-04-21（周一）~ 2025-05-16（周五），2025-05-01（周四）为节假日；
// 默认策略：学生 3 个工作日、上限学生 3 / 教师 5、续借 2 次、每日罚款 12.00、周末计费。

const (
	testPeriodID  = "period-2025a"
	testStudentID = "stu-ana"
	testOtherID   = "stu-luis"
	testProfID    = "prof-marta"
	testLastCopy  = "book-last-copy"
	testShelfBook = "book-shelf"
)

func testDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testPolicy() circulation.Policy {
	return circulation.Policy{
		LoanDaysStudent:          3,
		DueUsesBusinessDays:      true,
		MaxBooksStudent:          3,
		MaxBooksProfessor:        5,
		MaxRenewals:              2,
		FinePerDay:               decimal.RequireFromString("12.00"),
		CountWeekendsWhenOverdue: true,
		RenewalBasis:             circulation.RenewalFromDueDate,
		GraceUnit:                circulation.GraceCalendarDays,
		GraceOrder:               circulation.GraceAfterWeekendExclusion,
	}
}

// settingsFromPolicy 由策略构建 loan_settings 行
func settingsFromPolicy(p circulation.Policy) *model.LoanSettings {
	return &model.LoanSettings{
		Singleton:                true,
		LoanDaysStudent:          p.LoanDaysStudent,
		DueUsesBusinessDays:      p.DueUsesBusinessDays,
		FinePerDay:               p.FinePerDay,
		MaxBooksStudent:          p.MaxBooksStudent,
		MaxBooksProfessor:        p.MaxBooksProfessor,
		MaxRenewals:              p.MaxRenewals,
		GraceDays:                p.GraceDays,
		CountWeekendsWhenOverdue: p.CountWeekendsWhenOverdue,
		RenewalBasis:             string(p.RenewalBasis),
		GraceUnit:                string(p.GraceUnit),
		GraceOrder:               string(p.GraceOrder),
		Version:                  1,
	}
}

func seedStore() *memStore {
	m := newMemStore()
	m.periods[testPeriodID] = model.AcademicPeriod{
		PeriodID:  testPeriodID,
		Name:      "2025 春季",
		StartDate: testDay(2025, 4, 21),
		EndDate:   testDay(2025, 5, 16),
	}
	m.holidays = []model.Holiday{{HolidayID: "h-may-day", PeriodID: testPeriodID, Date: testDay(2025, 5, 1), Name: "劳动节"}}
	m.settings = settingsFromPolicy(testPolicy())

	m.people[testStudentID] = model.Person{PersonID: testStudentID, Name: "Ana", Email: "ana@escuela.mx", Role: model.RoleStudent}
	m.people[testOtherID] = model.Person{PersonID: testOtherID, Name: "Luis", Email: "luis@escuela.mx", Role: model.RoleStudent}
	m.people[testProfID] = model.Person{PersonID: testProfID, Name: "Marta", Email: "marta@escuela.mx", Role: model.RoleProfessor}

	m.books[testLastCopy] = model.Book{BookID: testLastCopy, Title: "Cien años de soledad", TotalStock: 1}
	m.books[testShelfBook] = model.Book{BookID: testShelfBook, Title: "El laberinto de la soledad", TotalStock: 10}
	return m
}

// testClock 可调整的业务时钟（服务器时区 UTC-6）
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// setToday 设置为业务时区当天 10:00
func (c *testClock) setToday(d time.Time) {
	c.set(time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, time.UTC))
}

func (c *testClock) clock() Clock {
	return Clock{
		NowFunc: func() time.Time {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.now
		},
		Location: time.FixedZone("CST", -6*60*60),
	}
}
