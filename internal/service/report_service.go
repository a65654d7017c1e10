package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/insightvigil/biblioteca-escolar/internal/circulation"
	"github.com/insightvigil/biblioteca-escolar/internal/dto"
	"github.com/insightvigil/biblioteca-escolar/internal/repository"
	apperrors "github.com/insightvigil/biblioteca-escolar/pkg/errors"
)

// ── 报表模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ReportService 库存与罚款报表业务接口
//
// 设计说明：
//   - 报表为只读视图，不加锁，结果可能略有滞后
//   - 罚款导出为 Excel (.xlsx)，以 bytes.Buffer 返回，由 Handler 层设置响应头
//   - Excel 格式：Sheet "汇总" 按借阅人汇总，Sheet "明细" 列出每个有罚款的借阅项
type ReportService interface {
	BookAvailability(ctx context.Context) ([]dto.BookAvailabilityResponse, error)
	FinesReport(ctx context.Context, req *dto.FinesReportRequest) (*dto.FinesReportResponse, error)
	// ExportFines 返回 buf（Excel 内容）, filename（建议文件名）, error
	ExportFines(ctx context.Context, req *dto.FinesReportRequest) (*bytes.Buffer, string, error)
}

type reportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewReportService 创建 ReportService 实例
func NewReportService(repo *repository.Repository, logger *zap.Logger) ReportService {
	return &reportService{repo: repo, logger: logger}
}

// ────────────────────── BookAvailability ──────────────────────

func (s *reportService) BookAvailability(ctx context.Context) ([]dto.BookAvailabilityResponse, error) {
	rows, err := s.repo.Book.ListAvailability(ctx, nil)
	if err != nil {
		s.logger.Error("查询图书库存失败", zap.Error(err))
		return nil, apperrors.Storage(err)
	}

	list := make([]dto.BookAvailabilityResponse, 0, len(rows))
	for _, r := range rows {
		list = append(list, dto.BookAvailabilityResponse{
			BookID:     r.BookID,
			Title:      r.Title,
			TotalStock: r.TotalStock,
			LoanedOut:  r.Active,
			Available:  circulation.AvailableStock(r.TotalStock, r.Active),
		})
	}
	return list, nil
}

// ────────────────────── FinesReport ──────────────────────

// fineLine 有罚款的借阅项
type fineLine struct {
	row     repository.LoanItemRow
	pending decimal.Decimal
}

func (s *reportService) FinesReport(ctx context.Context, req *dto.FinesReportRequest) (*dto.FinesReportResponse, error) {
	resp, _, err := s.collect(ctx, req)
	return resp, err
}

func (s *reportService) collect(ctx context.Context, req *dto.FinesReportRequest) (*dto.FinesReportResponse, []fineLine, error) {
	if req.PeriodID != "" {
		if _, err := s.repo.Period.GetByID(ctx, req.PeriodID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, circulation.ErrPeriodNotFound
			}
			s.logger.Error("查询学期失败", zap.String("period_id", req.PeriodID), zap.Error(err))
			return nil, nil, apperrors.Storage(err)
		}
	}

	rows, _, err := s.repo.LoanItem.List(ctx, repository.LoanItemFilter{PeriodID: req.PeriodID})
	if err != nil {
		s.logger.Error("查询借阅项失败", zap.String("period_id", req.PeriodID), zap.Error(err))
		return nil, nil, apperrors.Storage(err)
	}

	type acc struct {
		summary dto.PersonFineSummary
		fined   decimal.Decimal
		paid    decimal.Decimal
		pending decimal.Decimal
	}
	byPerson := make(map[string]*acc)
	var (
		lines                 []fineLine
		totalFined, totalPaid = decimal.Zero, decimal.Zero
		totalPending          = decimal.Zero
	)

	for _, r := range rows {
		if !r.FineAmount.IsPositive() {
			continue
		}
		pending := r.FineAmount.Sub(r.PaidAmount)
		if pending.IsNegative() {
			pending = decimal.Zero
		}
		lines = append(lines, fineLine{row: r, pending: pending})

		a, ok := byPerson[r.PersonID]
		if !ok {
			a = &acc{
				summary: dto.PersonFineSummary{PersonID: r.PersonID, PersonName: r.PersonName},
				fined:   decimal.Zero, paid: decimal.Zero, pending: decimal.Zero,
			}
			byPerson[r.PersonID] = a
		}
		a.summary.Items++
		a.fined = a.fined.Add(r.FineAmount)
		a.paid = a.paid.Add(r.PaidAmount)
		a.pending = a.pending.Add(pending)

		totalFined = totalFined.Add(r.FineAmount)
		totalPaid = totalPaid.Add(r.PaidAmount)
		totalPending = totalPending.Add(pending)
	}

	accs := make([]*acc, 0, len(byPerson))
	for _, a := range byPerson {
		accs = append(accs, a)
	}
	// 待缴金额降序，同额按姓名
	sort.Slice(accs, func(i, j int) bool {
		if !accs[i].pending.Equal(accs[j].pending) {
			return accs[i].pending.GreaterThan(accs[j].pending)
		}
		return accs[i].summary.PersonName < accs[j].summary.PersonName
	})

	resp := &dto.FinesReportResponse{
		PeriodID:     req.PeriodID,
		ItemsFined:   len(lines),
		TotalFined:   totalFined.StringFixed(2),
		TotalPaid:    totalPaid.StringFixed(2),
		TotalPending: totalPending.StringFixed(2),
		ByPerson:     make([]dto.PersonFineSummary, 0, len(accs)),
	}
	for _, a := range accs {
		a.summary.Fined = a.fined.StringFixed(2)
		a.summary.Paid = a.paid.StringFixed(2)
		a.summary.Pending = a.pending.StringFixed(2)
		resp.ByPerson = append(resp.ByPerson, a.summary)
	}
	return resp, lines, nil
}

// ═══════════════════════════════════════════════════════════
// ExportFines 导出罚款报表为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - Sheet "汇总"：借阅人 | 罚款项数 | 罚款总额 | 已缴 | 待缴，末行合计
//   - Sheet "明细"：借阅人 | 图书 | 应还日期 | 归还日期 | 罚款 | 已缴 | 待缴

func (s *reportService) ExportFines(ctx context.Context, req *dto.FinesReportRequest) (*bytes.Buffer, string, error) {
	report, lines, err := s.collect(ctx, req)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 汇总
	summary := "汇总"
	idx, _ := f.NewSheet(summary)
	f.SetActiveSheet(idx)
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	f.SetColWidth(summary, "A", "A", 28)
	f.SetColWidth(summary, "B", "E", 14)
	writeRow(f, summary, 1, "借阅人", "罚款项数", "罚款总额", "已缴", "待缴")
	f.SetCellStyle(summary, "A1", "E1", headerStyle)

	row := 2
	for _, p := range report.ByPerson {
		writeRow(f, summary, row, p.PersonName, p.Items, p.Fined, p.Paid, p.Pending)
		row++
	}
	writeRow(f, summary, row, "合计", report.ItemsFined, report.TotalFined, report.TotalPaid, report.TotalPending)

	// 明细
	detail := "明细"
	f.NewSheet(detail)
	f.SetColWidth(detail, "A", "B", 28)
	f.SetColWidth(detail, "C", "G", 14)
	writeRow(f, detail, 1, "借阅人", "图书", "应还日期", "归还日期", "罚款", "已缴", "待缴")
	f.SetCellStyle(detail, "A1", "G1", headerStyle)

	for i, l := range lines {
		returned := "-"
		if l.row.ReturnedDate != nil {
			returned = circulation.FormatDay(*l.row.ReturnedDate)
		}
		writeRow(f, detail, i+2,
			l.row.PersonName,
			l.row.BookTitle,
			circulation.FormatDay(l.row.DueDate),
			returned,
			l.row.FineAmount.StringFixed(2),
			l.row.PaidAmount.StringFixed(2),
			l.pending.StringFixed(2),
		)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := "罚款报表.xlsx"
	if req.PeriodID != "" {
		filename = fmt.Sprintf("罚款报表_%s.xlsx", req.PeriodID)
	}
	return buf, filename, nil
}

// writeRow 从 A 列开始写入一行
func writeRow(f *excelize.File, sheet string, row int, values ...interface{}) {
	for i, v := range values {
		name, _ := excelize.CoordinatesToCellName(i+1, row)
		f.SetCellValue(sheet, name, v)
	}
}
