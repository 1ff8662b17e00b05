package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/minhducn14/dutu-pulmo-be-sub001/config"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/dto"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/repository"
)

// ── 统计模块业务错误 ──

var (
	ErrExportNoData       = errors.New("所选日期范围内没有预约数据")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// StatsService 预约统计与导出业务接口
type StatsService interface {
	// Stats 按状态聚合预约数量
	Stats(ctx context.Context, req *dto.StatsRequest) (*dto.StatsResponse, error)
	// Dashboard 医生工作台：当日各状态预约量与候诊人数
	Dashboard(ctx context.Context, doctorID string) (*dto.DashboardResponse, error)
	// TodayQueue 当日已签到的候诊队列，按排队号升序
	TodayQueue(ctx context.Context, doctorID string) ([]dto.QueueEntry, error)
	// Calendar 月历视图：指定月份每天的预约量
	Calendar(ctx context.Context, doctorID, month string) ([]dto.CalendarDay, error)
	// ExportAppointments 导出日期范围内的预约明细为 Excel
	ExportAppointments(ctx context.Context, req *dto.StatsRequest) (*bytes.Buffer, string, error)
}

type statsService struct {
	repo   *repository.Repository
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewStatsService 创建 StatsService 实例
func NewStatsService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) StatsService {
	return &statsService{
		repo:   repo,
		loc:    loadLocation(cfg, logger),
		logger: logger,
		now:    time.Now,
	}
}

// ────────────────────── Stats ──────────────────────

func (s *statsService) Stats(ctx context.Context, req *dto.StatsRequest) (*dto.StatsResponse, error) {
	from, to, err := parseStatsRange(req)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.Appointment.CountByStatus(ctx, req.DoctorID, from, to)
	if err != nil {
		s.logger.Error("统计预约失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.StatsResponse{ByStatus: make(map[string]int64, len(counts))}
	for _, c := range counts {
		resp.ByStatus[string(c.Status)] = c.Count
		resp.Total += c.Count
	}
	return resp, nil
}

// ────────────────────── Dashboard / TodayQueue / Calendar ──────────────────────

func (s *statsService) Dashboard(ctx context.Context, doctorID string) (*dto.DashboardResponse, error) {
	dayStart, dayEnd := s.dayBounds(s.now())

	counts, err := s.repo.Appointment.CountByStatus(ctx, doctorID, dayStart, dayEnd)
	if err != nil {
		s.logger.Error("统计当日预约失败", zap.Error(err))
		return nil, err
	}

	resp := &dto.DashboardResponse{
		Date:          dayStart.Format("2006-01-02"),
		TodayByStatus: make(map[string]int64, len(counts)),
	}
	for _, c := range counts {
		resp.TodayByStatus[string(c.Status)] = c.Count
		resp.TodayTotal += c.Count
		if c.Status == model.StatusCheckedIn {
			resp.WaitingCount = int(c.Count)
		}
	}
	return resp, nil
}

func (s *statsService) TodayQueue(ctx context.Context, doctorID string) ([]dto.QueueEntry, error) {
	dayStart, dayEnd := s.dayBounds(s.now())

	appts, _, err := s.repo.Appointment.List(ctx, repository.AppointmentQuery{
		DoctorID: doctorID,
		Status:   model.StatusCheckedIn,
		From:     &dayStart,
		To:       &dayEnd,
		Limit:    500,
	})
	if err != nil {
		s.logger.Error("查询候诊队列失败", zap.Error(err))
		return nil, err
	}

	entries := make([]dto.QueueEntry, 0, len(appts))
	for i := range appts {
		appt := &appts[i]
		entry := dto.QueueEntry{
			AppointmentID:     appt.AppointmentID,
			AppointmentNumber: appt.AppointmentNumber,
			PatientID:         appt.PatientID,
			ScheduledAt:       appt.ScheduledAt.Format(time.RFC3339),
		}
		if appt.QueueNumber != nil {
			entry.QueueNumber = *appt.QueueNumber
		}
		if appt.Patient != nil {
			entry.PatientName = appt.Patient.Name
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].QueueNumber < entries[j].QueueNumber
	})
	return entries, nil
}

func (s *statsService) Calendar(ctx context.Context, doctorID, month string) ([]dto.CalendarDay, error) {
	first, err := time.ParseInLocation("2006-01", month, s.loc)
	if err != nil {
		return nil, ErrInvalidDateRange
	}
	next := first.AddDate(0, 1, 0)

	appts, _, err := s.repo.Appointment.List(ctx, repository.AppointmentQuery{
		DoctorID: doctorID,
		From:     &first,
		To:       &next,
		Limit:    10000,
	})
	if err != nil {
		s.logger.Error("查询月历预约失败", zap.Error(err))
		return nil, err
	}

	byDay := make(map[string]int64)
	for i := range appts {
		byDay[appts[i].ScheduledAt.In(s.loc).Format("2006-01-02")]++
	}

	days := make([]dto.CalendarDay, 0, 31)
	for d := first; d.Before(next); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		days = append(days, dto.CalendarDay{Date: key, Count: byDay[key]})
	}
	return days, nil
}

func (s *statsService) dayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.In(s.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

// ────────────────────── ExportAppointments ──────────────────────
//
// 输出格式：单 Sheet 明细表
//   列：预约号 | 就诊时间 | 患者 | 医生 | 类型 | 状态 | 费用(分) | 排队号
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *statsService) ExportAppointments(ctx context.Context, req *dto.StatsRequest) (*bytes.Buffer, string, error) {
	from, to, err := parseStatsRange(req)
	if err != nil {
		return nil, "", err
	}

	appts, _, err := s.repo.Appointment.List(ctx, repository.AppointmentQuery{
		DoctorID: req.DoctorID,
		From:     &from,
		To:       &to,
		Limit:    10000,
	})
	if err != nil {
		s.logger.Error("查询预约明细失败", zap.Error(err))
		return nil, "", err
	}
	if len(appts) == 0 {
		return nil, "", ErrExportNoData
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "预约明细"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 24)
	f.SetColWidth(sheetName, "B", "B", 20)
	f.SetColWidth(sheetName, "C", "D", 14)
	f.SetColWidth(sheetName, "E", "F", 16)
	f.SetColWidth(sheetName, "G", "H", 12)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{"预约号", "就诊时间", "患者", "医生", "类型", "状态", "费用(分)", "排队号"}
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s1", col)
		f.SetCellValue(sheetName, cell, h)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	row := 2
	for i := range appts {
		appt := &appts[i]
		patientName, doctorName := "-", "-"
		if appt.Patient != nil {
			patientName = appt.Patient.Name
		}
		if appt.Doctor != nil {
			doctorName = appt.Doctor.Name
		}
		queue := "-"
		if appt.QueueNumber != nil {
			queue = fmt.Sprintf("%d", *appt.QueueNumber)
		}

		values := []interface{}{
			appt.AppointmentNumber,
			appt.ScheduledAt.Format("2006-01-02 15:04"),
			patientName,
			doctorName,
			string(appt.AppointmentType),
			string(appt.Status),
			appt.FeeAmount,
			queue,
		}
		for j, v := range values {
			col, _ := excelize.ColumnNumberToName(j + 1)
			f.SetCellValue(sheetName, fmt.Sprintf("%s%d", col, row), v)
		}
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("预约明细_%s_%s.xlsx", req.StartDate, req.EndDate)
	return buf, filename, nil
}

// ── 内部辅助方法 ──

func parseStatsRange(req *dto.StatsRequest) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	to, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return from, to.AddDate(0, 0, 1), nil
}
