package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/minhducn14/dutu-pulmo-be-sub001/config"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/dto"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/repository"
)

// ── 号源模块业务错误 ──

var (
	ErrSlotNotFound      = errors.New("号源不存在")
	ErrInvalidDateRange  = errors.New("日期范围无效")
	ErrDateRangeTooLarge = errors.New("日期范围超出单次生成上限")
)

// SlotService 号源业务接口
//
// 号源由排班按「赢者通吃」规则生成：某日存在弹性排班时，
// 该日只按弹性排班出号，固定排班整日不出号；请假时段从
// 胜出排班的出号区间中剔除。
type SlotService interface {
	// Generate 按排班为医生生成 [start, end] 的号源
	Generate(ctx context.Context, doctorID string, req *dto.GenerateSlotsRequest) (*dto.GenerateSlotsResponse, error)
	// List 查询医生在日期区间内的号源
	List(ctx context.Context, doctorID string, req *dto.SlotListRequest) ([]dto.SlotResponse, error)
	// RestoreDays 排班变更后恢复受影响日期的号源（见 slot_restore.go）
	RestoreDays(ctx context.Context, doctorID string, dates []time.Time) error
	// AffectedDates 计算排班变更后需要恢复的日期集合
	AffectedDates(ctx context.Context, doctorID string, sch *model.DoctorSchedule) ([]time.Time, error)
	// CandidateSlots 按当前排班集合计算某日应出的候选号源（不落库），
	// 供排班变更后判断既有预约是否仍被覆盖
	CandidateSlots(ctx context.Context, doctorID string, date time.Time) ([]model.TimeSlot, error)
}

type slotService struct {
	repo   *repository.Repository
	cfg    *config.Config
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewSlotService 创建 SlotService 实例
func NewSlotService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) SlotService {
	return &slotService{
		repo:   repo,
		cfg:    cfg,
		loc:    loadLocation(cfg, logger),
		logger: logger,
		now:    time.Now,
	}
}

func loadLocation(cfg *config.Config, logger *zap.Logger) *time.Location {
	loc, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		logger.Warn("时区加载失败，回退到本地时区", zap.String("timezone", cfg.Server.Timezone), zap.Error(err))
		return time.Local
	}
	return loc
}

// ────────────────────── Generate ──────────────────────

func (s *slotService) Generate(ctx context.Context, doctorID string, req *dto.GenerateSlotsRequest) (*dto.GenerateSlotsResponse, error) {
	if _, err := s.repo.Doctor.GetByID(ctx, doctorID); err != nil {
		return nil, wrapNotFound(err, ErrDoctorNotFound)
	}

	start, err := s.parseDate(req.StartDate)
	if err != nil {
		return nil, ErrInvalidDateRange
	}
	end, err := s.parseDate(req.EndDate)
	if err != nil {
		return nil, ErrInvalidDateRange
	}
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}

	// 过去的日期不出号，起点收拢到明天
	tomorrow, _ := s.dayBounds(s.now().In(s.loc))
	tomorrow = tomorrow.AddDate(0, 0, 1)
	if start.Before(tomorrow) {
		start = tomorrow
	}

	resp := &dto.GenerateSlotsResponse{StartDate: req.StartDate, EndDate: req.EndDate}
	if end.Before(start) {
		return resp, nil
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days > s.cfg.Booking.MaxGenerateDays {
		return nil, ErrDateRangeTooLarge
	}
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		day := date
		err := s.repo.WithTx(ctx, func(txRepo *repository.Repository) error {
			generated, skipped, disabled, err := s.generateDay(ctx, txRepo, doctorID, day)
			if err != nil {
				return err
			}
			resp.GeneratedCount += generated
			resp.SkippedCount += skipped
			resp.DisabledCount += disabled
			return nil
		})
		if err != nil {
			s.logger.Error("生成号源失败",
				zap.String("doctor_id", doctorID),
				zap.Time("date", day),
				zap.Error(err))
			return nil, err
		}
	}

	s.logger.Info("号源生成完成",
		zap.String("doctor_id", doctorID),
		zap.Int("generated", resp.GeneratedCount),
		zap.Int("skipped", resp.SkippedCount),
		zap.Int("disabled", resp.DisabledCount))
	return resp, nil
}

// generateDay 为单日生成号源：已有重叠号源的候选跳过，
// 不再对应任何候选时段的未预约号源统一停用。
func (s *slotService) generateDay(ctx context.Context, txRepo *repository.Repository, doctorID string, date time.Time) (generated, skipped, disabled int, err error) {
	winners, timeoffs, err := s.dayWinners(ctx, txRepo, doctorID, date)
	if err != nil {
		return 0, 0, 0, err
	}

	dayStart, dayEnd := s.dayBounds(date)
	existing, err := txRepo.TimeSlot.ListByDoctorAndRange(ctx, doctorID, dayStart, dayEnd, false)
	if err != nil {
		return 0, 0, 0, err
	}

	var toCreate []model.TimeSlot
	var keepIDs []string
	for i := range winners {
		for _, cand := range s.buildCandidates(&winners[i], date, timeoffs) {
			if match := exactMatch(cand.StartTime, cand.EndTime, existing); match != nil {
				keepIDs = append(keepIDs, match.SlotID)
				skipped++
				continue
			}
			if overlapsAny(cand.StartTime, cand.EndTime, existing) {
				skipped++
				continue
			}
			toCreate = append(toCreate, cand)
		}
	}

	// 先停用再入库，新建的号源不受停用影响
	n, err := txRepo.TimeSlot.DisableUnbookedExcept(ctx, doctorID, dayStart, dayEnd, keepIDs)
	if err != nil {
		return 0, 0, 0, err
	}

	if err := txRepo.TimeSlot.BatchCreate(ctx, toCreate); err != nil {
		return 0, 0, 0, err
	}
	return len(toCreate), skipped, int(n), nil
}

// dayWinners 返回某日胜出的排班与请假时段。
// 该日存在可用弹性排班时仅弹性排班胜出，否则由可用固定排班胜出。
func (s *slotService) dayWinners(ctx context.Context, txRepo *repository.Repository, doctorID string, date time.Time) (winners, timeoffs []model.DoctorSchedule, err error) {
	schedules, err := txRepo.Schedule.ListByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		return nil, nil, err
	}

	var flexibles, regulars []model.DoctorSchedule
	for _, sch := range schedules {
		switch sch.Kind {
		case model.ScheduleTimeOff:
			timeoffs = append(timeoffs, sch)
		case model.ScheduleFlexible:
			if sch.IsAvailable {
				flexibles = append(flexibles, sch)
			}
		case model.ScheduleRegular:
			if sch.IsAvailable {
				regulars = append(regulars, sch)
			}
		}
	}

	if len(flexibles) > 0 {
		return flexibles, timeoffs, nil
	}
	return regulars, timeoffs, nil
}

// buildCandidates 按排班切分单日候选号源：从开始时刻按 slot_duration
// 步进，越过结束时刻的尾段丢弃，与请假时段重叠的候选剔除。
func (s *slotService) buildCandidates(sch *model.DoctorSchedule, date time.Time, timeoffs []model.DoctorSchedule) []model.TimeSlot {
	startMin := mustClock(sch.StartTime)
	endMin := mustClock(sch.EndTime)
	duration := sch.SlotDuration
	if duration <= 0 || endMin <= startMin {
		return nil
	}

	var slots []model.TimeSlot
	for cur := startMin; cur+duration <= endMin; cur += duration {
		curEnd := cur + duration

		blocked := false
		for i := range timeoffs {
			if clockOverlaps(cur, curEnd, mustClock(timeoffs[i].StartTime), mustClock(timeoffs[i].EndTime)) {
				blocked = true
				break
			}
		}
		if blocked {
			continue
		}

		scheduleID := sch.ScheduleID
		slots = append(slots, model.TimeSlot{
			DoctorID:        sch.DoctorID,
			ScheduleID:      &scheduleID,
			ScheduleVersion: sch.Version,
			StartTime:       s.clockOnDate(date, cur),
			EndTime:         s.clockOnDate(date, curEnd),
			Capacity:        sch.SlotCapacity,
			AllowedTypes:    allowedTypesFor(sch),
			IsAvailable:     true,
		})
	}
	return slots
}

// ────────────────────── CandidateSlots ──────────────────────

func (s *slotService) CandidateSlots(ctx context.Context, doctorID string, date time.Time) ([]model.TimeSlot, error) {
	winners, timeoffs, err := s.dayWinners(ctx, s.repo, doctorID, date)
	if err != nil {
		return nil, err
	}
	var candidates []model.TimeSlot
	for i := range winners {
		candidates = append(candidates, s.buildCandidates(&winners[i], date, timeoffs)...)
	}
	return candidates, nil
}

// ────────────────────── List ──────────────────────

func (s *slotService) List(ctx context.Context, doctorID string, req *dto.SlotListRequest) ([]dto.SlotResponse, error) {
	start, err := s.parseDate(req.StartDate)
	if err != nil {
		return nil, ErrInvalidDateRange
	}
	end, err := s.parseDate(req.EndDate)
	if err != nil {
		return nil, ErrInvalidDateRange
	}
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}

	slots, err := s.repo.TimeSlot.ListByDoctorAndRange(ctx, doctorID, start, end.AddDate(0, 0, 1), req.OnlyFree)
	if err != nil {
		s.logger.Error("查询号源失败", zap.String("doctor_id", doctorID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.SlotResponse, 0, len(slots))
	for i := range slots {
		slot := &slots[i]
		if req.OnlyFree && !slot.HasFreeCapacity() {
			continue
		}
		result = append(result, *toSlotResponse(slot))
	}
	return result, nil
}

// ── 内部辅助方法 ──

func (s *slotService) parseDate(v string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", v, s.loc)
}

func (s *slotService) dayBounds(date time.Time) (time.Time, time.Time) {
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

func (s *slotService) clockOnDate(date time.Time, minutes int) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, minutes/60, minutes%60, 0, 0, s.loc)
}

func allowedTypesFor(sch *model.DoctorSchedule) model.StringArray {
	if sch.AppointmentType.Valid() {
		return model.StringArray{string(sch.AppointmentType)}
	}
	return model.StringArray{string(model.TypeInClinic), string(model.TypeVideo)}
}

func overlapsAny(start, end time.Time, slots []model.TimeSlot) bool {
	for i := range slots {
		if slots[i].Overlaps(start, end) {
			return true
		}
	}
	return false
}

func toSlotResponse(slot *model.TimeSlot) *dto.SlotResponse {
	return &dto.SlotResponse{
		ID:           slot.SlotID,
		DoctorID:     slot.DoctorID,
		ScheduleID:   slot.ScheduleID,
		StartTime:    slot.StartTime.Format(time.RFC3339),
		EndTime:      slot.EndTime.Format(time.RFC3339),
		Capacity:     slot.Capacity,
		BookedCount:  slot.BookedCount,
		Remaining:    slot.Capacity - slot.BookedCount,
		AllowedTypes: slot.AllowedTypes,
		IsAvailable:  slot.IsAvailable,
	}
}

