package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/minhducn14/dutu-pulmo-be-sub001/config"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/dto"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/repository"
)

// ── 排班模块业务错误 ──

var (
	ErrScheduleNotFound     = errors.New("排班不存在")
	ErrScheduleConflict     = errors.New("排班时间与同类排班冲突")
	ErrInvalidTimeRange     = errors.New("开始时间必须早于结束时间")
	ErrInvalidSlotDuration  = errors.New("号源时长须在 5 到 480 分钟之间且不超过排班时长")
	ErrInvalidBookingWindow = errors.New("最早可约天数必须小于最晚可约天数")
	ErrInvalidEffectiveDays = errors.New("生效起始日期必须早于失效日期")
	ErrDoctorNotFound       = errors.New("医生不存在")
	ErrNotScheduleOwner     = errors.New("无权操作他人的排班")
)

// ScheduleService 排班业务接口
//
// 三类排班的优先级为 固定 < 弹性 < 请假。同优先级之间做冲突检测，
// 不同优先级之间是覆盖关系：
//   - 新建弹性排班/请假会硬性取消当日被顶掉的未完成预约
//   - 修改排班时间只给受影响预约打软冲突标记，由医患双方协商处理
type ScheduleService interface {
	CreateRegular(ctx context.Context, doctorID string, req *dto.CreateRegularScheduleRequest) (*dto.ScheduleResponse, error)
	CreateRegularBulk(ctx context.Context, doctorID string, req *dto.CreateRegularBulkRequest) ([]dto.ScheduleResponse, error)
	CreateFlexible(ctx context.Context, doctorID string, req *dto.CreateFlexibleScheduleRequest) (*dto.ScheduleResponse, error)
	CreateTimeOff(ctx context.Context, doctorID string, req *dto.CreateTimeOffRequest) (*dto.ScheduleResponse, error)
	GetByID(ctx context.Context, id string) (*dto.ScheduleResponse, error)
	List(ctx context.Context, doctorID string, req *dto.ScheduleListRequest) ([]dto.ScheduleResponse, error)
	Update(ctx context.Context, doctorID, scheduleID string, req *dto.UpdateScheduleRequest) (*dto.ScheduleResponse, error)
	Delete(ctx context.Context, doctorID, scheduleID, callerID string) error
}

type scheduleService struct {
	repo     *repository.Repository
	slots    SlotService
	notifier Notifier
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(cfg *config.Config, repo *repository.Repository, slots SlotService, notifier Notifier, logger *zap.Logger) ScheduleService {
	return &scheduleService{
		repo:     repo,
		slots:    slots,
		notifier: notifier,
		loc:      loadLocation(cfg, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// ────────────────────── CreateRegular ──────────────────────

func (s *scheduleService) CreateRegular(ctx context.Context, doctorID string, req *dto.CreateRegularScheduleRequest) (*dto.ScheduleResponse, error) {
	if _, err := s.repo.Doctor.GetByID(ctx, doctorID); err != nil {
		return nil, wrapNotFound(err, ErrDoctorNotFound)
	}
	if err := validateClockRange(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	schedule := s.regularFromRequest(doctorID, req)
	if err := validateScheduleConfig(schedule); err != nil {
		return nil, err
	}
	if err := s.checkConflict(ctx, schedule, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Schedule.Create(ctx, schedule); err != nil {
		s.logger.Error("创建固定排班失败", zap.Error(err))
		return nil, err
	}

	return s.toScheduleResponse(schedule), nil
}

func (s *scheduleService) regularFromRequest(doctorID string, req *dto.CreateRegularScheduleRequest) *model.DoctorSchedule {
	return &model.DoctorSchedule{
		DoctorID:        doctorID,
		Kind:            model.ScheduleRegular,
		DayOfWeek:       req.DayOfWeek,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		SlotDuration:    defaultInt(req.SlotDuration, 30),
		SlotCapacity:    defaultInt(req.SlotCapacity, 1),
		AppointmentType: model.AppointmentType(req.AppointmentType),
		ConsultationFee: req.ConsultationFee,
		DiscountPercent: req.DiscountPercent,
		MinBookingDays:  req.MinBookingDays,
		MaxAdvanceDays:  defaultInt(req.MaxAdvanceDays, 30),
		EffectiveFrom:   s.parseDatePtr(req.EffectiveFrom),
		EffectiveUntil:  s.parseDatePtr(req.EffectiveUntil),
		IsAvailable:     true,
		Version:         1,
		Note:            req.Note,
	}
}

// ────────────────────── CreateRegularBulk ──────────────────────

// CreateRegularBulk 一次提交整周固定排班。批内互查冲突后在单个
// 事务中落库，任一条失败整体回滚。
func (s *scheduleService) CreateRegularBulk(ctx context.Context, doctorID string, req *dto.CreateRegularBulkRequest) ([]dto.ScheduleResponse, error) {
	if _, err := s.repo.Doctor.GetByID(ctx, doctorID); err != nil {
		return nil, wrapNotFound(err, ErrDoctorNotFound)
	}

	schedules := make([]*model.DoctorSchedule, 0, len(req.Items))
	for i := range req.Items {
		item := &req.Items[i]
		if err := validateClockRange(item.StartTime, item.EndTime); err != nil {
			return nil, err
		}
		sch := s.regularFromRequest(doctorID, item)
		if err := validateScheduleConfig(sch); err != nil {
			return nil, err
		}
		for _, prev := range schedules {
			if schedulesConflict(sch, prev) {
				return nil, conflictError(prev)
			}
		}
		schedules = append(schedules, sch)
	}

	err := s.repo.WithTx(ctx, func(txRepo *repository.Repository) error {
		existing, err := txRepo.Schedule.ListByDoctor(ctx, doctorID, model.ScheduleRegular)
		if err != nil {
			return err
		}
		for _, sch := range schedules {
			if hit := findConflict(sch, existing, ""); hit != nil {
				s.logger.Warn("批量排班冲突",
					zap.String("doctor_id", doctorID),
					zap.String("conflict_with", hit.ScheduleID))
				return conflictError(hit)
			}
			if err := txRepo.Schedule.Create(ctx, sch); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("批量创建固定排班",
		zap.String("doctor_id", doctorID),
		zap.Int("count", len(schedules)))
	result := make([]dto.ScheduleResponse, 0, len(schedules))
	for _, sch := range schedules {
		result = append(result, *s.toScheduleResponse(sch))
	}
	return result, nil
}

// ────────────────────── CreateFlexible ──────────────────────

func (s *scheduleService) CreateFlexible(ctx context.Context, doctorID string, req *dto.CreateFlexibleScheduleRequest) (*dto.ScheduleResponse, error) {
	if _, err := s.repo.Doctor.GetByID(ctx, doctorID); err != nil {
		return nil, wrapNotFound(err, ErrDoctorNotFound)
	}
	if err := validateClockRange(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	date, err := time.ParseInLocation("2006-01-02", req.SpecificDate, s.loc)
	if err != nil {
		return nil, ErrInvalidDateRange
	}

	schedule := &model.DoctorSchedule{
		DoctorID:        doctorID,
		Kind:            model.ScheduleFlexible,
		SpecificDate:    &date,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		SlotDuration:    defaultInt(req.SlotDuration, 30),
		SlotCapacity:    defaultInt(req.SlotCapacity, 1),
		AppointmentType: model.AppointmentType(req.AppointmentType),
		ConsultationFee: req.ConsultationFee,
		DiscountPercent: req.DiscountPercent,
		MaxAdvanceDays:  30,
		IsAvailable:     true,
		Version:         1,
		Note:            req.Note,
	}

	if err := validateScheduleConfig(schedule); err != nil {
		return nil, err
	}
	if err := s.checkConflict(ctx, schedule, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Schedule.Create(ctx, schedule); err != nil {
		s.logger.Error("创建弹性排班失败", zap.Error(err))
		return nil, err
	}

	// 弹性排班顶掉当日固定排班：重建号源并硬性取消被顶掉的预约
	if err := s.slots.RestoreDays(ctx, doctorID, []time.Time{date}); err != nil {
		return nil, err
	}
	if err := s.cancelUncoveredAppointments(ctx, doctorID, date, "弹性排班调整，原时段已取消"); err != nil {
		return nil, err
	}

	return s.toScheduleResponse(schedule), nil
}

// ────────────────────── CreateTimeOff ──────────────────────

func (s *scheduleService) CreateTimeOff(ctx context.Context, doctorID string, req *dto.CreateTimeOffRequest) (*dto.ScheduleResponse, error) {
	if _, err := s.repo.Doctor.GetByID(ctx, doctorID); err != nil {
		return nil, wrapNotFound(err, ErrDoctorNotFound)
	}
	if err := validateClockRange(req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	date, err := time.ParseInLocation("2006-01-02", req.SpecificDate, s.loc)
	if err != nil {
		return nil, ErrInvalidDateRange
	}

	schedule := &model.DoctorSchedule{
		DoctorID:     doctorID,
		Kind:         model.ScheduleTimeOff,
		SpecificDate: &date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		IsAvailable:  true,
		Version:      1,
		Note:         req.Note,
	}

	if err := s.checkConflict(ctx, schedule, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Schedule.Create(ctx, schedule); err != nil {
		s.logger.Error("创建请假时段失败", zap.Error(err))
		return nil, err
	}

	// 请假时段内的号源停用，已被顶掉的预约硬性取消
	if err := s.slots.RestoreDays(ctx, doctorID, []time.Time{date}); err != nil {
		return nil, err
	}
	if err := s.cancelUncoveredAppointments(ctx, doctorID, date, "医生请假，该时段已取消"); err != nil {
		return nil, err
	}

	return s.toScheduleResponse(schedule), nil
}

// ────────────────────── GetByID / List ──────────────────────

func (s *scheduleService) GetByID(ctx context.Context, id string) (*dto.ScheduleResponse, error) {
	schedule, err := s.repo.Schedule.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, ErrScheduleNotFound)
	}
	return s.toScheduleResponse(schedule), nil
}

func (s *scheduleService) List(ctx context.Context, doctorID string, req *dto.ScheduleListRequest) ([]dto.ScheduleResponse, error) {
	var kinds []model.ScheduleKind
	if req.Kind != "" {
		kinds = append(kinds, model.ScheduleKind(req.Kind))
	}

	schedules, err := s.repo.Schedule.ListByDoctor(ctx, doctorID, kinds...)
	if err != nil {
		s.logger.Error("查询排班列表失败", zap.String("doctor_id", doctorID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.ScheduleResponse, 0, len(schedules))
	for i := range schedules {
		result = append(result, *s.toScheduleResponse(&schedules[i]))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *scheduleService) Update(ctx context.Context, doctorID, scheduleID string, req *dto.UpdateScheduleRequest) (*dto.ScheduleResponse, error) {
	schedule, err := s.repo.Schedule.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, wrapNotFound(err, ErrScheduleNotFound)
	}
	if schedule.DoctorID != doctorID {
		return nil, ErrNotScheduleOwner
	}

	applyScheduleUpdate(schedule, req, s.loc)
	if err := validateClockRange(schedule.StartTime, schedule.EndTime); err != nil {
		return nil, err
	}
	if err := validateScheduleConfig(schedule); err != nil {
		return nil, err
	}
	if err := s.checkConflict(ctx, schedule, schedule.ScheduleID); err != nil {
		return nil, err
	}

	if err := s.repo.Schedule.Update(ctx, schedule); err != nil {
		s.logger.Error("更新排班失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return nil, err
	}

	// 重建受影响日期的号源；被顶掉的预约只打软冲突标记
	dates, err := s.slots.AffectedDates(ctx, doctorID, schedule)
	if err != nil {
		return nil, err
	}
	if err := s.slots.RestoreDays(ctx, doctorID, dates); err != nil {
		return nil, err
	}
	for _, date := range dates {
		if err := s.markUncoveredAppointments(ctx, doctorID, date, "排班时间已调整，请与患者确认改期或取消"); err != nil {
			return nil, err
		}
	}

	return s.toScheduleResponse(schedule), nil
}

// ────────────────────── Delete ──────────────────────

func (s *scheduleService) Delete(ctx context.Context, doctorID, scheduleID, callerID string) error {
	schedule, err := s.repo.Schedule.GetByID(ctx, scheduleID)
	if err != nil {
		return wrapNotFound(err, ErrScheduleNotFound)
	}
	if schedule.DoctorID != doctorID {
		return ErrNotScheduleOwner
	}

	if err := s.repo.Schedule.Delete(ctx, scheduleID, callerID, "排班删除"); err != nil {
		s.logger.Error("删除排班失败", zap.String("schedule_id", scheduleID), zap.Error(err))
		return err
	}

	// 删除弹性排班恢复固定排班号源，撤销请假恢复被挡掉的号源
	dates, err := s.slots.AffectedDates(ctx, doctorID, schedule)
	if err != nil {
		return err
	}
	if err := s.slots.RestoreDays(ctx, doctorID, dates); err != nil {
		return err
	}
	// 删除后不再被任何排班覆盖的预约硬性取消
	for _, date := range dates {
		if err := s.cancelUncoveredAppointments(ctx, doctorID, date, "排班已删除，该时段预约取消"); err != nil {
			return err
		}
	}
	return nil
}

// ── 预约补偿 ──

// cancelUncoveredAppointments 硬性取消某日不再被任何可预约号源
// 覆盖的未完成预约，同步归还号源名额
func (s *scheduleService) cancelUncoveredAppointments(ctx context.Context, doctorID string, date time.Time, reason string) error {
	uncovered, err := s.uncoveredAppointments(ctx, doctorID, date)
	if err != nil {
		return err
	}

	for i := range uncovered {
		appt := uncovered[i]
		err := s.repo.WithTx(ctx, func(txRepo *repository.Repository) error {
			locked, err := txRepo.Appointment.GetForUpdate(ctx, appt.AppointmentID)
			if err != nil {
				return err
			}
			if !locked.Status.CanTransitionTo(model.StatusCancelled) {
				return nil
			}
			now := s.now()
			locked.Status = model.StatusCancelled
			locked.CancelledAt = &now
			locked.CancellationReason = reason
			locked.CancelledBy = "SYSTEM"
			if err := txRepo.Appointment.Update(ctx, locked); err != nil {
				return err
			}
			return releaseSlotSeat(ctx, txRepo, locked.SlotID)
		})
		if err != nil {
			return err
		}
		s.notifier.AppointmentCancelled(ctx, &appt, "SYSTEM")
	}
	return nil
}

// markUncoveredAppointments 给不再被覆盖的预约打软冲突标记
func (s *scheduleService) markUncoveredAppointments(ctx context.Context, doctorID string, date time.Time, reason string) error {
	uncovered, err := s.uncoveredAppointments(ctx, doctorID, date)
	if err != nil {
		return err
	}

	for i := range uncovered {
		appt := &uncovered[i]
		if appt.IsConflict {
			continue
		}
		appt.IsConflict = true
		appt.ConflictReason = reason
		if err := s.repo.Appointment.Update(ctx, appt); err != nil {
			return err
		}
		s.notifier.AppointmentConflict(ctx, appt, reason)
	}
	return nil
}

// uncoveredAppointments 某日不落在任何候选号源区间内的未完成预约。
// 覆盖判断基于当前排班集合重新推算的候选时段，而非落库号源：
// 被顶掉号源上的预约占着名额，号源本身不会被改写，只能在这里发现。
func (s *scheduleService) uncoveredAppointments(ctx context.Context, doctorID string, date time.Time) ([]model.Appointment, error) {
	y, m, d := date.In(s.loc).Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	appts, err := s.repo.Appointment.ListActiveOverlapping(ctx, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return nil, nil
	}

	candidates, err := s.slots.CandidateSlots(ctx, doctorID, dayStart)
	if err != nil {
		return nil, err
	}

	var uncovered []model.Appointment
	for _, appt := range appts {
		covered := false
		for i := range candidates {
			if !candidates[i].StartTime.After(appt.ScheduledAt) && !candidates[i].EndTime.Before(appt.EndsAt()) {
				covered = true
				break
			}
		}
		if !covered {
			uncovered = append(uncovered, appt)
		}
	}
	return uncovered, nil
}

// ── 内部辅助方法 ──

func (s *scheduleService) checkConflict(ctx context.Context, candidate *model.DoctorSchedule, excludeID string) error {
	existing, err := s.repo.Schedule.ListByDoctor(ctx, candidate.DoctorID, candidate.Kind)
	if err != nil {
		return err
	}
	if hit := findConflict(candidate, existing, excludeID); hit != nil {
		s.logger.Warn("排班冲突",
			zap.String("doctor_id", candidate.DoctorID),
			zap.String("conflict_with", hit.ScheduleID))
		return conflictError(hit)
	}
	return nil
}

var weekdayCN = [...]string{"日", "一", "二", "三", "四", "五", "六"}

// conflictError 在冲突哨兵上附带冲突排班的时段，便于前端精确提示
func conflictError(hit *model.DoctorSchedule) error {
	window := fmt.Sprintf("%s-%s", hit.StartTime, hit.EndTime)
	switch {
	case hit.Kind == model.ScheduleRegular:
		return fmt.Errorf("%w：周%s %s", ErrScheduleConflict, weekdayCN[hit.DayOfWeek%7], window)
	case hit.SpecificDate != nil:
		return fmt.Errorf("%w：%s %s", ErrScheduleConflict, hit.SpecificDate.Format("2006-01-02"), window)
	default:
		return fmt.Errorf("%w：%s", ErrScheduleConflict, window)
	}
}

func (s *scheduleService) parseDatePtr(v *string) *time.Time {
	if v == nil {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", *v, s.loc)
	if err != nil {
		return nil
	}
	return &t
}

func validateClockRange(start, end string) error {
	startMin, err := parseClock(start)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
	}
	endMin, err := parseClock(end)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
	}
	if startMin >= endMin {
		return ErrInvalidTimeRange
	}
	return nil
}

// validateScheduleConfig 校验出号参数，请假时段不出号无需校验。
// 号源时长限制在 5~480 分钟之间且不能超过排班窗口本身。
func validateScheduleConfig(sch *model.DoctorSchedule) error {
	if sch.Kind == model.ScheduleTimeOff {
		return nil
	}
	window := mustClock(sch.EndTime) - mustClock(sch.StartTime)
	if sch.SlotDuration < 5 || sch.SlotDuration > 480 || sch.SlotDuration > window {
		return ErrInvalidSlotDuration
	}
	if sch.MaxAdvanceDays > 0 && sch.MinBookingDays >= sch.MaxAdvanceDays {
		return ErrInvalidBookingWindow
	}
	if sch.EffectiveFrom != nil && sch.EffectiveUntil != nil && !sch.EffectiveFrom.Before(*sch.EffectiveUntil) {
		return ErrInvalidEffectiveDays
	}
	return nil
}

func defaultInt(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func applyScheduleUpdate(schedule *model.DoctorSchedule, req *dto.UpdateScheduleRequest, loc *time.Location) {
	if req.DayOfWeek != nil {
		schedule.DayOfWeek = *req.DayOfWeek
	}
	if req.SpecificDate != nil {
		if t, err := time.ParseInLocation("2006-01-02", *req.SpecificDate, loc); err == nil {
			schedule.SpecificDate = &t
		}
	}
	if req.StartTime != nil {
		schedule.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		schedule.EndTime = *req.EndTime
	}
	if req.SlotDuration != nil {
		schedule.SlotDuration = *req.SlotDuration
	}
	if req.SlotCapacity != nil {
		schedule.SlotCapacity = *req.SlotCapacity
	}
	if req.AppointmentType != nil {
		schedule.AppointmentType = model.AppointmentType(*req.AppointmentType)
	}
	if req.ConsultationFee != nil {
		schedule.ConsultationFee = req.ConsultationFee
	}
	if req.DiscountPercent != nil {
		schedule.DiscountPercent = *req.DiscountPercent
	}
	if req.MinBookingDays != nil {
		schedule.MinBookingDays = *req.MinBookingDays
	}
	if req.MaxAdvanceDays != nil {
		schedule.MaxAdvanceDays = *req.MaxAdvanceDays
	}
	if req.EffectiveFrom != nil {
		if t, err := time.ParseInLocation("2006-01-02", *req.EffectiveFrom, loc); err == nil {
			schedule.EffectiveFrom = &t
		}
	}
	if req.EffectiveUntil != nil {
		if t, err := time.ParseInLocation("2006-01-02", *req.EffectiveUntil, loc); err == nil {
			schedule.EffectiveUntil = &t
		}
	}
	if req.IsAvailable != nil {
		schedule.IsAvailable = *req.IsAvailable
	}
	if req.Note != nil {
		schedule.Note = *req.Note
	}
}

func (s *scheduleService) toScheduleResponse(schedule *model.DoctorSchedule) *dto.ScheduleResponse {
	resp := &dto.ScheduleResponse{
		ID:              schedule.ScheduleID,
		DoctorID:        schedule.DoctorID,
		Kind:            string(schedule.Kind),
		StartTime:       schedule.StartTime,
		EndTime:         schedule.EndTime,
		SlotDuration:    schedule.SlotDuration,
		SlotCapacity:    schedule.SlotCapacity,
		AppointmentType: string(schedule.AppointmentType),
		ConsultationFee: schedule.ConsultationFee,
		DiscountPercent: schedule.DiscountPercent,
		MinBookingDays:  schedule.MinBookingDays,
		MaxAdvanceDays:  schedule.MaxAdvanceDays,
		IsAvailable:     schedule.IsAvailable,
		Version:         schedule.Version,
		Note:            schedule.Note,
		CreatedAt:       schedule.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       schedule.UpdatedAt.Format(time.RFC3339),
	}

	if schedule.Kind == model.ScheduleRegular {
		dow := schedule.DayOfWeek
		resp.DayOfWeek = &dow
	}
	if schedule.SpecificDate != nil {
		d := schedule.SpecificDate.Format("2006-01-02")
		resp.SpecificDate = &d
	}
	if schedule.EffectiveFrom != nil {
		d := schedule.EffectiveFrom.Format("2006-01-02")
		resp.EffectiveFrom = &d
	}
	if schedule.EffectiveUntil != nil {
		d := schedule.EffectiveUntil.Format("2006-01-02")
		resp.EffectiveUntil = &d
	}
	return resp
}

// releaseSlotSeat 归还号源名额并重新放开可约状态，号源已删除时忽略
func releaseSlotSeat(ctx context.Context, txRepo *repository.Repository, slotID *string) error {
	if slotID == nil {
		return nil
	}
	slot, err := txRepo.TimeSlot.GetForUpdate(ctx, *slotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	wasFull := slot.BookedCount >= slot.Capacity
	if slot.BookedCount > 0 {
		slot.BookedCount--
	}
	// 只重新放开因约满而关闭的号源，被更高优先级排班停用的保持停用
	if wasFull && slot.BookedCount < slot.Capacity {
		slot.IsAvailable = true
	}
	return txRepo.TimeSlot.Update(ctx, slot)
}
