package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/minhducn14/dutu-pulmo-be-sub001/config"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/dto"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/repository"
	"github.com/minhducn14/dutu-pulmo-be-sub001/pkg/video"
)

// ── 预约模块业务错误 ──

var (
	ErrAppointmentNotFound = errors.New("预约不存在")
	ErrPatientNotFound     = errors.New("患者不存在")
	ErrSlotUnavailable     = errors.New("号源已停用")
	ErrSlotFull            = errors.New("号源已约满")
	ErrSlotInPast          = errors.New("号源时间已过，无法预约")
	ErrDuplicateBooking    = errors.New("您在该时段已有未完成的预约")
	ErrSlotNoTypeConfig    = errors.New("号源未配置可预约的就诊类型")
	ErrNoAppointmentType   = errors.New("该号源不支持所选就诊类型")
	ErrDoctorMismatch      = errors.New("改期号源不属于原预约医生")
	ErrMeetingRoomFailed   = errors.New("创建视频房间失败")
	ErrInvalidTransition   = errors.New("当前状态不允许该操作")
	ErrNotPendingPayment   = errors.New("该预约不在待支付状态")
	ErrNotCheckInWindow    = errors.New("未到签到时间或已超过签到截止时间")
	ErrCannotCancel        = errors.New("当前状态的预约无法取消")
	ErrCannotReschedule    = errors.New("当前状态的预约无法改期")
	ErrSameSlotReschedule  = errors.New("改期目标号源与原号源相同")
	ErrNotParticipant      = errors.New("您不是该预约的参与者")
)

// AppointmentService 预约业务接口
//
// 挂号在单个数据库事务内完成：号源行加 FOR UPDATE 锁，重复预约
// 检查加 FOR SHARE 锁，校验按 停用 → 约满 → 过期 → 重复 → 类型
// 的顺序快速失败。免费号直接确认，收费号进入待支付。
type AppointmentService interface {
	Book(ctx context.Context, patientID string, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error)
	GetByID(ctx context.Context, id string) (*dto.AppointmentResponse, error)
	ListByPatient(ctx context.Context, patientID string, req *dto.AppointmentListRequest) ([]dto.AppointmentResponse, int64, error)
	ListByDoctor(ctx context.Context, doctorID string, req *dto.AppointmentListRequest) ([]dto.AppointmentResponse, int64, error)
	ConfirmPayment(ctx context.Context, appointmentID, patientID string, req *dto.ConfirmPaymentRequest) (*dto.AppointmentResponse, error)
	CheckIn(ctx context.Context, appointmentID, patientID string) (*dto.CheckInResponse, error)
	CheckInByNumber(ctx context.Context, appointmentNumber, patientID string) (*dto.CheckInResponse, error)
	UpdateStatus(ctx context.Context, appointmentID, doctorID string, req *dto.UpdateStatusRequest) (*dto.AppointmentResponse, error)
	Cancel(ctx context.Context, appointmentID, callerID, callerRole string, req *dto.CancelAppointmentRequest) error
	Reschedule(ctx context.Context, appointmentID, patientID string, req *dto.RescheduleRequest) (*dto.AppointmentResponse, error)
}

type appointmentService struct {
	repo     *repository.Repository
	rooms    video.RoomProvider
	calls    CallStateStore
	notifier Notifier
	cfg      *config.Config
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewAppointmentService 创建 AppointmentService 实例
func NewAppointmentService(cfg *config.Config, repo *repository.Repository, rooms video.RoomProvider, calls CallStateStore, notifier Notifier, logger *zap.Logger) AppointmentService {
	return &appointmentService{
		repo:     repo,
		rooms:    rooms,
		calls:    calls,
		notifier: notifier,
		cfg:      cfg,
		loc:      loadLocation(cfg, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// ────────────────────── Book ──────────────────────

func (s *appointmentService) Book(ctx context.Context, patientID string, req *dto.BookAppointmentRequest) (*dto.AppointmentResponse, error) {
	patient, err := s.repo.Patient.GetByID(ctx, patientID)
	if err != nil {
		return nil, wrapNotFound(err, ErrPatientNotFound)
	}
	apptType := model.AppointmentType(req.AppointmentType)

	var appt *model.Appointment
	err = s.repo.WithTx(ctx, func(txRepo *repository.Repository) error {
		slot, err := txRepo.TimeSlot.GetForUpdate(ctx, req.SlotID)
		if err != nil {
			return wrapNotFound(err, ErrSlotNotFound)
		}

		// 快速失败：停用 → 约满 → 过期 → 重复 → 类型
		if !slot.IsAvailable {
			return ErrSlotUnavailable
		}
		if !slot.HasFreeCapacity() {
			return ErrSlotFull
		}
		if !slot.StartTime.After(s.now()) {
			return ErrSlotInPast
		}
		dup, err := txRepo.Appointment.HasActiveOnSlot(ctx, patientID, slot.SlotID)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateBooking
		}
		if len(slot.AllowedTypes) == 0 {
			return ErrSlotNoTypeConfig
		}
		if !slot.AllowedTypes.Contains(string(apptType)) {
			return ErrNoAppointmentType
		}

		fee, err := s.resolveFee(ctx, txRepo, slot)
		if err != nil {
			return err
		}

		status := model.StatusPendingPayment
		if fee == 0 {
			status = model.StatusConfirmed
		}

		appt = &model.Appointment{
			AppointmentNumber: generateAppointmentNumber(),
			PatientID:         patientID,
			DoctorID:          slot.DoctorID,
			SlotID:            &slot.SlotID,
			ScheduledAt:       slot.StartTime,
			DurationMinutes:   int(slot.EndTime.Sub(slot.StartTime).Minutes()),
			Status:            status,
			AppointmentType:   apptType,
			FeeAmount:         fee,
			ChiefComplaint:    req.ChiefComplaint,
			Symptoms:          model.StringArray(req.Symptoms),
			PatientNotes:      req.PatientNotes,
		}
		if err := txRepo.Appointment.Create(ctx, appt); err != nil {
			return err
		}

		slot.BookedCount++
		if !slot.HasFreeCapacity() {
			slot.IsAvailable = false
		}
		return txRepo.TimeSlot.Update(ctx, slot)
	})
	if err != nil {
		return nil, err
	}

	// 免费视频号直接确认，尽力预建房间，失败不影响预约
	if appt.Status == model.StatusConfirmed && appt.AppointmentType == model.TypeVideo {
		s.ensureMeetingRoom(ctx, appt)
	}

	s.logger.Info("挂号成功",
		zap.String("appointment_number", appt.AppointmentNumber),
		zap.String("patient_id", patientID),
		zap.String("status", string(appt.Status)))
	s.notifier.AppointmentBooked(ctx, appt)

	appt.Patient = patient
	return s.toAppointmentResponse(appt), nil
}

// resolveFee 费用来源优先级：排班费用 > 医生默认费用 > 免费；
// 折扣按百分比向下取整
func (s *appointmentService) resolveFee(ctx context.Context, txRepo *repository.Repository, slot *model.TimeSlot) (int64, error) {
	var base int64
	discount := 0

	if slot.ScheduleID != nil {
		schedule, err := txRepo.Schedule.GetByID(ctx, *slot.ScheduleID)
		if err == nil {
			discount = schedule.DiscountPercent
			if schedule.ConsultationFee != nil {
				base = *schedule.ConsultationFee
			}
		} else if !isNotFound(err) {
			return 0, err
		}
	}

	if base == 0 {
		doctor, err := txRepo.Doctor.GetByID(ctx, slot.DoctorID)
		if err != nil {
			return 0, wrapNotFound(err, ErrDoctorNotFound)
		}
		if doctor.DefaultFee != nil {
			base = *doctor.DefaultFee
		}
	}

	if discount > 0 && discount <= 100 {
		base = base * int64(100-discount) / 100
	}
	return base, nil
}

// provisionMeetingRoom 创建视频房间并回填房间字段，由调用方负责落库。
// 付费确认等关键转移要求房间创建成功，失败时返回错误中止转移。
func (s *appointmentService) provisionMeetingRoom(ctx context.Context, appt *model.Appointment) error {
	if s.rooms == nil {
		return ErrMeetingRoomFailed
	}
	roomName := fmt.Sprintf("%s-%s", s.cfg.Video.RoomPrefix, strings.ToLower(appt.AppointmentID))
	room, err := s.rooms.GetOrCreateRoom(ctx, roomName)
	if err != nil {
		s.logger.Error("创建视频房间失败",
			zap.String("appointment_id", appt.AppointmentID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrMeetingRoomFailed, err)
	}
	appt.MeetingRoomID = room.ID
	appt.MeetingRoom = room.Name
	appt.MeetingURL = room.URL
	return nil
}

// ensureMeetingRoom 尽力预建房间，失败仅记录日志
func (s *appointmentService) ensureMeetingRoom(ctx context.Context, appt *model.Appointment) {
	if appt.MeetingRoom != "" {
		return
	}
	if err := s.provisionMeetingRoom(ctx, appt); err != nil {
		s.logger.Warn("预建视频房间失败",
			zap.String("appointment_id", appt.AppointmentID),
			zap.Error(err))
		return
	}
	if err := s.repo.Appointment.Update(ctx, appt); err != nil {
		s.logger.Warn("保存视频房间信息失败", zap.Error(err))
	}
}

// teardownMeetingRoom 尽力销毁房间并清理双方通话状态，失败仅记录日志
func (s *appointmentService) teardownMeetingRoom(ctx context.Context, appt *model.Appointment) {
	if appt.MeetingRoom != "" && s.rooms != nil {
		if err := s.rooms.DeleteRoom(ctx, appt.MeetingRoom); err != nil {
			s.logger.Warn("销毁视频房间失败",
				zap.String("room", appt.MeetingRoom), zap.Error(err))
		}
	}
	if s.calls != nil {
		if err := s.calls.ClearCallsForAppointment(ctx, appt.AppointmentID, appt.PatientID, appt.DoctorID); err != nil {
			s.logger.Warn("清理通话状态失败", zap.Error(err))
		}
	}
}

// ────────────────────── GetByID / List ──────────────────────

func (s *appointmentService) GetByID(ctx context.Context, id string) (*dto.AppointmentResponse, error) {
	appt, err := s.repo.Appointment.GetByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, ErrAppointmentNotFound)
	}
	return s.toAppointmentResponse(appt), nil
}

func (s *appointmentService) ListByPatient(ctx context.Context, patientID string, req *dto.AppointmentListRequest) ([]dto.AppointmentResponse, int64, error) {
	return s.list(ctx, repository.AppointmentQuery{PatientID: patientID}, req)
}

func (s *appointmentService) ListByDoctor(ctx context.Context, doctorID string, req *dto.AppointmentListRequest) ([]dto.AppointmentResponse, int64, error) {
	return s.list(ctx, repository.AppointmentQuery{DoctorID: doctorID}, req)
}

func (s *appointmentService) list(ctx context.Context, q repository.AppointmentQuery, req *dto.AppointmentListRequest) ([]dto.AppointmentResponse, int64, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = 20
	}
	q.Offset = (page - 1) * pageSize
	q.Limit = pageSize
	q.Status = model.AppointmentStatus(req.Status)

	if req.StartDate != "" {
		if t, err := time.ParseInLocation("2006-01-02", req.StartDate, s.loc); err == nil {
			q.From = &t
		}
	}
	if req.EndDate != "" {
		if t, err := time.ParseInLocation("2006-01-02", req.EndDate, s.loc); err == nil {
			end := t.AddDate(0, 0, 1)
			q.To = &end
		}
	}

	appts, total, err := s.repo.Appointment.List(ctx, q)
	if err != nil {
		s.logger.Error("查询预约列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.AppointmentResponse, 0, len(appts))
	for i := range appts {
		result = append(result, *s.toAppointmentResponse(&appts[i]))
	}
	return result, total, nil
}

// ── 内部辅助方法 ──

// generateAppointmentNumber 预约号：APT-{毫秒时间戳 base36}-{随机段}
func generateAppointmentNumber() string {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	rand := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("APT-%s-%s", ts, rand)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func (s *appointmentService) toAppointmentResponse(appt *model.Appointment) *dto.AppointmentResponse {
	resp := &dto.AppointmentResponse{
		ID:                 appt.AppointmentID,
		AppointmentNumber:  appt.AppointmentNumber,
		PatientID:          appt.PatientID,
		DoctorID:           appt.DoctorID,
		SlotID:             appt.SlotID,
		ScheduledAt:        appt.ScheduledAt.Format(time.RFC3339),
		DurationMinutes:    appt.DurationMinutes,
		Status:             string(appt.Status),
		AppointmentType:    string(appt.AppointmentType),
		FeeAmount:          appt.FeeAmount,
		PaidAmount:         appt.PaidAmount,
		QueueNumber:        appt.QueueNumber,
		CancellationReason: appt.CancellationReason,
		CancelledBy:        appt.CancelledBy,
		IsConflict:         appt.IsConflict,
		ConflictReason:     appt.ConflictReason,
		MeetingURL:         appt.MeetingURL,
		ChiefComplaint:     appt.ChiefComplaint,
		Symptoms:           appt.Symptoms,
		PatientNotes:       appt.PatientNotes,
		DoctorNotes:        appt.DoctorNotes,
		CreatedAt:          appt.CreatedAt.Format(time.RFC3339),
	}

	if appt.CheckInTime != nil {
		v := appt.CheckInTime.Format(time.RFC3339)
		resp.CheckInTime = &v
	}
	if appt.CancelledAt != nil {
		v := appt.CancelledAt.Format(time.RFC3339)
		resp.CancelledAt = &v
	}
	if appt.Patient != nil {
		resp.Patient = &dto.PersonBrief{ID: appt.Patient.PatientID, Name: appt.Patient.Name}
	}
	if appt.Doctor != nil {
		resp.Doctor = &dto.PersonBrief{ID: appt.Doctor.DoctorID, Name: appt.Doctor.Name}
	}
	return resp
}
