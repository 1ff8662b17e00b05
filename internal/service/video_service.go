package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/minhducn14/dutu-pulmo-be-sub001/config"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/dto"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/repository"
	"github.com/minhducn14/dutu-pulmo-be-sub001/pkg/video"
)

// ── 视频问诊模块业务错误 ──

var (
	ErrNotVideoAppointment = errors.New("该预约不是视频问诊")
	ErrCallNotJoinable     = errors.New("当前状态无法加入视频通话")
)

// CallStateStore 通话状态存储
// 多实例部署下由 Redis 承载，记录 用户 → 当前通话预约 的映射
type CallStateStore interface {
	SetCurrentCall(ctx context.Context, userID, appointmentID string) error
	GetCurrentCall(ctx context.Context, userID string) (string, error)
	ClearCurrentCall(ctx context.Context, userID string) error
	ClearCallsForAppointment(ctx context.Context, appointmentID string, userIDs ...string) error
}

// VideoService 视频问诊业务接口
//
// 加入通话会按身份自动推进预约状态：
//   - 医生加入 CONFIRMED 预约 → IN_PROGRESS
//   - 患者加入 CONFIRMED 预约 → CHECKED_IN（视频签到）
//   - 医生加入 CHECKED_IN 预约 → IN_PROGRESS
type VideoService interface {
	Join(ctx context.Context, appointmentID, userID, role string) (*dto.JoinCallResponse, error)
	Leave(ctx context.Context, appointmentID, userID string) error
	End(ctx context.Context, appointmentID, doctorID string) (*dto.AppointmentResponse, error)
	CallStatus(ctx context.Context, appointmentID, userID string) (*dto.CallStatusResponse, error)
}

type videoService struct {
	repo   *repository.Repository
	rooms  video.RoomProvider
	calls  CallStateStore
	cfg    *config.Config
	logger *zap.Logger
	now    func() time.Time
}

// NewVideoService 创建 VideoService 实例
func NewVideoService(cfg *config.Config, repo *repository.Repository, rooms video.RoomProvider, calls CallStateStore, logger *zap.Logger) VideoService {
	return &videoService{
		repo:   repo,
		rooms:  rooms,
		calls:  calls,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// ────────────────────── Join ──────────────────────

func (s *videoService) Join(ctx context.Context, appointmentID, userID, role string) (*dto.JoinCallResponse, error) {
	var appt *model.Appointment
	err := s.repo.WithTx(ctx, func(txRepo *repository.Repository) error {
		locked, err := txRepo.Appointment.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return wrapNotFound(err, ErrAppointmentNotFound)
		}
		if locked.AppointmentType != model.TypeVideo {
			return ErrNotVideoAppointment
		}
		if locked.PatientID != userID && locked.DoctorID != userID {
			return ErrNotParticipant
		}

		switch locked.Status {
		case model.StatusConfirmed, model.StatusCheckedIn, model.StatusInProgress:
		default:
			return ErrCallNotJoinable
		}

		s.autoAdvance(locked, role)
		if err := txRepo.Appointment.Update(ctx, locked); err != nil {
			return err
		}
		appt = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	room, err := s.ensureRoom(ctx, appt)
	if err != nil {
		s.logger.Error("获取视频房间失败",
			zap.String("appointment_id", appointmentID), zap.Error(err))
		return nil, err
	}

	token, err := s.rooms.CreateMeetingToken(ctx, room.Name, userID, role == "doctor")
	if err != nil {
		s.logger.Error("签发视频 token 失败",
			zap.String("appointment_id", appointmentID), zap.Error(err))
		return nil, err
	}

	// 加入新通话前自动结束上一个通话
	if current, err := s.calls.GetCurrentCall(ctx, userID); err == nil && current != "" && current != appointmentID {
		if err := s.calls.ClearCurrentCall(ctx, userID); err != nil {
			s.logger.Warn("清理旧通话状态失败", zap.String("user_id", userID), zap.Error(err))
		}
	}
	if err := s.calls.SetCurrentCall(ctx, userID, appointmentID); err != nil {
		s.logger.Warn("记录通话状态失败", zap.String("user_id", userID), zap.Error(err))
	}

	s.logger.Info("加入视频通话",
		zap.String("appointment_number", appt.AppointmentNumber),
		zap.String("role", role),
		zap.String("status", string(appt.Status)))
	return &dto.JoinCallResponse{
		RoomURL:      room.URL,
		MeetingToken: token,
		Status:       string(appt.Status),
	}, nil
}

// autoAdvance 依参会身份推进状态机
func (s *videoService) autoAdvance(appt *model.Appointment, role string) {
	now := s.now()
	switch {
	case role == "doctor" && appt.Status == model.StatusConfirmed:
		appt.Status = model.StatusInProgress
		appt.StartedAt = &now
	case role == "doctor" && appt.Status == model.StatusCheckedIn:
		appt.Status = model.StatusInProgress
		appt.StartedAt = &now
	case role != "doctor" && appt.Status == model.StatusConfirmed:
		appt.Status = model.StatusCheckedIn
		appt.CheckInTime = &now
	}
}

func (s *videoService) ensureRoom(ctx context.Context, appt *model.Appointment) (*video.Room, error) {
	roomName := appt.MeetingRoom
	if roomName == "" {
		roomName = fmt.Sprintf("%s-%s", s.cfg.Video.RoomPrefix, strings.ToLower(appt.AppointmentID))
	}
	room, err := s.rooms.GetOrCreateRoom(ctx, roomName)
	if err != nil {
		return nil, err
	}
	if appt.MeetingRoom != room.Name || appt.MeetingURL != room.URL {
		appt.MeetingRoomID = room.ID
		appt.MeetingRoom = room.Name
		appt.MeetingURL = room.URL
		if err := s.repo.Appointment.Update(ctx, appt); err != nil {
			s.logger.Warn("保存视频房间信息失败", zap.Error(err))
		}
	}
	return room, nil
}

// ────────────────────── Leave ──────────────────────

func (s *videoService) Leave(ctx context.Context, appointmentID, userID string) error {
	current, err := s.calls.GetCurrentCall(ctx, userID)
	if err != nil {
		return err
	}
	if current != appointmentID {
		return nil
	}
	return s.calls.ClearCurrentCall(ctx, userID)
}

// ────────────────────── CallStatus ──────────────────────

// CallStatus 查询双方是否在线，供客户端轮询通话状态
func (s *videoService) CallStatus(ctx context.Context, appointmentID, userID string) (*dto.CallStatusResponse, error) {
	appt, err := s.repo.Appointment.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, wrapNotFound(err, ErrAppointmentNotFound)
	}
	if appt.AppointmentType != model.TypeVideo {
		return nil, ErrNotVideoAppointment
	}
	if appt.PatientID != userID && appt.DoctorID != userID {
		return nil, ErrNotParticipant
	}

	resp := &dto.CallStatusResponse{
		AppointmentStatus: string(appt.Status),
		MeetingURL:        appt.MeetingURL,
	}
	if current, err := s.calls.GetCurrentCall(ctx, appt.PatientID); err == nil {
		resp.PatientInCall = current == appointmentID
	}
	if current, err := s.calls.GetCurrentCall(ctx, appt.DoctorID); err == nil {
		resp.DoctorInCall = current == appointmentID
	}
	return resp, nil
}

// ────────────────────── End ──────────────────────

// End 医生结束问诊：IN_PROGRESS → COMPLETED，销毁房间并清理通话状态
func (s *videoService) End(ctx context.Context, appointmentID, doctorID string) (*dto.AppointmentResponse, error) {
	var appt *model.Appointment
	err := s.repo.WithTx(ctx, func(txRepo *repository.Repository) error {
		locked, err := txRepo.Appointment.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return wrapNotFound(err, ErrAppointmentNotFound)
		}
		if locked.DoctorID != doctorID {
			return ErrNotParticipant
		}
		if !locked.Status.CanTransitionTo(model.StatusCompleted) {
			return ErrInvalidTransition
		}

		now := s.now()
		locked.Status = model.StatusCompleted
		locked.EndedAt = &now
		if err := txRepo.Appointment.Update(ctx, locked); err != nil {
			return err
		}
		appt = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	if appt.MeetingRoom != "" {
		if err := s.rooms.DeleteRoom(ctx, appt.MeetingRoom); err != nil {
			s.logger.Warn("销毁视频房间失败", zap.String("room", appt.MeetingRoom), zap.Error(err))
		}
	}
	if err := s.calls.ClearCallsForAppointment(ctx, appointmentID, appt.PatientID, appt.DoctorID); err != nil {
		s.logger.Warn("清理通话状态失败", zap.Error(err))
	}

	s.logger.Info("视频问诊结束", zap.String("appointment_number", appt.AppointmentNumber))
	resp := toVideoAppointmentResponse(appt)
	return resp, nil
}

// toVideoAppointmentResponse 与 appointmentService 的响应转换保持一致
func toVideoAppointmentResponse(appt *model.Appointment) *dto.AppointmentResponse {
	resp := &dto.AppointmentResponse{
		ID:                appt.AppointmentID,
		AppointmentNumber: appt.AppointmentNumber,
		PatientID:         appt.PatientID,
		DoctorID:          appt.DoctorID,
		SlotID:            appt.SlotID,
		ScheduledAt:       appt.ScheduledAt.Format(time.RFC3339),
		DurationMinutes:   appt.DurationMinutes,
		Status:            string(appt.Status),
		AppointmentType:   string(appt.AppointmentType),
		FeeAmount:         appt.FeeAmount,
		PaidAmount:        appt.PaidAmount,
		MeetingURL:        appt.MeetingURL,
		CreatedAt:         appt.CreatedAt.Format(time.RFC3339),
	}
	return resp
}
