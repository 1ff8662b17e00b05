package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/dto"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/repository"
)

// 签到窗口：到院就诊 [-30min, +15min]，视频问诊 [-60min, +30min]
const (
	clinicCheckInBefore = 30 * time.Minute
	clinicCheckInAfter  = 15 * time.Minute
	videoCheckInBefore  = 60 * time.Minute
	videoCheckInAfter   = 30 * time.Minute
)

// ────────────────────── ConfirmPayment ──────────────────────

// ConfirmPayment 支付确认：待支付预约记录支付流水后转入已确认。
// 已支付金额直接记为应付金额，部分支付不在本层处理。
// 视频号必须在确认前建好房间，房间创建失败则支付确认整体失败。
func (s *appointmentService) ConfirmPayment(ctx context.Context, appointmentID, patientID string, req *dto.ConfirmPaymentRequest) (*dto.AppointmentResponse, error) {
	var result *model.Appointment
	err := s.repo.WithTx(ctx, func(txRepo *repository.Repository) error {
		appt, err := txRepo.Appointment.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return wrapNotFound(err, ErrAppointmentNotFound)
		}
		if appt.PatientID != patientID {
			return ErrNotParticipant
		}
		if appt.Status != model.StatusPendingPayment {
			return ErrNotPendingPayment
		}

		if appt.AppointmentType == model.TypeVideo && appt.MeetingRoom == "" {
			if err := s.provisionMeetingRoom(ctx, appt); err != nil {
				return err
			}
		}
		appt.Status = model.StatusConfirmed
		appt.PaidAmount = appt.FeeAmount
		appt.PaymentID = &req.PaymentID

		if err := txRepo.Appointment.Update(ctx, appt); err != nil {
			return err
		}
		result = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("支付确认成功",
		zap.String("appointment_number", result.AppointmentNumber),
		zap.String("payment_id", req.PaymentID))
	return s.toAppointmentResponse(result), nil
}

// ────────────────────── CheckIn ──────────────────────

func (s *appointmentService) CheckIn(ctx context.Context, appointmentID, patientID string) (*dto.CheckInResponse, error) {
	var result *model.Appointment
	err := s.repo.WithTx(ctx, func(txRepo *repository.Repository) error {
		appt, err := txRepo.Appointment.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return wrapNotFound(err, ErrAppointmentNotFound)
		}
		if appt.PatientID != patientID {
			return ErrNotParticipant
		}
		if !appt.Status.CanTransitionTo(model.StatusCheckedIn) {
			return ErrInvalidTransition
		}

		now := s.now()
		if !inCheckInWindow(appt, now) {
			return ErrNotCheckInWindow
		}

		appt.Status = model.StatusCheckedIn
		appt.CheckInTime = &now

		// 到院签到领取当日排队序号，视频问诊无需排队
		if appt.AppointmentType == model.TypeInClinic {
			dayStart, dayEnd := s.dayBoundsOf(appt.ScheduledAt)
			queue, err := txRepo.Appointment.NextQueueNumber(ctx, appt.DoctorID, dayStart, dayEnd)
			if err != nil {
				return err
			}
			appt.QueueNumber = &queue
		}

		if err := txRepo.Appointment.Update(ctx, appt); err != nil {
			return err
		}
		result = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("签到成功",
		zap.String("appointment_number", result.AppointmentNumber),
		zap.String("type", string(result.AppointmentType)))
	return &dto.CheckInResponse{
		Appointment: s.toAppointmentResponse(result),
		QueueNumber: result.QueueNumber,
	}, nil
}

// CheckInByNumber 凭预约号签到，供前台扫码或人工录入使用
func (s *appointmentService) CheckInByNumber(ctx context.Context, appointmentNumber, patientID string) (*dto.CheckInResponse, error) {
	appt, err := s.repo.Appointment.GetByNumber(ctx, appointmentNumber)
	if err != nil {
		return nil, wrapNotFound(err, ErrAppointmentNotFound)
	}
	return s.CheckIn(ctx, appt.AppointmentID, patientID)
}

func inCheckInWindow(appt *model.Appointment, now time.Time) bool {
	before, after := clinicCheckInBefore, clinicCheckInAfter
	if appt.AppointmentType == model.TypeVideo {
		before, after = videoCheckInBefore, videoCheckInAfter
	}
	openAt := appt.ScheduledAt.Add(-before)
	closeAt := appt.ScheduledAt.Add(after)
	return !now.Before(openAt) && !now.After(closeAt)
}

// ────────────────────── UpdateStatus ──────────────────────

func (s *appointmentService) UpdateStatus(ctx context.Context, appointmentID, doctorID string, req *dto.UpdateStatusRequest) (*dto.AppointmentResponse, error) {
	target := model.AppointmentStatus(req.Status)

	var result *model.Appointment
	err := s.repo.WithTx(ctx, func(txRepo *repository.Repository) error {
		appt, err := txRepo.Appointment.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return wrapNotFound(err, ErrAppointmentNotFound)
		}
		if appt.DoctorID != doctorID {
			return ErrNotParticipant
		}
		if !appt.Status.CanTransitionTo(target) {
			return ErrInvalidTransition
		}

		// 视频号转入已确认必须持有房间，创建失败则状态更新整体失败
		if target == model.StatusConfirmed && appt.AppointmentType == model.TypeVideo && appt.MeetingRoom == "" {
			if err := s.provisionMeetingRoom(ctx, appt); err != nil {
				return err
			}
		}

		now := s.now()
		appt.Status = target
		switch target {
		case model.StatusCheckedIn:
			appt.CheckInTime = &now
		case model.StatusInProgress:
			appt.StartedAt = &now
		case model.StatusCompleted:
			appt.EndedAt = &now
		case model.StatusCancelled:
			appt.CancelledAt = &now
			appt.CancelledBy = "DOCTOR"
		}
		if req.Notes != "" {
			appt.DoctorNotes = req.Notes
		}

		if err := txRepo.Appointment.Update(ctx, appt); err != nil {
			return err
		}
		if target == model.StatusCancelled {
			if err := releaseSlotSeat(ctx, txRepo, appt.SlotID); err != nil {
				return err
			}
		}
		result = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 视频问诊完结后房间与通话状态随之清理
	if result.AppointmentType == model.TypeVideo &&
		(result.Status == model.StatusCompleted || result.Status == model.StatusCancelled) {
		s.teardownMeetingRoom(ctx, result)
	}

	s.logger.Info("预约状态更新",
		zap.String("appointment_number", result.AppointmentNumber),
		zap.String("status", string(result.Status)))
	return s.toAppointmentResponse(result), nil
}

// ────────────────────── Cancel ──────────────────────

func (s *appointmentService) Cancel(ctx context.Context, appointmentID, callerID, callerRole string, req *dto.CancelAppointmentRequest) error {
	var cancelled *model.Appointment
	err := s.repo.WithTx(ctx, func(txRepo *repository.Repository) error {
		appt, err := txRepo.Appointment.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return wrapNotFound(err, ErrAppointmentNotFound)
		}
		if appt.PatientID != callerID && appt.DoctorID != callerID {
			return ErrNotParticipant
		}
		if !appt.Status.CanTransitionTo(model.StatusCancelled) {
			return ErrCannotCancel
		}

		now := s.now()
		appt.Status = model.StatusCancelled
		appt.CancelledAt = &now
		appt.CancellationReason = req.Reason
		appt.CancelledBy = cancelActor(appt, callerID, callerRole)

		if err := txRepo.Appointment.Update(ctx, appt); err != nil {
			return err
		}
		if err := releaseSlotSeat(ctx, txRepo, appt.SlotID); err != nil {
			return err
		}
		cancelled = appt
		return nil
	})
	if err != nil {
		return err
	}

	// 视频房间与通话状态尽力清理，失败不影响取消结果
	if cancelled.AppointmentType == model.TypeVideo {
		s.teardownMeetingRoom(ctx, cancelled)
	}

	s.logger.Info("预约已取消",
		zap.String("appointment_number", cancelled.AppointmentNumber),
		zap.String("cancelled_by", cancelled.CancelledBy))
	s.notifier.AppointmentCancelled(ctx, cancelled, cancelled.CancelledBy)
	return nil
}

func cancelActor(appt *model.Appointment, callerID, callerRole string) string {
	if callerRole == "doctor" || appt.DoctorID == callerID {
		return "DOCTOR"
	}
	return "PATIENT"
}

// ────────────────────── Reschedule ──────────────────────

// rescheduleAllowed 允许改期的起始状态
var rescheduleAllowed = map[model.AppointmentStatus]bool{
	model.StatusPendingPayment: true,
	model.StatusPending:        true,
	model.StatusConfirmed:      true,
}

// Reschedule 改期：同一条预约原地改挂新号源，保留预约号、费用与
// 支付进度，原号源归还名额。加锁顺序固定为 预约 → 原号源 → 新号源，
// 任一校验失败整个事务回滚，预约保持原状。
func (s *appointmentService) Reschedule(ctx context.Context, appointmentID, patientID string, req *dto.RescheduleRequest) (*dto.AppointmentResponse, error) {
	var result *model.Appointment
	var oldRoom string
	err := s.repo.WithTx(ctx, func(txRepo *repository.Repository) error {
		appt, err := txRepo.Appointment.GetForUpdate(ctx, appointmentID)
		if err != nil {
			return wrapNotFound(err, ErrAppointmentNotFound)
		}
		if appt.PatientID != patientID {
			return ErrNotParticipant
		}
		if !rescheduleAllowed[appt.Status] {
			return ErrCannotReschedule
		}
		if appt.SlotID != nil && *appt.SlotID == req.NewSlotID {
			return ErrSameSlotReschedule
		}

		if appt.SlotID != nil {
			if _, err := txRepo.TimeSlot.GetForUpdate(ctx, *appt.SlotID); err != nil && !isNotFound(err) {
				return err
			}
		}

		newSlot, err := txRepo.TimeSlot.GetForUpdate(ctx, req.NewSlotID)
		if err != nil {
			return wrapNotFound(err, ErrSlotNotFound)
		}
		if !newSlot.IsAvailable {
			return ErrSlotUnavailable
		}
		if !newSlot.HasFreeCapacity() {
			return ErrSlotFull
		}
		if !newSlot.StartTime.After(s.now()) {
			return ErrSlotInPast
		}
		if newSlot.DoctorID != appt.DoctorID {
			return ErrDoctorMismatch
		}
		dup, err := txRepo.Appointment.HasActiveOnSlot(ctx, patientID, newSlot.SlotID)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateBooking
		}
		if len(newSlot.AllowedTypes) == 0 {
			return ErrSlotNoTypeConfig
		}
		if !newSlot.AllowedTypes.Contains(string(appt.AppointmentType)) {
			return ErrNoAppointmentType
		}

		// 归还原号源名额，原视频房间随原时刻作废
		if err := releaseSlotSeat(ctx, txRepo, appt.SlotID); err != nil {
			return err
		}
		oldRoom = appt.MeetingRoom
		appt.MeetingRoomID = ""
		appt.MeetingRoom = ""
		appt.MeetingURL = ""

		appt.SlotID = &newSlot.SlotID
		appt.ScheduledAt = newSlot.StartTime
		appt.DurationMinutes = int(newSlot.EndTime.Sub(newSlot.StartTime).Minutes())
		if err := txRepo.Appointment.Update(ctx, appt); err != nil {
			return err
		}

		newSlot.BookedCount++
		if !newSlot.HasFreeCapacity() {
			newSlot.IsAvailable = false
		}
		if err := txRepo.TimeSlot.Update(ctx, newSlot); err != nil {
			return err
		}

		result = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	if oldRoom != "" && s.rooms != nil {
		if err := s.rooms.DeleteRoom(ctx, oldRoom); err != nil {
			s.logger.Warn("销毁视频房间失败",
				zap.String("room", oldRoom), zap.Error(err))
		}
	}
	if result.Status == model.StatusConfirmed && result.AppointmentType == model.TypeVideo {
		s.ensureMeetingRoom(ctx, result)
	}

	s.logger.Info("预约改期成功",
		zap.String("appointment_number", result.AppointmentNumber),
		zap.Time("new_time", result.ScheduledAt),
		zap.String("reason", req.Reason))
	s.notifier.AppointmentRescheduled(ctx, result)
	return s.toAppointmentResponse(result), nil
}

// ── 内部辅助方法 ──

func (s *appointmentService) dayBoundsOf(t time.Time) (time.Time, time.Time) {
	y, m, d := t.In(s.loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}
