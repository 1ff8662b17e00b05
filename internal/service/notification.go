package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
)

// Notifier 预约事件通知接口
// 当前实现仅记录日志，短信/推送渠道接入后替换实现即可
type Notifier interface {
	AppointmentBooked(ctx context.Context, appt *model.Appointment)
	AppointmentCancelled(ctx context.Context, appt *model.Appointment, cancelledBy string)
	AppointmentRescheduled(ctx context.Context, appt *model.Appointment)
	AppointmentConflict(ctx context.Context, appt *model.Appointment, reason string)
}

type logNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 创建日志实现的 Notifier
func NewLogNotifier(logger *zap.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) AppointmentBooked(_ context.Context, appt *model.Appointment) {
	n.logger.Info("通知: 预约成功",
		zap.String("appointment_number", appt.AppointmentNumber),
		zap.String("patient_id", appt.PatientID),
		zap.Time("scheduled_at", appt.ScheduledAt))
}

func (n *logNotifier) AppointmentCancelled(_ context.Context, appt *model.Appointment, cancelledBy string) {
	n.logger.Info("通知: 预约取消",
		zap.String("appointment_number", appt.AppointmentNumber),
		zap.String("cancelled_by", cancelledBy))
}

func (n *logNotifier) AppointmentRescheduled(_ context.Context, appt *model.Appointment) {
	n.logger.Info("通知: 预约改期",
		zap.String("appointment_number", appt.AppointmentNumber),
		zap.Time("new_time", appt.ScheduledAt))
}

func (n *logNotifier) AppointmentConflict(_ context.Context, appt *model.Appointment, reason string) {
	n.logger.Warn("通知: 预约与排班冲突",
		zap.String("appointment_number", appt.AppointmentNumber),
		zap.String("reason", reason))
}
