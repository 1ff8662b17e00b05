package handler

import "github.com/minhducn14/dutu-pulmo-be-sub001/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Schedule    *ScheduleHandler
	Slot        *SlotHandler
	Appointment *AppointmentHandler
	Video       *VideoHandler
	Stats       *StatsHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Schedule:    NewScheduleHandler(svc.Schedule, svc.Profile),
		Slot:        NewSlotHandler(svc.Slot, svc.Profile),
		Appointment: NewAppointmentHandler(svc.Appointment, svc.Profile),
		Video:       NewVideoHandler(svc.Video, svc.Profile),
		Stats:       NewStatsHandler(svc.Stats, svc.Profile),
	}
}
