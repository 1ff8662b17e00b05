package service

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/minhducn14/dutu-pulmo-be-sub001/config"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/repository"
	"github.com/minhducn14/dutu-pulmo-be-sub001/pkg/video"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Profile     ProfileService
	Schedule    ScheduleService
	Slot        SlotService
	Appointment AppointmentService
	Video       VideoService
	Stats       StatsService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	rooms video.RoomProvider,
	calls CallStateStore,
	logger *zap.Logger,
) *Service {
	notifier := NewLogNotifier(logger)
	slotSvc := NewSlotService(cfg, repo, logger)
	return &Service{
		Profile:     NewProfileService(repo, logger),
		Schedule:    NewScheduleService(cfg, repo, slotSvc, notifier, logger),
		Slot:        slotSvc,
		Appointment: NewAppointmentService(cfg, repo, rooms, calls, notifier, logger),
		Video:       NewVideoService(cfg, repo, rooms, calls, logger),
		Stats:       NewStatsService(cfg, repo, logger),
	}
}

// ── 共享辅助 ──

// wrapNotFound 将 gorm 的未找到错误映射为业务哨兵错误
func wrapNotFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
