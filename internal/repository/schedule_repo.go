package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
	pkgerrors "github.com/minhducn14/dutu-pulmo-be-sub001/pkg/errors"
)

// ScheduleRepository 医生排班数据访问接口
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *model.DoctorSchedule) error
	GetByID(ctx context.Context, id string) (*model.DoctorSchedule, error)
	ListByDoctor(ctx context.Context, doctorID string, kinds ...model.ScheduleKind) ([]model.DoctorSchedule, error)
	ListByDoctorAndDate(ctx context.Context, doctorID string, date time.Time) ([]model.DoctorSchedule, error)
	Update(ctx context.Context, schedule *model.DoctorSchedule) error
	Delete(ctx context.Context, id string, deletedBy, reason string) error
}

type scheduleRepo struct {
	db *gorm.DB
}

// NewScheduleRepo 创建 ScheduleRepository 实例
func NewScheduleRepo(db *gorm.DB) ScheduleRepository {
	return &scheduleRepo{db: db}
}

func (r *scheduleRepo) Create(ctx context.Context, schedule *model.DoctorSchedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

func (r *scheduleRepo) GetByID(ctx context.Context, id string) (*model.DoctorSchedule, error) {
	var schedule model.DoctorSchedule
	err := r.db.WithContext(ctx).
		Preload("Doctor").
		Where("schedule_id = ?", id).
		First(&schedule).Error
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *scheduleRepo) ListByDoctor(ctx context.Context, doctorID string, kinds ...model.ScheduleKind) ([]model.DoctorSchedule, error) {
	var schedules []model.DoctorSchedule
	db := r.db.WithContext(ctx).Where("doctor_id = ?", doctorID)
	if len(kinds) > 0 {
		db = db.Where("kind IN ?", kinds)
	}
	err := db.Order("created_at ASC").Find(&schedules).Error
	return schedules, err
}

// ListByDoctorAndDate 返回某日可能生效的排班：固定排班按星期命中且落在
// 生效区间内，弹性排班与请假按 specific_date 精确命中。
func (r *scheduleRepo) ListByDoctorAndDate(ctx context.Context, doctorID string, date time.Time) ([]model.DoctorSchedule, error) {
	var schedules []model.DoctorSchedule
	day := int(date.Weekday())
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Where(`(kind = ? AND day_of_week = ?
			AND (effective_from IS NULL OR effective_from <= ?)
			AND (effective_until IS NULL OR effective_until >= ?))
			OR (kind IN ? AND specific_date = ?)`,
			model.ScheduleRegular, day, date, date,
			[]model.ScheduleKind{model.ScheduleFlexible, model.ScheduleTimeOff}, date).
		Order("created_at ASC").
		Find(&schedules).Error
	return schedules, err
}

func (r *scheduleRepo) Update(ctx context.Context, schedule *model.DoctorSchedule) error {
	oldVersion := schedule.Version
	result := r.db.WithContext(ctx).
		Model(schedule).
		Where("schedule_id = ? AND version = ?", schedule.ScheduleID, oldVersion).
		Updates(map[string]interface{}{
			"day_of_week":      schedule.DayOfWeek,
			"specific_date":    schedule.SpecificDate,
			"start_time":       schedule.StartTime,
			"end_time":         schedule.EndTime,
			"slot_duration":    schedule.SlotDuration,
			"slot_capacity":    schedule.SlotCapacity,
			"appointment_type": schedule.AppointmentType,
			"consultation_fee": schedule.ConsultationFee,
			"discount_percent": schedule.DiscountPercent,
			"min_booking_days": schedule.MinBookingDays,
			"max_advance_days": schedule.MaxAdvanceDays,
			"effective_from":   schedule.EffectiveFrom,
			"effective_until":  schedule.EffectiveUntil,
			"is_available":     schedule.IsAvailable,
			"note":             schedule.Note,
			"version":          oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	schedule.Version = oldVersion + 1
	return nil
}

func (r *scheduleRepo) Delete(ctx context.Context, id string, deletedBy, reason string) error {
	return r.db.WithContext(ctx).
		Model(&model.DoctorSchedule{}).
		Where("schedule_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by":      deletedBy,
			"deletion_reason": reason,
			"deleted_at":      gorm.Expr("NOW()"),
		}).Error
}
