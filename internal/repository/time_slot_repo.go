package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
)

// TimeSlotRepository 号源时段数据访问接口
type TimeSlotRepository interface {
	Create(ctx context.Context, slot *model.TimeSlot) error
	BatchCreate(ctx context.Context, slots []model.TimeSlot) error
	GetByID(ctx context.Context, id string) (*model.TimeSlot, error)
	// GetForUpdate 以 FOR UPDATE 行锁读取号源，必须在事务内调用。
	GetForUpdate(ctx context.Context, id string) (*model.TimeSlot, error)
	ListByDoctorAndRange(ctx context.Context, doctorID string, from, to time.Time, onlyAvailable bool) ([]model.TimeSlot, error)
	Update(ctx context.Context, slot *model.TimeSlot) error
	// DisableUnbookedExcept 将某医生在 [dayStart, dayEnd) 内不在
	// keepSlotIDs 中且无人预约的号源置为不可用，返回影响行数。
	// keepSlotIDs 为空表示该日没有任何应保留的号源，整日停用。
	DisableUnbookedExcept(ctx context.Context, doctorID string, dayStart, dayEnd time.Time, keepSlotIDs []string) (int64, error)
	Delete(ctx context.Context, id string, deletedBy string) error
}

type timeSlotRepo struct {
	db *gorm.DB
}

// NewTimeSlotRepo 创建 TimeSlotRepository 实例
func NewTimeSlotRepo(db *gorm.DB) TimeSlotRepository {
	return &timeSlotRepo{db: db}
}

func (r *timeSlotRepo) Create(ctx context.Context, slot *model.TimeSlot) error {
	return r.db.WithContext(ctx).Create(slot).Error
}

func (r *timeSlotRepo) BatchCreate(ctx context.Context, slots []model.TimeSlot) error {
	if len(slots) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&slots).Error
}

func (r *timeSlotRepo) GetByID(ctx context.Context, id string) (*model.TimeSlot, error) {
	var slot model.TimeSlot
	err := r.db.WithContext(ctx).
		Where("slot_id = ?", id).
		First(&slot).Error
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *timeSlotRepo) GetForUpdate(ctx context.Context, id string) (*model.TimeSlot, error) {
	var slot model.TimeSlot
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("slot_id = ?", id).
		First(&slot).Error
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func (r *timeSlotRepo) ListByDoctorAndRange(ctx context.Context, doctorID string, from, to time.Time, onlyAvailable bool) ([]model.TimeSlot, error) {
	var slots []model.TimeSlot
	db := r.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Where("start_time >= ? AND start_time < ?", from, to)
	if onlyAvailable {
		db = db.Where("is_available = ?", true)
	}
	err := db.Order("start_time ASC").Find(&slots).Error
	return slots, err
}

func (r *timeSlotRepo) Update(ctx context.Context, slot *model.TimeSlot) error {
	return r.db.WithContext(ctx).Save(slot).Error
}

func (r *timeSlotRepo) DisableUnbookedExcept(ctx context.Context, doctorID string, dayStart, dayEnd time.Time, keepSlotIDs []string) (int64, error) {
	db := r.db.WithContext(ctx).
		Model(&model.TimeSlot{}).
		Where("doctor_id = ?", doctorID).
		Where("start_time >= ? AND start_time < ?", dayStart, dayEnd).
		Where("booked_count = 0 AND is_available = ?", true)
	if len(keepSlotIDs) > 0 {
		db = db.Where("slot_id NOT IN ?", keepSlotIDs)
	}
	result := db.Update("is_available", false)
	return result.RowsAffected, result.Error
}

func (r *timeSlotRepo) Delete(ctx context.Context, id string, deletedBy string) error {
	return r.db.WithContext(ctx).
		Model(&model.TimeSlot{}).
		Where("slot_id = ?", id).
		Updates(map[string]interface{}{
			"deleted_by": deletedBy,
			"deleted_at": gorm.Expr("NOW()"),
		}).Error
}
