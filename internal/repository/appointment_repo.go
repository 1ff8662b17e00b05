package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
)

// AppointmentQuery 预约列表查询条件
type AppointmentQuery struct {
	PatientID string
	DoctorID  string
	Status    model.AppointmentStatus
	From      *time.Time
	To        *time.Time
	Offset    int
	Limit     int
}

// StatusCount 按状态聚合的预约数量
type StatusCount struct {
	Status model.AppointmentStatus `json:"status"`
	Count  int64                   `json:"count"`
}

// AppointmentRepository 预约数据访问接口
type AppointmentRepository interface {
	Create(ctx context.Context, appt *model.Appointment) error
	GetByID(ctx context.Context, id string) (*model.Appointment, error)
	GetByNumber(ctx context.Context, number string) (*model.Appointment, error)
	// GetForUpdate 以 FOR UPDATE 行锁读取预约，必须在事务内调用。
	GetForUpdate(ctx context.Context, id string) (*model.Appointment, error)
	// HasActiveOnSlot 检查患者在某号源上是否已有未终结的预约，
	// 以 FOR SHARE 锁定命中行以阻止并发重复预约。
	HasActiveOnSlot(ctx context.Context, patientID, slotID string) (bool, error)
	List(ctx context.Context, q AppointmentQuery) ([]model.Appointment, int64, error)
	ListActiveOverlapping(ctx context.Context, doctorID string, start, end time.Time) ([]model.Appointment, error)
	NextQueueNumber(ctx context.Context, doctorID string, dayStart, dayEnd time.Time) (int, error)
	CountByStatus(ctx context.Context, doctorID string, from, to time.Time) ([]StatusCount, error)
	Update(ctx context.Context, appt *model.Appointment) error
}

type appointmentRepo struct {
	db *gorm.DB
}

// NewAppointmentRepo 创建 AppointmentRepository 实例
func NewAppointmentRepo(db *gorm.DB) AppointmentRepository {
	return &appointmentRepo{db: db}
}

func (r *appointmentRepo) Create(ctx context.Context, appt *model.Appointment) error {
	return r.db.WithContext(ctx).Create(appt).Error
}

func (r *appointmentRepo) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	var appt model.Appointment
	err := r.db.WithContext(ctx).
		Preload("Patient").
		Preload("Doctor").
		Preload("Slot").
		Where("appointment_id = ?", id).
		First(&appt).Error
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepo) GetByNumber(ctx context.Context, number string) (*model.Appointment, error) {
	var appt model.Appointment
	err := r.db.WithContext(ctx).
		Preload("Patient").
		Preload("Doctor").
		Preload("Slot").
		Where("appointment_number = ?", number).
		First(&appt).Error
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepo) GetForUpdate(ctx context.Context, id string) (*model.Appointment, error) {
	var appt model.Appointment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("appointment_id = ?", id).
		First(&appt).Error
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepo) HasActiveOnSlot(ctx context.Context, patientID, slotID string) (bool, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Clauses(clause.Locking{Strength: "SHARE"}).
		Where("patient_id = ? AND time_slot_id = ?", patientID, slotID).
		Where("status IN ?", model.ActiveStatuses()).
		Limit(1).
		Pluck("appointment_id", &ids).Error
	if err != nil {
		return false, err
	}
	return len(ids) > 0, nil
}

func (r *appointmentRepo) List(ctx context.Context, q AppointmentQuery) ([]model.Appointment, int64, error) {
	var appts []model.Appointment
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Appointment{})
	if q.PatientID != "" {
		db = db.Where("patient_id = ?", q.PatientID)
	}
	if q.DoctorID != "" {
		db = db.Where("doctor_id = ?", q.DoctorID)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	if q.From != nil {
		db = db.Where("scheduled_at >= ?", *q.From)
	}
	if q.To != nil {
		db = db.Where("scheduled_at < ?", *q.To)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Preload("Patient").
		Preload("Doctor").
		Preload("Slot").
		Offset(q.Offset).Limit(q.Limit).
		Order("scheduled_at DESC").
		Find(&appts).Error
	return appts, total, err
}

// ListActiveOverlapping 返回某医生与 [start, end) 半开区间重叠的未终结预约。
func (r *appointmentRepo) ListActiveOverlapping(ctx context.Context, doctorID string, start, end time.Time) ([]model.Appointment, error) {
	var appts []model.Appointment
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Where("status IN ?", model.ActiveStatuses()).
		Where("scheduled_at < ? AND scheduled_at + (duration_minutes * INTERVAL '1 minute') > ?", end, start).
		Order("scheduled_at ASC").
		Find(&appts).Error
	return appts, err
}

func (r *appointmentRepo) NextQueueNumber(ctx context.Context, doctorID string, dayStart, dayEnd time.Time) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("doctor_id = ?", doctorID).
		Where("scheduled_at >= ? AND scheduled_at < ?", dayStart, dayEnd).
		Select("MAX(queue_number)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 1, nil
	}
	return *max + 1, nil
}

func (r *appointmentRepo) CountByStatus(ctx context.Context, doctorID string, from, to time.Time) ([]StatusCount, error) {
	var counts []StatusCount
	db := r.db.WithContext(ctx).
		Model(&model.Appointment{}).
		Where("scheduled_at >= ? AND scheduled_at < ?", from, to)
	if doctorID != "" {
		db = db.Where("doctor_id = ?", doctorID)
	}
	err := db.Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	return counts, err
}

func (r *appointmentRepo) Update(ctx context.Context, appt *model.Appointment) error {
	return r.db.WithContext(ctx).Save(appt).Error
}
