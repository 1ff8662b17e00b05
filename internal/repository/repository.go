package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	Doctor      DoctorRepository
	Patient     PatientRepository
	Schedule    ScheduleRepository
	TimeSlot    TimeSlotRepository
	Appointment AppointmentRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:          db,
		Doctor:      NewDoctorRepo(db),
		Patient:     NewPatientRepo(db),
		Schedule:    NewScheduleRepo(db),
		TimeSlot:    NewTimeSlotRepo(db),
		Appointment: NewAppointmentRepo(db),
	}
}

// WithTx 在同一数据库事务中执行 fn。fn 收到的 Repository
// 绑定事务连接，fn 返回 error 时整个事务回滚。
// db 为 nil 时（注入 mock 的单元测试场景）直接执行 fn，不开启事务。
func (r *Repository) WithTx(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
