package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
)

// DoctorRepository 医生数据访问接口
type DoctorRepository interface {
	Create(ctx context.Context, doctor *model.Doctor) error
	GetByID(ctx context.Context, id string) (*model.Doctor, error)
	GetByUserID(ctx context.Context, userID string) (*model.Doctor, error)
	List(ctx context.Context, specialty string, offset, limit int) ([]model.Doctor, int64, error)
	Update(ctx context.Context, doctor *model.Doctor) error
}

type doctorRepo struct {
	db *gorm.DB
}

// NewDoctorRepo 创建 DoctorRepository 实例
func NewDoctorRepo(db *gorm.DB) DoctorRepository {
	return &doctorRepo{db: db}
}

func (r *doctorRepo) Create(ctx context.Context, doctor *model.Doctor) error {
	return r.db.WithContext(ctx).Create(doctor).Error
}

func (r *doctorRepo) GetByID(ctx context.Context, id string) (*model.Doctor, error) {
	var doctor model.Doctor
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", id).
		First(&doctor).Error
	if err != nil {
		return nil, err
	}
	return &doctor, nil
}

func (r *doctorRepo) GetByUserID(ctx context.Context, userID string) (*model.Doctor, error) {
	var doctor model.Doctor
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&doctor).Error
	if err != nil {
		return nil, err
	}
	return &doctor, nil
}

func (r *doctorRepo) List(ctx context.Context, specialty string, offset, limit int) ([]model.Doctor, int64, error) {
	var doctors []model.Doctor
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Doctor{}).
		Where("is_active = ?", true)
	if specialty != "" {
		db = db.Where("specialty = ?", specialty)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Offset(offset).Limit(limit).
		Order("name ASC").
		Find(&doctors).Error
	return doctors, total, err
}

func (r *doctorRepo) Update(ctx context.Context, doctor *model.Doctor) error {
	return r.db.WithContext(ctx).Save(doctor).Error
}
