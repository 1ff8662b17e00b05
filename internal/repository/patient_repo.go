package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
)

// PatientRepository 患者数据访问接口
type PatientRepository interface {
	Create(ctx context.Context, patient *model.Patient) error
	GetByID(ctx context.Context, id string) (*model.Patient, error)
	GetByUserID(ctx context.Context, userID string) (*model.Patient, error)
	Update(ctx context.Context, patient *model.Patient) error
}

type patientRepo struct {
	db *gorm.DB
}

// NewPatientRepo 创建 PatientRepository 实例
func NewPatientRepo(db *gorm.DB) PatientRepository {
	return &patientRepo{db: db}
}

func (r *patientRepo) Create(ctx context.Context, patient *model.Patient) error {
	return r.db.WithContext(ctx).Create(patient).Error
}

func (r *patientRepo) GetByID(ctx context.Context, id string) (*model.Patient, error) {
	var patient model.Patient
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", id).
		First(&patient).Error
	if err != nil {
		return nil, err
	}
	return &patient, nil
}

func (r *patientRepo) GetByUserID(ctx context.Context, userID string) (*model.Patient, error) {
	var patient model.Patient
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&patient).Error
	if err != nil {
		return nil, err
	}
	return &patient, nil
}

func (r *patientRepo) Update(ctx context.Context, patient *model.Patient) error {
	return r.db.WithContext(ctx).Save(patient).Error
}
