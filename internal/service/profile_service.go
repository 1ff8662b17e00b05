package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/repository"
)

// ProfileService 登录用户与医生/患者档案的映射
type ProfileService interface {
	DoctorIDByUser(ctx context.Context, userID string) (string, error)
	PatientIDByUser(ctx context.Context, userID string) (string, error)
}

type profileService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewProfileService 创建 ProfileService 实例
func NewProfileService(repo *repository.Repository, logger *zap.Logger) ProfileService {
	return &profileService{repo: repo, logger: logger}
}

func (s *profileService) DoctorIDByUser(ctx context.Context, userID string) (string, error) {
	doctor, err := s.repo.Doctor.GetByUserID(ctx, userID)
	if err != nil {
		return "", wrapNotFound(err, ErrDoctorNotFound)
	}
	return doctor.DoctorID, nil
}

func (s *profileService) PatientIDByUser(ctx context.Context, userID string) (string, error) {
	patient, err := s.repo.Patient.GetByUserID(ctx, userID)
	if err != nil {
		return "", wrapNotFound(err, ErrPatientNotFound)
	}
	return patient.PatientID, nil
}
