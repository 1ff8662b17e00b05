package model

import "time"

// Patient 患者档案 — 对应 patients
type Patient struct {
	PatientID   string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"patient_id"`
	UserID      string     `gorm:"type:uuid;not null;uniqueIndex"                 json:"user_id"`
	Name        string     `gorm:"type:varchar(100);not null"                     json:"name"`
	Phone       string     `gorm:"type:varchar(20)"                               json:"phone,omitempty"`
	DateOfBirth *time.Time `gorm:"type:date"                                      json:"date_of_birth,omitempty"`
	Gender      string     `gorm:"type:varchar(10)"                               json:"gender,omitempty"`
	SoftDeleteModel
}

// TableName 指定表名
func (Patient) TableName() string { return "patients" }
