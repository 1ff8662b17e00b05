package model

// Doctor 医生档案 — 对应 doctors
type Doctor struct {
	DoctorID          string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"doctor_id"`
	UserID            string  `gorm:"type:uuid;not null;uniqueIndex"                 json:"user_id"`
	Name              string  `gorm:"type:varchar(100);not null"                     json:"name"`
	Specialty         string  `gorm:"type:varchar(100)"                              json:"specialty,omitempty"`
	PrimaryHospitalID *string `gorm:"type:uuid"                                      json:"primary_hospital_id,omitempty"`
	DefaultFee        *int64  `gorm:"type:bigint;column:default_consultation_fee"    json:"default_consultation_fee,omitempty"`
	IsActive          bool    `gorm:"not null;default:true"                          json:"is_active"`
	SoftDeleteModel
}

// TableName 指定表名
func (Doctor) TableName() string { return "doctors" }
