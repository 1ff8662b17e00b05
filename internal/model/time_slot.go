package model

import "time"

// TimeSlot 可预约时段 — 对应 time_slots
//
// 不变式：
//   - booked_count <= capacity
//   - 已过期 / 已约满 / 被更高优先级排班覆盖的 slot，is_available = false
//   - booked_count > 0 的 slot 永不被生成器/恢复器删除或改写
type TimeSlot struct {
	SlotID          string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"slot_id"`
	DoctorID        string      `gorm:"type:uuid;not null;index:idx_slot_doctor_start" json:"doctor_id"`
	ScheduleID      *string     `gorm:"type:uuid"                                      json:"schedule_id,omitempty"`
	ScheduleVersion int         `gorm:"not null;default:1"                             json:"schedule_version"`
	StartTime       time.Time   `gorm:"not null;index:idx_slot_doctor_start"           json:"start_time"`
	EndTime         time.Time   `gorm:"not null"                                       json:"end_time"`
	Capacity        int         `gorm:"not null;default:1"                             json:"capacity"`
	BookedCount     int         `gorm:"not null;default:0"                             json:"booked_count"`
	AllowedTypes    StringArray `gorm:"type:text[];column:allowed_appointment_types"   json:"allowed_appointment_types"`
	IsAvailable     bool        `gorm:"not null;default:true"                          json:"is_available"`
	SoftDeleteModel
}

// TableName 指定表名
func (TimeSlot) TableName() string { return "time_slots" }

// HasFreeCapacity 是否仍有空位
func (s *TimeSlot) HasFreeCapacity() bool {
	return s.BookedCount < s.Capacity
}

// Overlaps 半开区间 [start,end) 相交判定
func (s *TimeSlot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && s.EndTime.After(start)
}
