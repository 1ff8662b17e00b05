package model

import "time"

// ── 排班类型（封闭变体 + 优先级） ──

// ScheduleKind 医生排班类型。
// 优先级由 Priority() 派生，避免 kind 与 priority 两个字段各自漂移。
type ScheduleKind string

const (
	// ScheduleRegular 固定排班：按星期几每周重复
	ScheduleRegular ScheduleKind = "REGULAR"
	// ScheduleFlexible 弹性排班：指定某一天整体覆盖固定排班（Winner-Takes-All）
	ScheduleFlexible ScheduleKind = "FLEXIBLE"
	// ScheduleTimeOff 休息时段：从任何生效排班中扣除的屏蔽窗口
	ScheduleTimeOff ScheduleKind = "TIME_OFF"
)

// Priority 排班优先级。数值越大优先级越高；
// 同优先级之间才做重叠冲突校验，不同优先级由生成器按 Winner-Takes-All 裁决。
func (k ScheduleKind) Priority() int {
	switch k {
	case ScheduleFlexible:
		return 50
	case ScheduleTimeOff:
		return 100
	default:
		return 1
	}
}

// Valid 判断是否为已知排班类型
func (k ScheduleKind) Valid() bool {
	switch k {
	case ScheduleRegular, ScheduleFlexible, ScheduleTimeOff:
		return true
	}
	return false
}

// IsWorking 是否产出可预约时段（TIME_OFF 只屏蔽，不产出）
func (k ScheduleKind) IsWorking() bool {
	return k != ScheduleTimeOff
}

// DoctorSchedule 医生排班规则 — 对应 doctor_schedules
//
// 三类排班共用一张表：
//   - REGULAR 使用 day_of_week + effective_from/effective_until
//   - FLEXIBLE / TIME_OFF 使用 specific_date（day_of_week 冗余存储便于索引）
//
// version 在时间相关字段变更时 +1，并回写到由该排班生成的 slot 上，
// 用于区分"旧版本排班生成的 slot"。
type DoctorSchedule struct {
	ScheduleID      string       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"schedule_id"`
	DoctorID        string       `gorm:"type:uuid;not null;index:idx_schedule_doctor"   json:"doctor_id"`
	Kind            ScheduleKind `gorm:"type:varchar(20);not null;default:'REGULAR'"    json:"kind"`
	DayOfWeek       int          `gorm:"type:smallint;not null"                         json:"day_of_week"` // 0=周日 … 6=周六
	SpecificDate    *time.Time   `gorm:"type:date"                                      json:"specific_date,omitempty"`
	StartTime       string       `gorm:"type:varchar(5);not null"                      json:"start_time"` // "08:00"
	EndTime         string       `gorm:"type:varchar(5);not null"                      json:"end_time"`   // "12:00"
	SlotDuration    int          `gorm:"not null;default:30"                            json:"slot_duration"` // 分钟
	SlotCapacity    int          `gorm:"not null;default:1"                             json:"slot_capacity"`
	AppointmentType AppointmentType `gorm:"type:varchar(20);not null;default:'IN_CLINIC'" json:"appointment_type"`
	ConsultationFee *int64       `gorm:"type:bigint"                                    json:"consultation_fee,omitempty"`
	DiscountPercent int          `gorm:"not null;default:0"                             json:"discount_percent"`
	MinBookingDays  int          `gorm:"not null;default:0"                             json:"min_booking_days"`
	MaxAdvanceDays  int          `gorm:"not null;default:30"                            json:"max_advance_days"`
	EffectiveFrom   *time.Time   `gorm:"type:date"                                      json:"effective_from,omitempty"`
	EffectiveUntil  *time.Time   `gorm:"type:date"                                      json:"effective_until,omitempty"`
	IsAvailable     bool         `gorm:"not null;default:true"                          json:"is_available"`
	Version         int          `gorm:"not null;default:1"                             json:"version"`
	Note            string       `gorm:"type:text"                                      json:"note,omitempty"`
	SoftDeleteModel

	// 关联
	Doctor *Doctor `gorm:"foreignKey:DoctorID;references:DoctorID" json:"doctor,omitempty"`
}

// TableName 指定表名
func (DoctorSchedule) TableName() string { return "doctor_schedules" }
