package model

import "time"

// ── 预约类型 ──

// AppointmentType 就诊方式
type AppointmentType string

const (
	// TypeInClinic 到院就诊
	TypeInClinic AppointmentType = "IN_CLINIC"
	// TypeVideo 视频问诊
	TypeVideo AppointmentType = "VIDEO"
)

// Valid 判断是否为已知就诊方式
func (t AppointmentType) Valid() bool {
	return t == TypeInClinic || t == TypeVideo
}

// ── 预约状态（状态机） ──

// AppointmentStatus 预约状态
type AppointmentStatus string

const (
	StatusPendingPayment AppointmentStatus = "PENDING_PAYMENT"
	StatusPending        AppointmentStatus = "PENDING"
	StatusConfirmed      AppointmentStatus = "CONFIRMED"
	StatusCheckedIn      AppointmentStatus = "CHECKED_IN"
	StatusInProgress     AppointmentStatus = "IN_PROGRESS"
	StatusCompleted      AppointmentStatus = "COMPLETED"
	StatusCancelled      AppointmentStatus = "CANCELLED"
	StatusRescheduled    AppointmentStatus = "RESCHEDULED"
)

// validTransitions 状态机转移表。COMPLETED / CANCELLED 为终态。
var validTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPendingPayment: {StatusConfirmed, StatusCancelled, StatusPending},
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusCheckedIn, StatusInProgress, StatusCancelled},
	StatusCheckedIn:      {StatusInProgress, StatusCancelled},
	StatusInProgress:     {StatusCompleted, StatusCancelled},
	StatusCompleted:      {},
	StatusCancelled:      {},
	StatusRescheduled:    {StatusConfirmed, StatusCancelled},
}

// CanTransitionTo 当前状态是否允许转移到目标状态
func (s AppointmentStatus) CanTransitionTo(target AppointmentStatus) bool {
	for _, next := range validTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal 是否为终态
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ActiveStatuses 仍在进行中、占用号源名额的状态集合
func ActiveStatuses() []AppointmentStatus {
	return []AppointmentStatus{
		StatusPendingPayment, StatusPending, StatusConfirmed,
		StatusCheckedIn, StatusInProgress,
	}
}

// Appointment 预约 — 对应 appointments
type Appointment struct {
	AppointmentID     string            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"appointment_id"`
	AppointmentNumber string            `gorm:"type:varchar(50);not null;uniqueIndex"          json:"appointment_number"`
	PatientID         string            `gorm:"type:uuid;not null;index"                       json:"patient_id"`
	DoctorID          string            `gorm:"type:uuid;not null;index"                       json:"doctor_id"`
	SlotID            *string           `gorm:"type:uuid;column:time_slot_id"                  json:"slot_id,omitempty"`
	ScheduledAt       time.Time         `gorm:"not null;index"                                 json:"scheduled_at"`
	DurationMinutes   int               `gorm:"not null;default:30"                            json:"duration_minutes"`
	Status            AppointmentStatus `gorm:"type:varchar(20);not null;default:'PENDING_PAYMENT'" json:"status"`
	AppointmentType   AppointmentType   `gorm:"type:varchar(20);not null;default:'IN_CLINIC'"  json:"appointment_type"`
	FeeAmount         int64             `gorm:"not null;default:0"                             json:"fee_amount"`
	PaidAmount        int64             `gorm:"not null;default:0"                             json:"paid_amount"`
	PaymentID         *string           `gorm:"type:uuid"                                      json:"payment_id,omitempty"`

	// 就诊进度时间戳
	CheckInTime *time.Time `json:"check_in_time,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	QueueNumber *int       `gorm:"type:integer" json:"queue_number,omitempty"` // 到院签到当日排队序号

	// 取消信息
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `gorm:"type:text"        json:"cancellation_reason,omitempty"`
	CancelledBy        string     `gorm:"type:varchar(20)" json:"cancelled_by,omitempty"` // PATIENT | DOCTOR | SYSTEM

	// 排班变更软冲突标记：排班编辑导致覆盖缺失但未自动取消时落下的标记
	IsConflict     bool   `gorm:"not null;default:false" json:"is_conflict"`
	ConflictReason string `gorm:"type:text"              json:"conflict_reason,omitempty"`

	// 视频房间
	MeetingRoomID string `gorm:"type:varchar(100)" json:"meeting_room_id,omitempty"`
	MeetingRoom   string `gorm:"type:varchar(100)" json:"meeting_room,omitempty"` // 房间名，供 token 签发与销毁
	MeetingURL    string `gorm:"type:text"         json:"meeting_url,omitempty"`

	// 临床信息
	ChiefComplaint string      `gorm:"type:text"   json:"chief_complaint,omitempty"`
	Symptoms       StringArray `gorm:"type:text[]" json:"symptoms,omitempty"`
	PatientNotes   string      `gorm:"type:text"   json:"patient_notes,omitempty"`
	DoctorNotes    string      `gorm:"type:text"   json:"doctor_notes,omitempty"`

	BaseModel

	// 关联
	Patient *Patient  `gorm:"foreignKey:PatientID;references:PatientID" json:"patient,omitempty"`
	Doctor  *Doctor   `gorm:"foreignKey:DoctorID;references:DoctorID"   json:"doctor,omitempty"`
	Slot    *TimeSlot `gorm:"foreignKey:SlotID;references:SlotID"       json:"slot,omitempty"`
}

// TableName 指定表名
func (Appointment) TableName() string { return "appointments" }

// EndsAt 预约结束时刻
func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}
