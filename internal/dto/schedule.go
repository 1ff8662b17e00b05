package dto

// ── 排班模块 DTO ──

// CreateRegularScheduleRequest 创建固定排班请求
type CreateRegularScheduleRequest struct {
	DayOfWeek       int     `json:"day_of_week"       binding:"min=0,max=6"`
	StartTime       string  `json:"start_time"        binding:"required"` // "08:00"
	EndTime         string  `json:"end_time"          binding:"required"` // "11:30"
	SlotDuration    int     `json:"slot_duration"     binding:"omitempty,min=5,max=480"`
	SlotCapacity    int     `json:"slot_capacity"     binding:"omitempty,min=1,max=100"`
	AppointmentType string  `json:"appointment_type"  binding:"omitempty,oneof=IN_CLINIC VIDEO"`
	ConsultationFee *int64  `json:"consultation_fee"  binding:"omitempty,min=0"`
	DiscountPercent int     `json:"discount_percent"  binding:"omitempty,min=0,max=100"`
	MinBookingDays  int     `json:"min_booking_days"  binding:"omitempty,min=0"`
	MaxAdvanceDays  int     `json:"max_advance_days"  binding:"omitempty,min=1,max=365"`
	EffectiveFrom   *string `json:"effective_from"    binding:"omitempty,datetime=2006-01-02"`
	EffectiveUntil  *string `json:"effective_until"   binding:"omitempty,datetime=2006-01-02"`
	Note            string  `json:"note"              binding:"omitempty,max=500"`
}

// CreateRegularBulkRequest 批量创建固定排班请求（一周排班一次提交）
type CreateRegularBulkRequest struct {
	Items []CreateRegularScheduleRequest `json:"items" binding:"required,min=1,max=21,dive"`
}

// CreateFlexibleScheduleRequest 创建弹性排班请求（单日覆盖固定排班）
type CreateFlexibleScheduleRequest struct {
	SpecificDate    string `json:"specific_date"     binding:"required,datetime=2006-01-02"`
	StartTime       string `json:"start_time"        binding:"required"`
	EndTime         string `json:"end_time"          binding:"required"`
	SlotDuration    int    `json:"slot_duration"     binding:"omitempty,min=5,max=480"`
	SlotCapacity    int    `json:"slot_capacity"     binding:"omitempty,min=1,max=100"`
	AppointmentType string `json:"appointment_type"  binding:"omitempty,oneof=IN_CLINIC VIDEO"`
	ConsultationFee *int64 `json:"consultation_fee"  binding:"omitempty,min=0"`
	DiscountPercent int    `json:"discount_percent"  binding:"omitempty,min=0,max=100"`
	Note            string `json:"note"              binding:"omitempty,max=500"`
}

// CreateTimeOffRequest 创建请假时段请求
type CreateTimeOffRequest struct {
	SpecificDate string `json:"specific_date" binding:"required,datetime=2006-01-02"`
	StartTime    string `json:"start_time"    binding:"required"`
	EndTime      string `json:"end_time"      binding:"required"`
	Note         string `json:"note"          binding:"omitempty,max=500"`
}

// UpdateScheduleRequest 更新排班请求（各字段可选）
type UpdateScheduleRequest struct {
	DayOfWeek       *int    `json:"day_of_week"      binding:"omitempty,min=0,max=6"`
	SpecificDate    *string `json:"specific_date"    binding:"omitempty,datetime=2006-01-02"`
	StartTime       *string `json:"start_time"`
	EndTime         *string `json:"end_time"`
	SlotDuration    *int    `json:"slot_duration"    binding:"omitempty,min=5,max=480"`
	SlotCapacity    *int    `json:"slot_capacity"    binding:"omitempty,min=1,max=100"`
	AppointmentType *string `json:"appointment_type" binding:"omitempty,oneof=IN_CLINIC VIDEO"`
	ConsultationFee *int64  `json:"consultation_fee" binding:"omitempty,min=0"`
	DiscountPercent *int    `json:"discount_percent" binding:"omitempty,min=0,max=100"`
	MinBookingDays  *int    `json:"min_booking_days" binding:"omitempty,min=0"`
	MaxAdvanceDays  *int    `json:"max_advance_days" binding:"omitempty,min=1,max=365"`
	EffectiveFrom   *string `json:"effective_from"   binding:"omitempty,datetime=2006-01-02"`
	EffectiveUntil  *string `json:"effective_until"  binding:"omitempty,datetime=2006-01-02"`
	IsAvailable     *bool   `json:"is_available"`
	Note            *string `json:"note"             binding:"omitempty,max=500"`
}

// ScheduleListRequest 排班列表查询参数
type ScheduleListRequest struct {
	Kind string `form:"kind" binding:"omitempty,oneof=REGULAR FLEXIBLE TIME_OFF"`
}

// ScheduleResponse 排班信息响应
type ScheduleResponse struct {
	ID              string  `json:"id"`
	DoctorID        string  `json:"doctor_id"`
	Kind            string  `json:"kind"`
	DayOfWeek       *int    `json:"day_of_week,omitempty"`
	SpecificDate    *string `json:"specific_date,omitempty"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	SlotDuration    int     `json:"slot_duration"`
	SlotCapacity    int     `json:"slot_capacity"`
	AppointmentType string  `json:"appointment_type,omitempty"`
	ConsultationFee *int64  `json:"consultation_fee,omitempty"`
	DiscountPercent int     `json:"discount_percent"`
	MinBookingDays  int     `json:"min_booking_days"`
	MaxAdvanceDays  int     `json:"max_advance_days"`
	EffectiveFrom   *string `json:"effective_from,omitempty"`
	EffectiveUntil  *string `json:"effective_until,omitempty"`
	IsAvailable     bool    `json:"is_available"`
	Version         int     `json:"version"`
	Note            string  `json:"note,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// GenerateSlotsRequest 按排班生成号源请求
type GenerateSlotsRequest struct {
	StartDate string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date"   binding:"required,datetime=2006-01-02"`
}

// GenerateSlotsResponse 号源生成结果
type GenerateSlotsResponse struct {
	GeneratedCount int    `json:"generated_count"`
	SkippedCount   int    `json:"skipped_count"`
	DisabledCount  int    `json:"disabled_count"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
}
