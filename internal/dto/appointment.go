package dto

// ── 预约模块 DTO ──

// BookAppointmentRequest 挂号请求
type BookAppointmentRequest struct {
	SlotID          string   `json:"slot_id"          binding:"required,uuid"`
	AppointmentType string   `json:"appointment_type" binding:"required,oneof=IN_CLINIC VIDEO"`
	ChiefComplaint  string   `json:"chief_complaint"  binding:"omitempty,max=1000"`
	Symptoms        []string `json:"symptoms"         binding:"omitempty,max=20"`
	PatientNotes    string   `json:"patient_notes"    binding:"omitempty,max=1000"`
}

// RescheduleRequest 改期请求
type RescheduleRequest struct {
	NewSlotID string `json:"new_slot_id" binding:"required,uuid"`
	Reason    string `json:"reason"      binding:"omitempty,max=500"`
}

// ConfirmPaymentRequest 支付确认请求
type ConfirmPaymentRequest struct {
	PaymentID string `json:"payment_id" binding:"required,max=100"`
}

// CheckInByNumberRequest 凭预约号签到请求
type CheckInByNumberRequest struct {
	AppointmentNumber string `json:"appointment_number" binding:"required,max=50"`
}

// CancelAppointmentRequest 取消预约请求
type CancelAppointmentRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// UpdateStatusRequest 状态流转请求
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"  binding:"omitempty,max=1000"`
}

// AppointmentListRequest 预约列表查询参数
type AppointmentListRequest struct {
	Status    string `form:"status"     binding:"omitempty"`
	StartDate string `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"end_date"   binding:"omitempty,datetime=2006-01-02"`
	Page      int    `form:"page"       binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size"  binding:"omitempty,min=1,max=100"`
}

// AppointmentResponse 预约信息响应
type AppointmentResponse struct {
	ID                 string        `json:"id"`
	AppointmentNumber  string        `json:"appointment_number"`
	PatientID          string        `json:"patient_id"`
	Patient            *PersonBrief  `json:"patient,omitempty"`
	DoctorID           string        `json:"doctor_id"`
	Doctor             *PersonBrief  `json:"doctor,omitempty"`
	SlotID             *string       `json:"slot_id,omitempty"`
	ScheduledAt        string        `json:"scheduled_at"`
	DurationMinutes    int           `json:"duration_minutes"`
	Status             string        `json:"status"`
	AppointmentType    string        `json:"appointment_type"`
	FeeAmount          int64         `json:"fee_amount"`
	PaidAmount         int64         `json:"paid_amount"`
	CheckInTime        *string       `json:"check_in_time,omitempty"`
	QueueNumber        *int          `json:"queue_number,omitempty"`
	CancelledAt        *string       `json:"cancelled_at,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	CancelledBy        string        `json:"cancelled_by,omitempty"`
	IsConflict         bool          `json:"is_conflict,omitempty"`
	ConflictReason     string        `json:"conflict_reason,omitempty"`
	MeetingURL         string        `json:"meeting_url,omitempty"`
	ChiefComplaint     string        `json:"chief_complaint,omitempty"`
	Symptoms           []string      `json:"symptoms,omitempty"`
	PatientNotes       string        `json:"patient_notes,omitempty"`
	DoctorNotes        string        `json:"doctor_notes,omitempty"`
	CreatedAt          string        `json:"created_at"`
}

// PersonBrief 人员简要信息（嵌入预约响应）
type PersonBrief struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CheckInResponse 签到结果
type CheckInResponse struct {
	Appointment *AppointmentResponse `json:"appointment"`
	QueueNumber *int                 `json:"queue_number,omitempty"`
}

// JoinCallResponse 加入视频通话结果
type JoinCallResponse struct {
	RoomURL      string `json:"room_url"`
	MeetingToken string `json:"meeting_token"`
	Status       string `json:"status"`
}

// CallStatusResponse 视频通话状态
type CallStatusResponse struct {
	AppointmentStatus string `json:"appointment_status"`
	PatientInCall     bool   `json:"patient_in_call"`
	DoctorInCall      bool   `json:"doctor_in_call"`
	MeetingURL        string `json:"meeting_url,omitempty"`
}

// StatsRequest 统计查询参数
type StatsRequest struct {
	DoctorID  string `form:"doctor_id"  binding:"omitempty,uuid"`
	StartDate string `form:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   string `form:"end_date"   binding:"required,datetime=2006-01-02"`
}

// StatsResponse 预约统计响应
type StatsResponse struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
}

// DashboardResponse 医生工作台概览
type DashboardResponse struct {
	Date          string           `json:"date"`
	TodayTotal    int64            `json:"today_total"`
	TodayByStatus map[string]int64 `json:"today_by_status"`
	WaitingCount  int              `json:"waiting_count"`
}

// QueueEntry 当日候诊队列条目
type QueueEntry struct {
	QueueNumber       int    `json:"queue_number"`
	AppointmentID     string `json:"appointment_id"`
	AppointmentNumber string `json:"appointment_number"`
	PatientID         string `json:"patient_id"`
	PatientName       string `json:"patient_name,omitempty"`
	ScheduledAt       string `json:"scheduled_at"`
}

// CalendarDay 月历视图中的单日预约量
type CalendarDay struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}
