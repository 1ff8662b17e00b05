package dto

// ── 号源模块 DTO ──

// SlotListRequest 号源列表查询参数
type SlotListRequest struct {
	StartDate string `form:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   string `form:"end_date"   binding:"required,datetime=2006-01-02"`
	OnlyFree  bool   `form:"only_free"`
}

// SlotResponse 号源信息响应
type SlotResponse struct {
	ID           string   `json:"id"`
	DoctorID     string   `json:"doctor_id"`
	ScheduleID   *string  `json:"schedule_id,omitempty"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	Capacity     int      `json:"capacity"`
	BookedCount  int      `json:"booked_count"`
	Remaining    int      `json:"remaining"`
	AllowedTypes []string `json:"allowed_types,omitempty"`
	IsAvailable  bool     `json:"is_available"`
}
