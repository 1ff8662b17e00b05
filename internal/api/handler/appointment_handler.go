package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/dto"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/service"
	"github.com/minhducn14/dutu-pulmo-be-sub001/pkg/response"
)

// AppointmentHandler 预约模块 HTTP 处理器
type AppointmentHandler struct {
	apptSvc    service.AppointmentService
	profileSvc service.ProfileService
}

// NewAppointmentHandler 创建 AppointmentHandler
func NewAppointmentHandler(apptSvc service.AppointmentService, profileSvc service.ProfileService) *AppointmentHandler {
	return &AppointmentHandler{apptSvc: apptSvc, profileSvc: profileSvc}
}

func (h *AppointmentHandler) patientID(c *gin.Context) (string, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return "", false
	}
	patientID, err := h.profileSvc.PatientIDByUser(c.Request.Context(), userID)
	if err != nil {
		response.Forbidden(c, 22001, "患者档案不存在")
		return "", false
	}
	return patientID, true
}

func (h *AppointmentHandler) doctorID(c *gin.Context) (string, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return "", false
	}
	doctorID, err := h.profileSvc.DoctorIDByUser(c.Request.Context(), userID)
	if err != nil {
		response.Forbidden(c, 20001, "医生档案不存在")
		return "", false
	}
	return doctorID, true
}

// Book 挂号
// POST /api/v1/appointments
func (h *AppointmentHandler) Book(c *gin.Context) {
	var req dto.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	patientID, ok := h.patientID(c)
	if !ok {
		return
	}

	appt, err := h.apptSvc.Book(c.Request.Context(), patientID, &req)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}
	response.Created(c, appt)
}

// GetAppointment 获取预约详情
// GET /api/v1/appointments/:id
func (h *AppointmentHandler) GetAppointment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "预约ID不能为空")
		return
	}

	appt, err := h.apptSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}
	response.OK(c, appt)
}

// ListMyAppointments 患者查询自己的预约
// GET /api/v1/patients/me/appointments
func (h *AppointmentHandler) ListMyAppointments(c *gin.Context) {
	var req dto.AppointmentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	patientID, ok := h.patientID(c)
	if !ok {
		return
	}

	appts, total, err := h.apptSvc.ListByPatient(c.Request.Context(), patientID, &req)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}
	page, pageSize := normalizePage(req.Page, req.PageSize)
	response.OKPage(c, appts, total, page, pageSize)
}

// ListDoctorAppointments 医生查询自己的预约
// GET /api/v1/doctors/me/appointments
func (h *AppointmentHandler) ListDoctorAppointments(c *gin.Context) {
	var req dto.AppointmentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}

	appts, total, err := h.apptSvc.ListByDoctor(c.Request.Context(), doctorID, &req)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}
	page, pageSize := normalizePage(req.Page, req.PageSize)
	response.OKPage(c, appts, total, page, pageSize)
}

// ConfirmPayment 支付确认
// POST /api/v1/appointments/:id/payment/confirm
func (h *AppointmentHandler) ConfirmPayment(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "预约ID不能为空")
		return
	}

	var req dto.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	patientID, ok := h.patientID(c)
	if !ok {
		return
	}

	appt, err := h.apptSvc.ConfirmPayment(c.Request.Context(), id, patientID, &req)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}
	response.OK(c, appt)
}

// CheckIn 患者签到
// POST /api/v1/appointments/:id/check-in
func (h *AppointmentHandler) CheckIn(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "预约ID不能为空")
		return
	}

	patientID, ok := h.patientID(c)
	if !ok {
		return
	}

	result, err := h.apptSvc.CheckIn(c.Request.Context(), id, patientID)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}
	response.OK(c, result)
}

// CheckInByNumber 凭预约号签到（前台扫码/人工录入）
// POST /api/v1/appointments/check-in
func (h *AppointmentHandler) CheckInByNumber(c *gin.Context) {
	var req dto.CheckInByNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	patientID, ok := h.patientID(c)
	if !ok {
		return
	}

	result, err := h.apptSvc.CheckInByNumber(c.Request.Context(), req.AppointmentNumber, patientID)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}
	response.OK(c, result)
}

// UpdateStatus 医生更新就诊状态
// PUT /api/v1/appointments/:id/status
func (h *AppointmentHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "预约ID不能为空")
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}

	appt, err := h.apptSvc.UpdateStatus(c.Request.Context(), id, doctorID, &req)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}
	response.OK(c, appt)
}

// Cancel 取消预约（医患双方均可）
// POST /api/v1/appointments/:id/cancel
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "预约ID不能为空")
		return
	}

	var req dto.CancelAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	role, ok := MustGetRole(c)
	if !ok {
		return
	}

	// 取消方按角色解析档案 ID
	var callerID string
	var err error
	if role == "doctor" {
		callerID, err = h.profileSvc.DoctorIDByUser(c.Request.Context(), userID)
	} else {
		callerID, err = h.profileSvc.PatientIDByUser(c.Request.Context(), userID)
	}
	if err != nil {
		response.Forbidden(c, 22002, "档案不存在")
		return
	}

	if err := h.apptSvc.Cancel(c.Request.Context(), id, callerID, role, &req); err != nil {
		h.handleAppointmentError(c, err)
		return
	}
	response.OK(c, nil)
}

// Reschedule 改期
// POST /api/v1/appointments/:id/reschedule
func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "预约ID不能为空")
		return
	}

	var req dto.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	patientID, ok := h.patientID(c)
	if !ok {
		return
	}

	appt, err := h.apptSvc.Reschedule(c.Request.Context(), id, patientID, &req)
	if err != nil {
		h.handleAppointmentError(c, err)
		return
	}
	response.OK(c, appt)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return page, pageSize
}

// handleAppointmentError 统一处理预约模块业务错误
func (h *AppointmentHandler) handleAppointmentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAppointmentNotFound):
		response.NotFound(c, 22003, "预约不存在")
	case errors.Is(err, service.ErrSlotNotFound):
		response.NotFound(c, 22004, "号源不存在")
	case errors.Is(err, service.ErrPatientNotFound):
		response.NotFound(c, 22005, "患者不存在")
	case errors.Is(err, service.ErrSlotUnavailable):
		response.Error(c, 409, 22006, "号源已停用")
	case errors.Is(err, service.ErrSlotFull):
		response.Error(c, 409, 22007, "号源已约满")
	case errors.Is(err, service.ErrSlotInPast):
		response.BadRequest(c, 22008, "号源时间已过，无法预约")
	case errors.Is(err, service.ErrDuplicateBooking):
		response.Error(c, 409, 22009, "您在该时段已有未完成的预约")
	case errors.Is(err, service.ErrSlotNoTypeConfig):
		response.Error(c, 409, 22018, "号源未配置可预约的就诊类型")
	case errors.Is(err, service.ErrNoAppointmentType):
		response.BadRequest(c, 22010, "该号源不支持所选就诊类型")
	case errors.Is(err, service.ErrDoctorMismatch):
		response.BadRequest(c, 22019, "改期号源不属于原预约医生")
	case errors.Is(err, service.ErrMeetingRoomFailed):
		response.Error(c, 502, 22020, "创建视频房间失败，请稍后重试")
	case errors.Is(err, service.ErrNotPendingPayment):
		response.Error(c, 409, 22017, "该预约不在待支付状态")
	case errors.Is(err, service.ErrInvalidTransition):
		response.Error(c, 409, 22011, "当前状态不允许该操作")
	case errors.Is(err, service.ErrNotCheckInWindow):
		response.BadRequest(c, 22012, "未到签到时间或已超过签到截止时间")
	case errors.Is(err, service.ErrCannotCancel):
		response.Error(c, 409, 22013, "当前状态的预约无法取消")
	case errors.Is(err, service.ErrCannotReschedule):
		response.Error(c, 409, 22014, "当前状态的预约无法改期")
	case errors.Is(err, service.ErrSameSlotReschedule):
		response.BadRequest(c, 22015, "改期目标号源与原号源相同")
	case errors.Is(err, service.ErrNotParticipant):
		response.Forbidden(c, 22016, "您不是该预约的参与者")
	default:
		response.InternalError(c)
	}
}
