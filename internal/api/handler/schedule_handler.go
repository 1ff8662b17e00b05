package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/dto"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/service"
	pkgerrors "github.com/minhducn14/dutu-pulmo-be-sub001/pkg/errors"
	"github.com/minhducn14/dutu-pulmo-be-sub001/pkg/response"
)

// ScheduleHandler 排班模块 HTTP 处理器
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
	profileSvc  service.ProfileService
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService, profileSvc service.ProfileService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc, profileSvc: profileSvc}
}

// doctorID 将登录用户解析为医生档案 ID，失败时写入响应
func (h *ScheduleHandler) doctorID(c *gin.Context) (string, bool) {
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

// CreateRegular 创建固定排班
// POST /api/v1/doctors/me/schedules/regular
func (h *ScheduleHandler) CreateRegular(c *gin.Context) {
	var req dto.CreateRegularScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}

	schedule, err := h.scheduleSvc.CreateRegular(c.Request.Context(), doctorID, &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}
	response.Created(c, schedule)
}

// CreateRegularBulk 批量创建固定排班
// POST /api/v1/doctors/me/schedules/regular/bulk
func (h *ScheduleHandler) CreateRegularBulk(c *gin.Context) {
	var req dto.CreateRegularBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}

	schedules, err := h.scheduleSvc.CreateRegularBulk(c.Request.Context(), doctorID, &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}
	response.Created(c, gin.H{"list": schedules})
}

// CreateFlexible 创建弹性排班
// POST /api/v1/doctors/me/schedules/flexible
func (h *ScheduleHandler) CreateFlexible(c *gin.Context) {
	var req dto.CreateFlexibleScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}

	schedule, err := h.scheduleSvc.CreateFlexible(c.Request.Context(), doctorID, &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}
	response.Created(c, schedule)
}

// CreateTimeOff 创建请假时段
// POST /api/v1/doctors/me/schedules/time-off
func (h *ScheduleHandler) CreateTimeOff(c *gin.Context) {
	var req dto.CreateTimeOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}

	schedule, err := h.scheduleSvc.CreateTimeOff(c.Request.Context(), doctorID, &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}
	response.Created(c, schedule)
}

// ListSchedules 获取本人排班列表
// GET /api/v1/doctors/me/schedules
func (h *ScheduleHandler) ListSchedules(c *gin.Context) {
	var req dto.ScheduleListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}

	schedules, err := h.scheduleSvc.List(c.Request.Context(), doctorID, &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}
	response.OK(c, gin.H{"list": schedules})
}

// GetSchedule 获取排班详情
// GET /api/v1/schedules/:id
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "排班ID不能为空")
		return
	}

	schedule, err := h.scheduleSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}
	response.OK(c, schedule)
}

// UpdateSchedule 更新排班
// PUT /api/v1/doctors/me/schedules/:id
func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "排班ID不能为空")
		return
	}

	var req dto.UpdateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}

	schedule, err := h.scheduleSvc.Update(c.Request.Context(), doctorID, id, &req)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}
	response.OK(c, schedule)
}

// DeleteSchedule 删除排班
// DELETE /api/v1/doctors/me/schedules/:id
func (h *ScheduleHandler) DeleteSchedule(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "排班ID不能为空")
		return
	}

	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}
	userID, _ := MustGetUserID(c)

	if err := h.scheduleSvc.Delete(c.Request.Context(), doctorID, id, userID); err != nil {
		h.handleScheduleError(c, err)
		return
	}
	response.OK(c, nil)
}

// handleScheduleError 统一处理排班模块业务错误
func (h *ScheduleHandler) handleScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrScheduleNotFound):
		response.NotFound(c, 20002, "排班不存在")
	case errors.Is(err, service.ErrDoctorNotFound):
		response.NotFound(c, 20003, "医生不存在")
	case errors.Is(err, service.ErrScheduleConflict):
		// 错误信息携带冲突排班的具体时段
		response.Error(c, 409, 20004, err.Error())
	case errors.Is(err, service.ErrInvalidTimeRange):
		response.BadRequest(c, 20005, "开始时间必须早于结束时间")
	case errors.Is(err, service.ErrInvalidSlotDuration):
		response.BadRequest(c, 20009, "号源时长超出允许范围")
	case errors.Is(err, service.ErrInvalidBookingWindow):
		response.BadRequest(c, 20010, "可约天数窗口无效")
	case errors.Is(err, service.ErrInvalidEffectiveDays):
		response.BadRequest(c, 20011, "生效日期区间无效")
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, 20006, "日期格式无效")
	case errors.Is(err, service.ErrNotScheduleOwner):
		response.Forbidden(c, 20007, "无权操作他人的排班")
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Error(c, 409, 20008, "排班已被其他操作修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}
