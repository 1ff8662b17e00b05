package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/service"
	"github.com/minhducn14/dutu-pulmo-be-sub001/pkg/response"
)

// VideoHandler 视频问诊模块 HTTP 处理器
type VideoHandler struct {
	videoSvc   service.VideoService
	profileSvc service.ProfileService
}

// NewVideoHandler 创建 VideoHandler
func NewVideoHandler(videoSvc service.VideoService, profileSvc service.ProfileService) *VideoHandler {
	return &VideoHandler{videoSvc: videoSvc, profileSvc: profileSvc}
}

// resolveParticipant 按角色把登录用户解析为医生/患者档案 ID
func (h *VideoHandler) resolveParticipant(c *gin.Context) (participantID, role string, ok bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return "", "", false
	}
	role, ok = MustGetRole(c)
	if !ok {
		return "", "", false
	}

	var err error
	if role == "doctor" {
		participantID, err = h.profileSvc.DoctorIDByUser(c.Request.Context(), userID)
	} else {
		participantID, err = h.profileSvc.PatientIDByUser(c.Request.Context(), userID)
	}
	if err != nil {
		response.Forbidden(c, 23001, "档案不存在")
		return "", "", false
	}
	return participantID, role, true
}

// Join 加入视频通话
// POST /api/v1/appointments/:id/call/join
func (h *VideoHandler) Join(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "预约ID不能为空")
		return
	}

	participantID, role, ok := h.resolveParticipant(c)
	if !ok {
		return
	}

	result, err := h.videoSvc.Join(c.Request.Context(), id, participantID, role)
	if err != nil {
		h.handleVideoError(c, err)
		return
	}
	response.OK(c, result)
}

// Leave 离开视频通话
// POST /api/v1/appointments/:id/call/leave
func (h *VideoHandler) Leave(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "预约ID不能为空")
		return
	}

	participantID, _, ok := h.resolveParticipant(c)
	if !ok {
		return
	}

	if err := h.videoSvc.Leave(c.Request.Context(), id, participantID); err != nil {
		h.handleVideoError(c, err)
		return
	}
	response.OK(c, nil)
}

// CallStatus 查询通话状态
// GET /api/v1/appointments/:id/call/status
func (h *VideoHandler) CallStatus(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "预约ID不能为空")
		return
	}

	participantID, _, ok := h.resolveParticipant(c)
	if !ok {
		return
	}

	result, err := h.videoSvc.CallStatus(c.Request.Context(), id, participantID)
	if err != nil {
		h.handleVideoError(c, err)
		return
	}
	response.OK(c, result)
}

// End 医生结束问诊
// POST /api/v1/appointments/:id/call/end
func (h *VideoHandler) End(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "预约ID不能为空")
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	doctorID, err := h.profileSvc.DoctorIDByUser(c.Request.Context(), userID)
	if err != nil {
		response.Forbidden(c, 20001, "医生档案不存在")
		return
	}

	appt, err := h.videoSvc.End(c.Request.Context(), id, doctorID)
	if err != nil {
		h.handleVideoError(c, err)
		return
	}
	response.OK(c, appt)
}

// handleVideoError 统一处理视频问诊模块业务错误
func (h *VideoHandler) handleVideoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrAppointmentNotFound):
		response.NotFound(c, 23002, "预约不存在")
	case errors.Is(err, service.ErrNotVideoAppointment):
		response.BadRequest(c, 23003, "该预约不是视频问诊")
	case errors.Is(err, service.ErrNotParticipant):
		response.Forbidden(c, 23004, "您不是该预约的参与者")
	case errors.Is(err, service.ErrCallNotJoinable):
		response.Error(c, 409, 23005, "当前状态无法加入视频通话")
	case errors.Is(err, service.ErrInvalidTransition):
		response.Error(c, 409, 23006, "当前状态不允许该操作")
	default:
		response.InternalError(c)
	}
}
