package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/dto"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/service"
	"github.com/minhducn14/dutu-pulmo-be-sub001/pkg/response"
)

// SlotHandler 号源模块 HTTP 处理器
type SlotHandler struct {
	slotSvc    service.SlotService
	profileSvc service.ProfileService
}

// NewSlotHandler 创建 SlotHandler
func NewSlotHandler(slotSvc service.SlotService, profileSvc service.ProfileService) *SlotHandler {
	return &SlotHandler{slotSvc: slotSvc, profileSvc: profileSvc}
}

// GenerateSlots 按排班生成号源
// POST /api/v1/doctors/me/slots/generate
func (h *SlotHandler) GenerateSlots(c *gin.Context) {
	var req dto.GenerateSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
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

	result, err := h.slotSvc.Generate(c.Request.Context(), doctorID, &req)
	if err != nil {
		h.handleSlotError(c, err)
		return
	}
	response.OK(c, result)
}

// ListSlots 查询医生号源（患者选号用）
// GET /api/v1/doctors/:id/slots
func (h *SlotHandler) ListSlots(c *gin.Context) {
	doctorID := c.Param("id")
	if doctorID == "" {
		response.BadRequest(c, 10001, "医生ID不能为空")
		return
	}

	var req dto.SlotListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	slots, err := h.slotSvc.List(c.Request.Context(), doctorID, &req)
	if err != nil {
		h.handleSlotError(c, err)
		return
	}
	response.OK(c, gin.H{"list": slots})
}

// handleSlotError 统一处理号源模块业务错误
func (h *SlotHandler) handleSlotError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDoctorNotFound):
		response.NotFound(c, 21001, "医生不存在")
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, 21002, "日期范围无效")
	case errors.Is(err, service.ErrDateRangeTooLarge):
		response.BadRequest(c, 21003, "日期范围超出单次生成上限")
	default:
		response.InternalError(c)
	}
}
