package handler

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/dto"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/service"
	"github.com/minhducn14/dutu-pulmo-be-sub001/pkg/response"
)

// StatsHandler 统计与导出模块 HTTP 处理器
type StatsHandler struct {
	statsSvc   service.StatsService
	profileSvc service.ProfileService
}

// NewStatsHandler 创建 StatsHandler
func NewStatsHandler(statsSvc service.StatsService, profileSvc service.ProfileService) *StatsHandler {
	return &StatsHandler{statsSvc: statsSvc, profileSvc: profileSvc}
}

// bindStats 解析查询参数，医生角色强制只看本人数据
func (h *StatsHandler) bindStats(c *gin.Context) (*dto.StatsRequest, bool) {
	var req dto.StatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return nil, false
	}

	role, ok := MustGetRole(c)
	if !ok {
		return nil, false
	}
	if role == "doctor" {
		userID, ok := MustGetUserID(c)
		if !ok {
			return nil, false
		}
		doctorID, err := h.profileSvc.DoctorIDByUser(c.Request.Context(), userID)
		if err != nil {
			response.Forbidden(c, 20001, "医生档案不存在")
			return nil, false
		}
		req.DoctorID = doctorID
	}
	return &req, true
}

// doctorID 把登录用户解析为医生档案 ID
func (h *StatsHandler) doctorID(c *gin.Context) (string, bool) {
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

// GetStats 预约统计
// GET /api/v1/stats/appointments
func (h *StatsHandler) GetStats(c *gin.Context) {
	req, ok := h.bindStats(c)
	if !ok {
		return
	}

	stats, err := h.statsSvc.Stats(c.Request.Context(), req)
	if err != nil {
		h.handleStatsError(c, err)
		return
	}
	response.OK(c, stats)
}

// Dashboard 医生工作台概览
// GET /api/v1/stats/dashboard
func (h *StatsHandler) Dashboard(c *gin.Context) {
	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}

	resp, err := h.statsSvc.Dashboard(c.Request.Context(), doctorID)
	if err != nil {
		h.handleStatsError(c, err)
		return
	}
	response.OK(c, resp)
}

// TodayQueue 当日候诊队列
// GET /api/v1/stats/queue
func (h *StatsHandler) TodayQueue(c *gin.Context) {
	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}

	entries, err := h.statsSvc.TodayQueue(c.Request.Context(), doctorID)
	if err != nil {
		h.handleStatsError(c, err)
		return
	}
	response.OK(c, entries)
}

// Calendar 月历视图
// GET /api/v1/stats/calendar?month=2026-08
func (h *StatsHandler) Calendar(c *gin.Context) {
	month := c.Query("month")
	if month == "" {
		response.BadRequest(c, 10001, "month 参数不能为空")
		return
	}

	doctorID, ok := h.doctorID(c)
	if !ok {
		return
	}

	days, err := h.statsSvc.Calendar(c.Request.Context(), doctorID, month)
	if err != nil {
		h.handleStatsError(c, err)
		return
	}
	response.OK(c, days)
}

// ExportAppointments 导出预约明细 Excel
// GET /api/v1/stats/appointments/export
func (h *StatsHandler) ExportAppointments(c *gin.Context) {
	req, ok := h.bindStats(c)
	if !ok {
		return
	}

	buf, filename, err := h.statsSvc.ExportAppointments(c.Request.Context(), req)
	if err != nil {
		h.handleStatsError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(filename)))
	c.Data(200, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// handleStatsError 统一处理统计模块业务错误
func (h *StatsHandler) handleStatsError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDateRange):
		response.BadRequest(c, 24001, "日期范围无效")
	case errors.Is(err, service.ErrExportNoData):
		response.NotFound(c, 24002, "所选日期范围内没有预约数据")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
