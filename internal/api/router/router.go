package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/minhducn14/dutu-pulmo-be-sub001/config"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/api/handler"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/api/middleware"
	"github.com/minhducn14/dutu-pulmo-be-sub001/pkg/jwt"
	"github.com/minhducn14/dutu-pulmo-be-sub001/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(1 << 20))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			// 医生排班模块
			doctorSchedules := authorized.Group("/doctors/me/schedules")
			doctorSchedules.Use(middleware.RoleAuth("doctor"))
			{
				doctorSchedules.POST("/regular", h.Schedule.CreateRegular)
				doctorSchedules.POST("/regular/bulk", h.Schedule.CreateRegularBulk)
				doctorSchedules.POST("/flexible", h.Schedule.CreateFlexible)
				doctorSchedules.POST("/time-off", h.Schedule.CreateTimeOff)
				doctorSchedules.GET("", h.Schedule.ListSchedules)
				doctorSchedules.PUT("/:id", h.Schedule.UpdateSchedule)
				doctorSchedules.DELETE("/:id", h.Schedule.DeleteSchedule)
			}
			authorized.GET("/schedules/:id", h.Schedule.GetSchedule)

			// 号源时段模块
			authorized.POST("/doctors/me/slots/generate",
				middleware.RoleAuth("doctor"),
				middleware.RateLimit(rdb, 10, time.Minute),
				h.Slot.GenerateSlots)
			authorized.GET("/doctors/:id/slots", h.Slot.ListSlots)

			// 预约模块
			appointments := authorized.Group("/appointments")
			{
				appointments.POST("", middleware.RoleAuth("patient"), h.Appointment.Book)
				appointments.GET("/:id", h.Appointment.GetAppointment)
				appointments.POST("/:id/payment/confirm", middleware.RoleAuth("patient"), h.Appointment.ConfirmPayment)
				appointments.POST("/check-in", middleware.RoleAuth("patient"), h.Appointment.CheckInByNumber)
				appointments.POST("/:id/check-in", middleware.RoleAuth("patient"), h.Appointment.CheckIn)
				appointments.PUT("/:id/status", middleware.RoleAuth("doctor"), h.Appointment.UpdateStatus)
				appointments.POST("/:id/cancel", h.Appointment.Cancel) // 患者/医生均可（Service 层鉴权）
				appointments.POST("/:id/reschedule", middleware.RoleAuth("patient"), h.Appointment.Reschedule)

				// 视频问诊
				appointments.POST("/:id/call/join", h.Video.Join)
				appointments.POST("/:id/call/leave", h.Video.Leave)
				appointments.GET("/:id/call/status", h.Video.CallStatus)
				appointments.POST("/:id/call/end", middleware.RoleAuth("doctor"), h.Video.End)
			}
			authorized.GET("/patients/me/appointments", middleware.RoleAuth("patient"), h.Appointment.ListMyAppointments)
			authorized.GET("/doctors/me/appointments", middleware.RoleAuth("doctor"), h.Appointment.ListDoctorAppointments)

			// 统计与导出模块
			stats := authorized.Group("/stats")
			stats.Use(middleware.RoleAuth("doctor", "admin"))
			{
				stats.GET("/appointments", h.Stats.GetStats)
				stats.GET("/appointments/export", h.Stats.ExportAppointments)
				stats.GET("/dashboard", middleware.RoleAuth("doctor"), h.Stats.Dashboard)
				stats.GET("/queue", middleware.RoleAuth("doctor"), h.Stats.TodayQueue)
				stats.GET("/calendar", middleware.RoleAuth("doctor"), h.Stats.Calendar)
			}
		}
	}

	return r
}
