package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey = "request_id"

	// HeaderRequestID 请求追踪 ID 的请求/响应头
	HeaderRequestID = "X-Request-ID"

	// requestIDMaxLen 限制外部传入的 Request-ID 最大长度，防止日志注入
	requestIDMaxLen = 64
)

// RequestID 请求追踪 ID 中间件。
// 优先沿用调用方传入的 X-Request-ID，缺失或超长时生成 UUID，
// 注入 gin.Context 供访问日志关联，并回写响应头。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" || len(rid) > requestIDMaxLen {
			rid = uuid.New().String()
		}

		c.Set(requestIDKey, rid)
		c.Header(HeaderRequestID, rid)

		c.Next()
	}
}

// GetRequestID 读取当前请求的追踪 ID，未注入时返回空串
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
