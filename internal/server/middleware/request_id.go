package middleware

import (
	"github.com/gin-gonic/gin"

	"accountguard/internal/pkg/ctxutil"
	"accountguard/internal/pkg/id"
)

// 请求ID
const (
	RequestIDHeader = "X-Request-ID"
	RequestIDKey    = "request_id"
)

// RequestID 透传或生成请求ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" || len(rid) > 64 {
			rid = id.New()
		}

		c.Set(RequestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), rid))

		c.Next()
	}
}
