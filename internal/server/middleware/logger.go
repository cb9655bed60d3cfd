package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"accountguard/internal/pkg/metrics"
)

// Logger 访问日志与请求耗时指标
// 验证和重置接口的 query/body 里有 token，只记录路由模板和 path，不记录 query
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		metrics.HTTPRequest(c.Request.Method, route, status, latency)

		// 探活请求太多，降到 debug
		if route == "/health" || route == "/ready" || route == "/metrics" {
			log.Debug().Str("path", route).Int("status", status).Msg("probe")
			return
		}

		log.WithLevel(levelFor(status)).
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(RequestIDKey)).
			Str("user_id", c.GetString(UserIDKey)).
			Int("body_size", c.Writer.Size()).
			Msg("HTTP request")
	}
}

func levelFor(status int) zerolog.Level {
	switch {
	case status >= 500:
		return zerolog.ErrorLevel
	case status >= 400:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
