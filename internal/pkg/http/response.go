package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"accountguard/internal/pkg/apperr"
)

// Response 统一响应格式
type Response struct {
	Success bool        `json:"success"`          // 是否成功
	Code    string      `json:"code,omitempty"`   // 错误码（失败时）
	Message string      `json:"message"`          // 响应消息
	Data    interface{} `json:"data,omitempty"`   // 响应数据（可选）
	Detail  string      `json:"detail,omitempty"` // 错误详情（可选）
}

// OK 写入成功响应
func OK(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// BadRequest 请求体无法解析
func BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Code:    apperr.CodeInvalidInputBody,
		Message: "Invalid request body",
		Detail:  err.Error(),
	})
}

// Error 按错误分类写入失败响应
func Error(c *gin.Context, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString("request_id")).
			Msg("request failed")
	}

	if apperr.Retryable(err) {
		c.Header("Retry-After", "1")
	}

	c.JSON(status, Response{
		Success: false,
		Code:    apperr.CodeOf(err),
		Message: apperr.MessageOf(err),
	})
}

// StatusOf 错误分类到 HTTP 状态码
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindAlreadyDone:
		return http.StatusConflict
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
