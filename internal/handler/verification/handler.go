package verification

import (
	"accountguard/internal/service/verification"
)

// Handler 邮箱验证与密码重置处理器
type Handler struct {
	svc *verification.Service
}

// NewHandler 创建处理器
func NewHandler(svc *verification.Service) *Handler {
	return &Handler{svc: svc}
}

// EmailRequest 只包含邮箱的请求
type EmailRequest struct {
	Email string `json:"email" binding:"required"`
}
