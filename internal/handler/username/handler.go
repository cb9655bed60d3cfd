package username

import (
	"accountguard/internal/pkg/jwt"
	"accountguard/internal/service/username"
)

// Handler 用户名处理器
type Handler struct {
	svc *username.Service
	jwt *jwt.JWT
}

// NewHandler 创建用户名处理器
func NewHandler(svc *username.Service, jwtUtil *jwt.JWT) *Handler {
	return &Handler{
		svc: svc,
		jwt: jwtUtil,
	}
}
