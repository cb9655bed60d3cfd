package report

import (
	"accountguard/internal/service/reportguard"
)

// Handler 举报处理器
type Handler struct {
	guard *reportguard.Guard
}

// NewHandler 创建举报处理器
func NewHandler(guard *reportguard.Guard) *Handler {
	return &Handler{guard: guard}
}
