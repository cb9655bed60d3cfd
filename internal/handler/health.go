package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// readyTimeout 单个依赖检查的超时
const readyTimeout = 2 * time.Second

// ReadyCheck 就绪检查项
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	checks []ReadyCheck
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(checks ...ReadyCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health 健康检查
// @Summary      存活检查
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready 就绪检查，任一依赖不可用返回 503
// @Summary      就绪检查
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	results := make(map[string]string, len(h.checks))
	ready := true

	for _, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		err := check.Check(ctx)
		cancel()

		if err != nil {
			ready = false
			results[check.Name] = "unavailable"
			log.Warn().Err(err).Str("dependency", check.Name).Msg("readiness check failed")
			continue
		}
		results[check.Name] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"checks": results,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": results,
	})
}
