package username

import (
	"net/http"

	"github.com/gin-gonic/gin"

	response "accountguard/internal/pkg/http"
)

// Check 检查用户名是否可用
// @Summary      检查用户名
// @Description  返回用户名是否可用；不可用时 reason 为 invalid_format/reserved/taken
// @Tags         用户名
// @Produce      json
// @Param        username  path      string  true  "用户名"
// @Success      200       {object}  response.Response{data=username.CheckResult}
// @Failure      503       {object}  response.Response
// @Router       /api/v1/username/check/{username} [get]
func (h *Handler) Check(c *gin.Context) {
	result, err := h.svc.Check(c.Request.Context(), c.Param("username"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, "success", result)
}
