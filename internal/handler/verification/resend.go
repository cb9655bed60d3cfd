package verification

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	response "accountguard/internal/pkg/http"
)

// Resend 重新发送验证邮件
// 请求体已被冷却中间件缓存，这里用 ShouldBindBodyWith 读取
// @Summary      重发验证邮件
// @Description  在发送接口的约束之外，额外受更短的接口冷却限制
// @Tags         邮箱验证
// @Accept       json
// @Produce      json
// @Param        request  body      EmailRequest  true  "邮箱"
// @Success      200      {object}  response.Response{data=verification.SendResult}
// @Failure      400      {object}  response.Response
// @Failure      429      {object}  response.Response
// @Router       /api/v1/verification/resend [post]
func (h *Handler) Resend(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.BadRequest(c, err)
		return
	}

	result, err := h.svc.Resend(c.Request.Context(), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, "verification email sent", result)
}
