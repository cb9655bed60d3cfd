package verification

import (
	"net/http"

	"github.com/gin-gonic/gin"

	response "accountguard/internal/pkg/http"
)

// Send 发送验证邮件
// @Summary      发送验证邮件
// @Description  同一用户同时最多存在一个未过期的验证 token
// @Tags         邮箱验证
// @Accept       json
// @Produce      json
// @Param        request  body      EmailRequest  true  "邮箱"
// @Success      200      {object}  response.Response{data=verification.SendResult}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Failure      429      {object}  response.Response
// @Failure      503      {object}  response.Response
// @Router       /api/v1/verification/send [post]
func (h *Handler) Send(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	result, err := h.svc.RequestEmailVerification(c.Request.Context(), req.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, "verification email sent", result)
}
