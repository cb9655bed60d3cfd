package verification

import (
	"net/http"

	"github.com/gin-gonic/gin"

	response "accountguard/internal/pkg/http"
)

// ResetPasswordRequest 重置密码请求
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ForgotPassword 发送密码重置邮件
// 邮箱未注册时同样返回成功
// @Summary      忘记密码
// @Tags         密码
// @Accept       json
// @Produce      json
// @Param        request  body      EmailRequest  true  "邮箱"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      503      {object}  response.Response
// @Router       /api/v1/password/forgot [post]
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	if _, err := h.svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, "if the email is registered, a reset link has been sent", nil)
}

// ResetPassword 重置密码
// @Summary      重置密码
// @Tags         密码
// @Accept       json
// @Produce      json
// @Param        request  body      ResetPasswordRequest  true  "重置请求"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /api/v1/password/reset [post]
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	if err := h.svc.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, "password updated", nil)
}
