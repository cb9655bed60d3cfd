package verification

import (
	"net/http"

	"github.com/gin-gonic/gin"

	response "accountguard/internal/pkg/http"
)

// Verify 验证邮箱
// @Summary      验证邮箱
// @Description  token 错误、已使用、已过期统一返回 invalid_or_expired
// @Tags         邮箱验证
// @Produce      json
// @Param        token  query     string  true  "验证 token"
// @Success      200    {object}  response.Response{data=verification.VerifyResult}
// @Failure      400    {object}  response.Response
// @Failure      404    {object}  response.Response
// @Failure      409    {object}  response.Response
// @Router       /api/v1/verification/verify [get]
func (h *Handler) Verify(c *gin.Context) {
	result, err := h.svc.Verify(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, "email verified", result)
}
