package username

import (
	"net/http"

	"github.com/gin-gonic/gin"

	response "accountguard/internal/pkg/http"
	"accountguard/internal/server/middleware"
)

// Suggestions 当前用户的用户名建议
// @Summary      用户名建议
// @Description  返回排除当前用户名的建议，以及是否处于 30 天修改冷却期
// @Tags         用户名
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=username.Suggestions}
// @Failure      401  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/v1/username/suggestions [get]
func (h *Handler) Suggestions(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	result, err := h.svc.SuggestionsFor(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, "success", result)
}
