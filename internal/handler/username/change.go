package username

import (
	"net/http"

	"github.com/gin-gonic/gin"

	response "accountguard/internal/pkg/http"
	"accountguard/internal/server/middleware"
)

// ChangeRequest 修改用户名请求
type ChangeRequest struct {
	Username        string `json:"username" binding:"required"`        // 新用户名
	CurrentPassword string `json:"currentPassword" binding:"required"` // 当前密码
}

// Change 修改用户名
// @Summary      修改用户名
// @Description  校验当前密码，30 天内只能修改一次，旧用户名保留在历史中
// @Tags         用户名
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      ChangeRequest  true  "修改请求"
// @Success      200      {object}  response.Response{data=username.ChangeResult}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/v1/username/change [post]
func (h *Handler) Change(c *gin.Context) {
	var req ChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	userID, _ := middleware.UserID(c)
	result, err := h.svc.Change(c.Request.Context(), userID, req.Username, req.CurrentPassword)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, "username changed", result)
}
