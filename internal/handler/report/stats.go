package report

import (
	"net/http"

	"github.com/gin-gonic/gin"

	response "accountguard/internal/pkg/http"
	"accountguard/internal/server/middleware"
)

// Stats 当前用户的举报统计
// @Summary      举报统计
// @Tags         举报
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=reportguard.Stats}
// @Failure      401  {object}  response.Response
// @Failure      503  {object}  response.Response
// @Router       /api/v1/reports/stats [get]
func (h *Handler) Stats(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	stats, err := h.guard.GetUserReportStats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, "success", stats)
}
