package report

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	response "accountguard/internal/pkg/http"
	"accountguard/internal/server/middleware"
	"accountguard/internal/service/reportguard"
)

// CreateRequest 举报请求
type CreateRequest struct {
	TargetType string `json:"target_type" binding:"required"` // post/comment/user
	TargetID   string `json:"target_id" binding:"required"`
	Reason     string `json:"reason"`
}

// CreateResponseData 举报结果
type CreateResponseData struct {
	ID        string               `json:"id"`
	Status    string               `json:"status"`
	CreatedAt string               `json:"created_at"`
	Warning   *reportguard.Warning `json:"warning,omitempty"`
}

// Create 提交举报
// 经过 ReportGuard 中间件；有效率偏低时附带 warning
// @Summary      提交举报
// @Tags         举报
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      CreateRequest  true  "举报"
// @Success      201      {object}  response.Response{data=CreateResponseData}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Failure      429      {object}  response.Response
// @Router       /api/v1/reports [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	userID, _ := middleware.UserID(c)
	report, err := h.guard.CreateReport(c.Request.Context(), userID, req.TargetType, req.TargetID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	data := CreateResponseData{
		ID:        report.ID,
		Status:    string(report.Status),
		CreatedAt: report.CreatedAt.Format(time.RFC3339),
	}
	if d := middleware.ReportDecision(c); d != nil {
		data.Warning = d.Warning
	}

	response.OK(c, http.StatusCreated, "report submitted", data)
}
