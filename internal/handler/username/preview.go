package username

import (
	"net/http"

	"github.com/gin-gonic/gin"

	response "accountguard/internal/pkg/http"
)

// PreviewRequest 预览请求
type PreviewRequest struct {
	Provider string         `json:"provider" binding:"required"` // 第三方登录来源：google/github/...
	Profile  map[string]any `json:"profile" binding:"required"`  // 第三方返回的原始资料
}

// PreviewResponseData 预览结果
type PreviewResponseData struct {
	Suggestions []string `json:"suggestions"`
}

// Preview 根据第三方资料预览可用用户名
// @Summary      预览用户名
// @Description  根据第三方登录资料生成可用的用户名建议
// @Tags         用户名
// @Accept       json
// @Produce      json
// @Param        request  body      PreviewRequest  true  "预览请求"
// @Success      200      {object}  response.Response{data=PreviewResponseData}
// @Failure      400      {object}  response.Response
// @Failure      503      {object}  response.Response
// @Router       /api/v1/username/preview [post]
func (h *Handler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	names, err := h.svc.Preview(c.Request.Context(), req.Provider, req.Profile)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, "success", PreviewResponseData{Suggestions: names})
}
