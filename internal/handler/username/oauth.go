package username

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"accountguard/internal/pkg/apperr"
	response "accountguard/internal/pkg/http"
)

// OAuthRequest 第三方登录回调后的资料
type OAuthRequest struct {
	Profile map[string]any `json:"profile" binding:"required"`
}

// OAuthResponseData 登录结果
type OAuthResponseData struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	ExpiresIn   int      `json:"expires_in"`
	User        UserInfo `json:"user"`
}

// OAuthLogin 第三方登录：首次登录时分配用户名并创建用户
// @Summary      第三方登录
// @Description  接收身份提供方返回的资料，首次登录时自动分配唯一用户名
// @Tags         认证
// @Accept       json
// @Produce      json
// @Param        provider  path      string        true  "google/github/facebook/..."
// @Param        request   body      OAuthRequest  true  "资料"
// @Success      200       {object}  response.Response{data=OAuthResponseData}
// @Failure      400       {object}  response.Response
// @Failure      409       {object}  response.Response
// @Router       /api/v1/auth/oauth/{provider} [post]
func (h *Handler) OAuthLogin(c *gin.Context) {
	var req OAuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	user, err := h.svc.CreateOAuthUser(c.Request.Context(), c.Param("provider"), req.Profile)
	if err != nil {
		response.Error(c, err)
		return
	}

	token, err := h.jwt.GenerateToken(user.ID, user.Username)
	if err != nil {
		log.Error().Err(err).Msg("failed to generate access token")
		response.Error(c, apperr.Wrap(err, apperr.KindInternal, apperr.CodeInternal, "failed to generate token"))
		return
	}

	response.OK(c, http.StatusOK, "login success", OAuthResponseData{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.jwt.GetExpiration().Seconds()),
		User:        toUserInfo(user),
	})
}
