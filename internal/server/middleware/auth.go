package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"accountguard/internal/pkg/apperr"
	"accountguard/internal/pkg/ctxutil"
	"accountguard/internal/pkg/http"
	"accountguard/internal/pkg/id"
	"accountguard/internal/pkg/jwt"
)

// UserIDKey gin 上下文中的用户ID
const UserIDKey = "user_id"

var errUnauthorized = apperr.New(apperr.KindUnauthorized, apperr.CodeInvalidToken, "missing or invalid access token")

// Auth JWT 认证中间件
// 从 Authorization header 中提取 Bearer token，验证后注入 user_id 到 context
func Auth(jwtUtil *jwt.JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 提取 Token（Bearer {token}）
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			http.Error(c, errUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwtUtil.ValidateToken(parts[1])
		if err != nil || !id.IsValid(claims.UserID) {
			msg := "access token is invalid"
			if err == jwt.ErrExpiredToken {
				msg = "access token has expired"
			}
			http.Error(c, apperr.New(apperr.KindUnauthorized, apperr.CodeInvalidToken, msg))
			c.Abort()
			return
		}

		// 将 user_id 注入到 context
		ctx := ctxutil.WithUserID(c.Request.Context(), claims.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(UserIDKey, claims.UserID)

		c.Next()
	}
}

// UserID 当前登录用户，Auth 之后调用
func UserID(c *gin.Context) (string, bool) {
	return ctxutil.GetUserID(c.Request.Context())
}
