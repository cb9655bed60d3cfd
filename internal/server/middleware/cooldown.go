package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog/log"

	"accountguard/internal/pkg/apperr"
	"accountguard/internal/pkg/http"
)

// Cooldown 冷却窗口（Redis 或进程内实现）
type Cooldown interface {
	Acquire(ctx context.Context, key string, window time.Duration) (bool, time.Duration, error)
}

type emailBody struct {
	Email string `json:"email"`
}

// ResendCooldown 按邮箱限制重发频率
// 请求体通过 ShouldBindBodyWith 缓存，后续 handler 必须用同样方式读取
// 冷却存储不可用时放行：每个用户最多一个有效 token 的约束仍由服务保证
func ResendCooldown(cd Cooldown, window time.Duration, keyFn func(subject string) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body emailBody
		_ = c.ShouldBindBodyWith(&body, binding.JSON)

		subject := strings.ToLower(strings.TrimSpace(body.Email))
		if subject == "" {
			subject = "ip:" + c.ClientIP()
		}

		ok, retryAfter, err := cd.Acquire(c.Request.Context(), keyFn(subject), window)
		if err != nil {
			log.Warn().Err(err).Msg("cooldown store unavailable, allowing request")
			c.Next()
			return
		}
		if !ok {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			http.Error(c, apperr.New(apperr.KindRateLimited, apperr.CodeTooManyRequests,
				fmt.Sprintf("please wait %d seconds before requesting another email", seconds)))
			c.Abort()
			return
		}

		c.Next()
	}
}
