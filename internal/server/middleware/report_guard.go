package middleware

import (
	"github.com/gin-gonic/gin"

	"accountguard/internal/pkg/http"
	"accountguard/internal/service/reportguard"
)

const reportDecisionKey = "report_guard_decision"

// ReportGuard 举报提交前的滥用检查，需在 Auth 之后
func ReportGuard(g *reportguard.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			http.Error(c, errUnauthorized)
			c.Abort()
			return
		}

		d, err := g.Check(c.Request.Context(), userID)
		if err != nil {
			http.Error(c, err)
			c.Abort()
			return
		}
		if !d.Allowed {
			if d.SuspendedUntil != nil {
				c.Header("Retry-After", d.SuspendedUntil.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"))
			}
			http.Error(c, d.Err())
			c.Abort()
			return
		}

		c.Set(reportDecisionKey, d)
		c.Next()
	}
}

// ReportDecision 取出 ReportGuard 的判定
func ReportDecision(c *gin.Context) *reportguard.Decision {
	if v, ok := c.Get(reportDecisionKey); ok {
		if d, ok := v.(*reportguard.Decision); ok {
			return d
		}
	}
	return nil
}
