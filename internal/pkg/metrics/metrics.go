// Package metrics Prometheus 指标
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	usernameAllocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accountguard_username_allocations_total",
		Help: "Usernames allocated, by the strategy that produced them",
	}, []string{"strategy"})

	usernameConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "accountguard_username_reservation_conflicts_total",
		Help: "Username reservations rejected by the unique index",
	})

	tokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accountguard_verification_tokens_issued_total",
		Help: "Verification tokens issued, by type",
	}, []string{"type"})

	tokenRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accountguard_verification_token_redemptions_total",
		Help: "Token redemption attempts, by type and outcome",
	}, []string{"type", "outcome"})

	deliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accountguard_mail_delivery_failures_total",
		Help: "Mail deliveries that failed, by template",
	}, []string{"template"})

	guardDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accountguard_report_guard_decisions_total",
		Help: "Report abuse guard decisions, by reason",
	}, []string{"reason"})

	tokensReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "accountguard_verification_tokens_reaped_total",
		Help: "Expired verification tokens deleted by the reaper",
	})

	httpRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "accountguard_http_request_duration_seconds",
		Help:    "HTTP request latency, by route template and status",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// UsernameAllocated 记录分配成功的策略
func UsernameAllocated(strategy string) {
	usernameAllocations.WithLabelValues(strategy).Inc()
}

// UsernameConflict 记录一次唯一冲突
func UsernameConflict() {
	usernameConflicts.Inc()
}

// TokenIssued 记录签发
func TokenIssued(tokenType string) {
	tokensIssued.WithLabelValues(tokenType).Inc()
}

// TokenRedeemed 记录兑换结果
func TokenRedeemed(tokenType, outcome string) {
	tokenRedemptions.WithLabelValues(tokenType, outcome).Inc()
}

// DeliveryFailed 记录投递失败
func DeliveryFailed(templateID string) {
	deliveryFailures.WithLabelValues(templateID).Inc()
}

// GuardDecision 记录举报防护决策
func GuardDecision(reason string) {
	guardDecisions.WithLabelValues(reason).Inc()
}

// TokensReaped 记录清理数量
func TokensReaped(n int64) {
	tokensReaped.Add(float64(n))
}

// HTTPRequest 记录请求耗时；route 使用路由模板，未匹配的路由记为 unmatched
func HTTPRequest(method, route string, status int, latency time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(latency.Seconds())
}
