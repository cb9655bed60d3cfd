// Package reportguard 防止举报功能被滥用（批量恶意举报）
//
// 信号是举报人最近若干条举报中被处理（属实）的比例。新用户和低频用户不受影响；
// 持续低有效率且举报量足够大的用户会被暂停举报一段时间。
// 内部错误默认放行（fail-open），与验证服务相反。
package reportguard

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"accountguard/internal/config"
	"accountguard/internal/model/account"
	"accountguard/internal/pkg/apperr"
	"accountguard/internal/pkg/clock"
	"accountguard/internal/pkg/id"
	"accountguard/internal/pkg/metrics"
)

// 决策原因
const (
	ReasonSuspended        = "suspended"
	ReasonColdStart        = "cold_start"
	ReasonLowEffectiveRate = "low_effective_rate"
	ReasonWarning          = "warning"
	ReasonOK               = "ok"
	ReasonFailOpen         = "fail_open"
)

// CodeReportSuspended 举报被暂停
const CodeReportSuspended = "report_suspended"

// ReportRepository 举报仓库
type ReportRepository interface {
	Create(ctx context.Context, report *account.Report) error
	RecentByReporter(ctx context.Context, reporterID string, limit int) ([]*account.Report, error)
	CountByReporter(ctx context.Context, reporterID string) (int64, error)
	CountByStatus(ctx context.Context, reporterID string) (map[account.ReportStatus]int64, error)
	LatestSuspension(ctx context.Context, reporterID string, since time.Time) (*account.Report, error)
}

// Warning 不阻断的警告
type Warning struct {
	EffectiveRate float64 `json:"effectiveRate"`
	Message       string  `json:"message"`
}

// Decision 一次举报提交的判定结果
type Decision struct {
	Allowed        bool       `json:"allowed"`
	Reason         string     `json:"reason"`
	EffectiveRate  float64    `json:"effectiveRate"`
	Sampled        int        `json:"sampled"`
	Warning        *Warning   `json:"warning,omitempty"`
	SuspendedUntil *time.Time `json:"suspendedUntil,omitempty"`
}

// Err 被拒绝时对应的错误
func (d *Decision) Err() error {
	if d.Allowed {
		return nil
	}
	msg := "reporting is temporarily suspended for this account"
	if d.SuspendedUntil != nil {
		msg = fmt.Sprintf("%s until %s", msg, d.SuspendedUntil.Format(time.RFC3339))
	}
	return apperr.New(apperr.KindRateLimited, CodeReportSuspended, msg)
}

// Guard 举报滥用防护
type Guard struct {
	reports  ReportRepository
	signaler Signaler
	clock    clock.Clock
	cfg      config.ReportGuardConfig
}

// New 创建防护，signaler 可为 nil
func New(reports ReportRepository, signaler Signaler, clk clock.Clock, cfg *config.ReportGuardConfig) *Guard {
	return &Guard{
		reports:  reports,
		signaler: signaler,
		clock:    clk,
		cfg:      *cfg,
	}
}

// Check 判定举报人是否可以提交新的举报
// fail_open 开启时内部错误被记录并放行，返回的 error 恒为 nil
func (g *Guard) Check(ctx context.Context, reporterID string) (*Decision, error) {
	d, err := g.evaluate(ctx, reporterID)
	if err != nil {
		if !g.cfg.FailOpen {
			return nil, err
		}
		log.Error().Err(err).Str("reporter_id", reporterID).Msg("report guard failed, allowing submission")
		metrics.GuardDecision(ReasonFailOpen)
		return &Decision{Allowed: true, Reason: ReasonFailOpen}, nil
	}

	metrics.GuardDecision(d.Reason)
	return d, nil
}

func (g *Guard) evaluate(ctx context.Context, reporterID string) (*Decision, error) {
	now := g.clock.Now()

	until, err := g.activeSuspension(ctx, reporterID, now)
	if err != nil {
		return nil, err
	}
	if until != nil {
		return &Decision{Allowed: false, Reason: ReasonSuspended, SuspendedUntil: until}, nil
	}

	sample, err := g.reports.RecentByReporter(ctx, reporterID, g.cfg.SampleSize)
	if err != nil {
		return nil, err
	}
	if len(sample) < g.cfg.MinReports {
		return &Decision{Allowed: true, Reason: ReasonColdStart, Sampled: len(sample)}, nil
	}

	rate := effectiveRate(sample)
	d := &Decision{Allowed: true, Reason: ReasonOK, EffectiveRate: rate, Sampled: len(sample)}

	if rate < g.cfg.SuspendRate {
		total, err := g.reports.CountByReporter(ctx, reporterID)
		if err != nil {
			return nil, err
		}
		if total >= int64(g.cfg.SuspendMinReports) {
			if err := g.suspend(ctx, reporterID, now, rate, len(sample)); err != nil {
				return nil, err
			}
			until := now.Add(g.cfg.SuspensionWindow)
			d.Allowed = false
			d.Reason = ReasonLowEffectiveRate
			d.SuspendedUntil = &until
			return d, nil
		}
	}

	if w := g.warning(rate); w != nil {
		d.Reason = ReasonWarning
		d.Warning = w
	}
	return d, nil
}

// activeSuspension 返回生效中封禁的结束时间；now - suspended_at < window 才算生效
func (g *Guard) activeSuspension(ctx context.Context, reporterID string, now time.Time) (*time.Time, error) {
	s, err := g.reports.LatestSuspension(ctx, reporterID, now.Add(-g.cfg.SuspensionWindow))
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	at, ok := s.SuspendedAt()
	if !ok || now.Sub(at) >= g.cfg.SuspensionWindow {
		return nil, nil
	}
	until := at.Add(g.cfg.SuspensionWindow)
	return &until, nil
}

func (g *Guard) suspend(ctx context.Context, reporterID string, now time.Time, rate float64, sampled int) error {
	record := &account.Report{
		ID:         id.New(),
		ReporterID: reporterID,
		TargetType: account.TargetSystem,
		TargetID:   reporterID,
		Reason:     ReasonLowEffectiveRate,
		Status:     account.ReportProcessed,
		ActionMeta: map[string]any{
			account.MetaSuspended:     true,
			account.MetaSuspendedAt:   now,
			account.MetaEffectiveRate: rate,
			account.MetaSampled:       sampled,
		},
		CreatedAt: now,
	}
	if err := g.reports.Create(ctx, record); err != nil {
		return err
	}

	log.Warn().
		Str("reporter_id", reporterID).
		Float64("effective_rate", rate).
		Int("sampled", sampled).
		Msg("reporter suspended for low effective rate")

	if g.signaler != nil {
		event := SuspensionEvent{
			ReporterID:    reporterID,
			SuspendedAt:   now,
			Until:         now.Add(g.cfg.SuspensionWindow),
			EffectiveRate: rate,
			Sampled:       sampled,
		}
		if err := g.signaler.Suspended(ctx, event); err != nil {
			log.Warn().Err(err).Str("reporter_id", reporterID).Msg("failed to signal suspension")
		}
	}
	return nil
}

func (g *Guard) warning(rate float64) *Warning {
	if rate >= g.cfg.WarnRate {
		return nil
	}
	return &Warning{
		EffectiveRate: rate,
		Message: fmt.Sprintf("Only %.0f%% of your recent reports were confirmed. "+
			"Repeated inaccurate reports may lead to a temporary suspension of reporting.", rate*100),
	}
}

func effectiveRate(sample []*account.Report) float64 {
	if len(sample) == 0 {
		return 0
	}
	processed := 0
	for _, r := range sample {
		if r.Status == account.ReportProcessed {
			processed++
		}
	}
	return float64(processed) / float64(len(sample))
}
