package reportguard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"accountguard/internal/model/account"
)

// Stats 举报统计
type Stats struct {
	Total          int64      `json:"total"`
	Processed      int64      `json:"processed"`
	Rejected       int64      `json:"rejected"`
	Pending        int64      `json:"pending"`
	EffectiveRate  float64    `json:"effectiveRate"`
	Sampled        int        `json:"sampled"`
	Suspended      bool       `json:"suspended"`
	SuspendedUntil *time.Time `json:"suspendedUntil,omitempty"`
	Warning        *Warning   `json:"warning,omitempty"`
}

// GetUserReportStats 只读统计，与 Check 的放行策略无关，错误直接返回
func (g *Guard) GetUserReportStats(ctx context.Context, userID string) (*Stats, error) {
	now := g.clock.Now()

	var (
		counts map[account.ReportStatus]int64
		sample []*account.Report
		until  *time.Time
	)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		counts, err = g.reports.CountByStatus(ctx, userID)
		return err
	})
	eg.Go(func() error {
		var err error
		sample, err = g.reports.RecentByReporter(ctx, userID, g.cfg.SampleSize)
		return err
	})
	eg.Go(func() error {
		var err error
		until, err = g.activeSuspension(ctx, userID, now)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	stats := &Stats{
		Processed:      counts[account.ReportProcessed],
		Rejected:       counts[account.ReportRejected],
		Pending:        counts[account.ReportPending],
		EffectiveRate:  effectiveRate(sample),
		Sampled:        len(sample),
		Suspended:      until != nil,
		SuspendedUntil: until,
	}
	for _, n := range counts {
		stats.Total += n
	}
	if stats.Sampled >= g.cfg.MinReports {
		stats.Warning = g.warning(stats.EffectiveRate)
	}
	return stats, nil
}
