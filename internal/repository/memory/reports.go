package memory

import (
	"context"
	"sort"
	"time"

	"accountguard/internal/model/account"
	"accountguard/internal/repository"
)

// ReportRepo 内存举报仓库
type ReportRepo struct {
	s *Store
}

// NewReportRepo 创建举报仓库
func NewReportRepo(s *Store) *ReportRepo {
	return &ReportRepo{s: s}
}

// Create 保存举报
func (r *ReportRepo) Create(ctx context.Context, report *account.Report) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.reports {
		if existing.ID == report.ID {
			return repository.ErrDuplicate
		}
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	r.s.reports = append(r.s.reports, report.Clone())
	id := report.ID
	r.s.record(ctx, func() {
		for i, existing := range r.s.reports {
			if existing.ID == id {
				r.s.reports = append(r.s.reports[:i], r.s.reports[i+1:]...)
				return
			}
		}
	})
	return nil
}

// userReports 返回用户的非系统举报，按 created_at 倒序，调用方需持有读锁
func (r *ReportRepo) userReports(reporterID string) []*account.Report {
	var out []*account.Report
	for i := len(r.s.reports) - 1; i >= 0; i-- {
		report := r.s.reports[i]
		if report.ReporterID == reporterID && report.TargetType != account.TargetSystem {
			out = append(out, report)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// RecentByReporter 最近 limit 条举报（不含系统记录）
func (r *ReportRepo) RecentByReporter(_ context.Context, reporterID string, limit int) ([]*account.Report, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.userReports(reporterID)
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]*account.Report, 0, len(all))
	for _, report := range all {
		out = append(out, report.Clone())
	}
	return out, nil
}

// CountByReporter 用户举报总数（不含系统记录）
func (r *ReportRepo) CountByReporter(_ context.Context, reporterID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.userReports(reporterID))), nil
}

// CountByStatus 按状态统计用户举报（不含系统记录）
func (r *ReportRepo) CountByStatus(_ context.Context, reporterID string) (map[account.ReportStatus]int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[account.ReportStatus]int64)
	for _, report := range r.userReports(reporterID) {
		counts[report.Status]++
	}
	return counts, nil
}

// LatestSuspension 查找 suspended_at >= since 的最新封禁记录
func (r *ReportRepo) LatestSuspension(_ context.Context, reporterID string, since time.Time) (*account.Report, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var latest *account.Report
	var latestAt time.Time
	for _, report := range r.s.reports {
		if report.ReporterID != reporterID || !report.IsSuspension() {
			continue
		}
		at, ok := report.SuspendedAt()
		if !ok || at.Before(since) {
			continue
		}
		if latest == nil || at.After(latestAt) {
			latest, latestAt = report, at
		}
	}
	if latest == nil {
		return nil, repository.ErrNoSuspension
	}
	return latest.Clone(), nil
}
