package reportguard

import (
	"context"
	"strings"

	"accountguard/internal/model/account"
	"accountguard/internal/pkg/apperr"
	"accountguard/internal/pkg/id"
)

// maxReasonLength 举报理由最大长度
const maxReasonLength = 500

// CreateReport 保存一条待处理举报
// 举报的审核流程属于内容域，这里只负责落库供滥用统计使用
func (g *Guard) CreateReport(ctx context.Context, reporterID, targetType, targetID, reason string) (*account.Report, error) {
	targetType = strings.TrimSpace(targetType)
	targetID = strings.TrimSpace(targetID)
	reason = strings.TrimSpace(reason)

	switch {
	case targetType == "" || targetID == "":
		return nil, apperr.New(apperr.KindInvalidInput, apperr.CodeInvalidInputBody, "target_type and target_id are required")
	case targetType == account.TargetSystem:
		return nil, apperr.New(apperr.KindInvalidInput, apperr.CodeInvalidInputBody, "target_type is reserved")
	case len(reason) > maxReasonLength:
		return nil, apperr.New(apperr.KindInvalidInput, apperr.CodeInvalidInputBody, "reason is too long")
	}

	report := &account.Report{
		ID:         id.New(),
		ReporterID: reporterID,
		TargetType: targetType,
		TargetID:   targetID,
		Reason:     reason,
		Status:     account.ReportPending,
		CreatedAt:  g.clock.Now(),
	}
	if err := g.reports.Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}
