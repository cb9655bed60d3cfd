package account

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"accountguard/internal/model/account"
	"accountguard/internal/pkg/mongodb"
	"accountguard/internal/repository"
)

// ReportRepo 举报仓库
type ReportRepo struct {
	collection *mongo.Collection
}

// NewReportRepo 创建举报仓库
func NewReportRepo(db *mongo.Database) *ReportRepo {
	var r account.Report
	return &ReportRepo{
		collection: db.Collection(r.Collection()),
	}
}

// Create 保存举报
func (r *ReportRepo) Create(ctx context.Context, report *account.Report) error {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, report)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return mongodb.Classify(err)
}

// userFilter 用户举报（排除系统记录）
func userFilter(reporterID string) bson.M {
	return bson.M{
		"reporter_id": reporterID,
		"target_type": bson.M{"$ne": account.TargetSystem},
	}
}

// RecentByReporter 最近 limit 条举报（不含系统记录）
func (r *ReportRepo) RecentByReporter(ctx context.Context, reporterID string, limit int) ([]*account.Report, error) {
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, userFilter(reporterID), opts)
	if err != nil {
		return nil, mongodb.Classify(err)
	}
	defer cursor.Close(ctx)

	var reports []*account.Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, mongodb.Classify(err)
	}
	return reports, nil
}

// CountByReporter 用户举报总数（不含系统记录）
func (r *ReportRepo) CountByReporter(ctx context.Context, reporterID string) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, userFilter(reporterID))
	if err != nil {
		return 0, mongodb.Classify(err)
	}
	return count, nil
}

// CountByStatus 按状态聚合用户举报
func (r *ReportRepo) CountByStatus(ctx context.Context, reporterID string) (map[account.ReportStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: userFilter(reporterID)}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, mongodb.Classify(err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status account.ReportStatus `bson:"_id"`
		Count  int64                `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, mongodb.Classify(err)
	}

	counts := make(map[account.ReportStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// LatestSuspension 查找 suspended_at >= since 的最新封禁记录
func (r *ReportRepo) LatestSuspension(ctx context.Context, reporterID string, since time.Time) (*account.Report, error) {
	filter := bson.M{
		"reporter_id":              reporterID,
		"target_type":              account.TargetSystem,
		"action_meta.suspended":    true,
		"action_meta.suspended_at": bson.M{"$gte": since},
	}
	opts := options.FindOne().SetSort(bson.D{bson.E{Key: "action_meta.suspended_at", Value: -1}})

	var report account.Report
	err := r.collection.FindOne(ctx, filter, opts).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNoSuspension
	}
	if err != nil {
		return nil, mongodb.Classify(err)
	}
	return &report, nil
}
