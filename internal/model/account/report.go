package account

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReportStatus 举报处理状态
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportProcessed ReportStatus = "processed" // 举报属实并已处理
	ReportRejected  ReportStatus = "rejected"
)

// TargetSystem 系统记录（封禁事件）的 target_type
const TargetSystem = "system"

// action_meta 中封禁相关字段
const (
	MetaSuspended     = "suspended"
	MetaSuspendedAt   = "suspended_at"
	MetaEffectiveRate = "effective_rate"
	MetaSampled       = "sampled"
)

// Report 举报记录（由内容域写入，这里只做滥用统计）
type Report struct {
	ID         string         `bson:"_id,omitempty" json:"id"`
	ReporterID string         `bson:"reporter_id" json:"reporter_id"`
	TargetType string         `bson:"target_type" json:"target_type"`
	TargetID   string         `bson:"target_id" json:"target_id"`
	Reason     string         `bson:"reason" json:"reason"`
	Status     ReportStatus   `bson:"status" json:"status"`
	ActionMeta map[string]any `bson:"action_meta,omitempty" json:"action_meta,omitempty"`
	CreatedAt  time.Time      `bson:"created_at" json:"created_at"`
}

// IsSuspension 是否为封禁记录
func (r *Report) IsSuspension() bool {
	if r.TargetType != TargetSystem || r.ActionMeta == nil {
		return false
	}
	suspended, _ := r.ActionMeta[MetaSuspended].(bool)
	return suspended
}

// SuspendedAt 封禁时间
func (r *Report) SuspendedAt() (time.Time, bool) {
	if r.ActionMeta == nil {
		return time.Time{}, false
	}
	switch v := r.ActionMeta[MetaSuspendedAt].(type) {
	case time.Time:
		return v.UTC(), true
	case interface{ Time() time.Time }: // primitive.DateTime
		return v.Time().UTC(), true
	}
	return time.Time{}, false
}

// Clone 深拷贝（action_meta 浅拷贝一层）
func (r *Report) Clone() *Report {
	c := *r
	if r.ActionMeta != nil {
		c.ActionMeta = make(map[string]any, len(r.ActionMeta))
		for k, v := range r.ActionMeta {
			c.ActionMeta[k] = v
		}
	}
	return &c
}

// Collection 返回集合名称
func (r *Report) Collection() string {
	return "reports"
}

// EnsureIndexes 创建和维护索引
func (r *Report) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(r.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "reporter_id", Value: 1}, bson.E{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_reporter_created"),
		},
		{
			Keys: bson.D{
				bson.E{Key: "reporter_id", Value: 1},
				bson.E{Key: "target_type", Value: 1},
				bson.E{Key: "action_meta.suspended_at", Value: -1},
			},
			Options: options.Index().SetName("idx_reporter_suspension"),
		},
		{
			Keys:    bson.D{bson.E{Key: "target_type", Value: 1}, bson.E{Key: "target_id", Value: 1}},
			Options: options.Index().SetName("idx_target"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
