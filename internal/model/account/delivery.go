package account

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DeliveryStatus 邮件投递状态
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed" // 超过最大重试次数
)

// DeliveryRecord 待重试的邮件（outbox 模式）
type DeliveryRecord struct {
	ID            string         `bson:"_id,omitempty" json:"id"`
	Recipient     string         `bson:"recipient" json:"recipient"`
	TemplateID    string         `bson:"template_id" json:"template_id"`
	Data          map[string]any `bson:"data" json:"data"`
	Status        DeliveryStatus `bson:"status" json:"status"`
	Attempts      int            `bson:"attempts" json:"attempts"`
	LastError     string         `bson:"last_error,omitempty" json:"last_error,omitempty"`
	NextAttemptAt time.Time      `bson:"next_attempt_at" json:"next_attempt_at"`
	CreatedAt     time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `bson:"updated_at" json:"updated_at"`
}

// Collection 返回集合名称
func (d *DeliveryRecord) Collection() string {
	return "email_outbox"
}

// EnsureIndexes 创建和维护索引
func (d *DeliveryRecord) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(d.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "status", Value: 1}, bson.E{Key: "next_attempt_at", Value: 1}},
			Options: options.Index().SetName("idx_status_next_attempt"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
