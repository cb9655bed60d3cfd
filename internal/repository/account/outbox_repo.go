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

// OutboxRepo 邮件重试队列
type OutboxRepo struct {
	collection *mongo.Collection
}

// NewOutboxRepo 创建邮件重试队列
func NewOutboxRepo(db *mongo.Database) *OutboxRepo {
	var d account.DeliveryRecord
	return &OutboxRepo{
		collection: db.Collection(d.Collection()),
	}
}

// Enqueue 入队
func (r *OutboxRepo) Enqueue(ctx context.Context, d *account.DeliveryRecord) error {
	_, err := r.collection.InsertOne(ctx, d)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return mongodb.Classify(err)
}

// Due 取出到期待发送的记录
func (r *OutboxRepo) Due(ctx context.Context, now time.Time, limit int) ([]*account.DeliveryRecord, error) {
	filter := bson.M{
		"status":          account.DeliveryPending,
		"next_attempt_at": bson.M{"$lte": now},
	}
	opts := options.Find().
		SetSort(bson.D{bson.E{Key: "next_attempt_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongodb.Classify(err)
	}
	defer cursor.Close(ctx)

	var records []*account.DeliveryRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, mongodb.Classify(err)
	}
	return records, nil
}

// MarkSent 标记已发送
func (r *OutboxRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, bson.M{
		"$set": bson.M{
			"status":     account.DeliverySent,
			"last_error": "",
			"updated_at": at,
		},
		"$inc": bson.M{"attempts": 1},
	})
}

// MarkAttemptFailed 记录一次失败；final 为 true 时不再重试
func (r *OutboxRepo) MarkAttemptFailed(ctx context.Context, id, lastErr string, at, next time.Time, final bool) error {
	set := bson.M{
		"last_error":      lastErr,
		"next_attempt_at": next,
		"updated_at":      at,
	}
	if final {
		set["status"] = account.DeliveryFailed
	}
	return r.update(ctx, id, bson.M{
		"$set": set,
		"$inc": bson.M{"attempts": 1},
	})
}

// Get 按ID查询
func (r *OutboxRepo) Get(ctx context.Context, id string) (*account.DeliveryRecord, error) {
	var d account.DeliveryRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrRecordNotFound
	}
	if err != nil {
		return nil, mongodb.Classify(err)
	}
	return &d, nil
}

func (r *OutboxRepo) update(ctx context.Context, id string, update bson.M) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return mongodb.Classify(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrRecordNotFound
	}
	return nil
}
