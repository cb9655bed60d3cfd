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

// TokenRepo 验证 token 仓库
type TokenRepo struct {
	collection *mongo.Collection
}

// NewTokenRepo 创建 token 仓库
func NewTokenRepo(db *mongo.Database) *TokenRepo {
	var t account.VerificationToken
	return &TokenRepo{
		collection: db.Collection(t.Collection()),
	}
}

// Create 保存 token
func (r *TokenRepo) Create(ctx context.Context, t *account.VerificationToken) error {
	_, err := r.collection.InsertOne(ctx, t)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return mongodb.Classify(err)
}

// FindOutstanding 查找用户未使用且未过期的同类 token
func (r *TokenRepo) FindOutstanding(ctx context.Context, userID string, typ account.TokenType, now time.Time) (*account.VerificationToken, error) {
	filter := bson.M{
		"user_id":    userID,
		"type":       typ,
		"used":       false,
		"expires_at": bson.M{"$gt": now},
	}
	return r.findOne(ctx, r.collection.FindOne(ctx, filter))
}

// Claim 原子领取：匹配 {token, type, used:false, expires_at > now} 的文档被置为 used
// 两个并发请求只有一个能匹配到 used:false
func (r *TokenRepo) Claim(ctx context.Context, token string, typ account.TokenType, now time.Time) (*account.VerificationToken, error) {
	filter := bson.M{
		"token":      token,
		"type":       typ,
		"used":       false,
		"expires_at": bson.M{"$gt": now},
	}
	update := bson.M{"$set": bson.M{"used": true, "used_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	return r.findOne(ctx, r.collection.FindOneAndUpdate(ctx, filter, update, opts))
}

// FindByToken 按 token 值查询（不判断状态）
func (r *TokenRepo) FindByToken(ctx context.Context, token string) (*account.VerificationToken, error) {
	return r.findOne(ctx, r.collection.FindOne(ctx, bson.M{"token": token}))
}

// DeleteExpired 删除 expires_at 早于 before 的 token
// TTL 索引同样会清理，这里是可控节奏的补充
func (r *TokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": before}})
	if err != nil {
		return 0, mongodb.Classify(err)
	}
	return res.DeletedCount, nil
}

type singleResult interface {
	Decode(v interface{}) error
}

func (r *TokenRepo) findOne(_ context.Context, res singleResult) (*account.VerificationToken, error) {
	var t account.VerificationToken
	err := res.Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrTokenNotFound
	}
	if err != nil {
		return nil, mongodb.Classify(err)
	}
	return &t, nil
}
