package account

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TokenType token 用途
type TokenType string

const (
	TokenEmailVerification TokenType = "email_verification"
	TokenPasswordReset     TokenType = "password_reset"
)

// IsValid 检查类型是否有效
func (t TokenType) IsValid() bool {
	return t == TokenEmailVerification || t == TokenPasswordReset
}

// VerificationToken 一次性验证 token
// expires_at 创建后不再修改；TTL 索引只负责兜底清理，逻辑过期以 expires_at > now 为准
type VerificationToken struct {
	ID        string     `bson:"_id,omitempty" json:"id"`
	Token     string     `bson:"token" json:"-"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Type      TokenType  `bson:"type" json:"type"`
	Used      bool       `bson:"used" json:"used"`
	UsedAt    *time.Time `bson:"used_at,omitempty" json:"used_at,omitempty"`
	ExpiresAt time.Time  `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
}

// State 在给定时间点的状态
func (t *VerificationToken) State(now time.Time) TokenState {
	switch {
	case t.Used:
		return TokenStateUsed
	case !now.Before(t.ExpiresAt):
		return TokenStateExpired
	default:
		return TokenStateValid
	}
}

// TokenState token 状态：valid -> used（一次），valid -> expired（被动）
type TokenState string

const (
	TokenStateValid   TokenState = "valid"
	TokenStateUsed    TokenState = "used"
	TokenStateExpired TokenState = "expired"
)

// Collection 返回集合名称
func (t *VerificationToken) Collection() string {
	return "verification_tokens"
}

// EnsureIndexes 创建和维护索引
func (t *VerificationToken) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(t.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "token", Value: 1}},
			Options: options.Index().SetName("idx_token").SetUnique(true),
		},
		{
			Keys: bson.D{
				bson.E{Key: "user_id", Value: 1},
				bson.E{Key: "type", Value: 1},
				bson.E{Key: "used", Value: 1},
				bson.E{Key: "expires_at", Value: 1},
			},
			Options: options.Index().SetName("idx_user_type_outstanding"),
		},
		{
			Keys:    bson.D{bson.E{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_expires_at").SetExpireAfterSeconds(0), // TTL索引，兜底清理
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
