package account

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// 索引名，仓库层据此区分唯一冲突来源
const (
	IndexUsername = "idx_username"
	IndexEmail    = "idx_email"
	IndexProvider = "idx_provider"
)

// User 用户实体（本模块只读写信任相关字段）
// ID使用UUID格式（string）
// Email 统一小写存储；Password 为 bcrypt，第三方登录用户可能为空
// PreviousUsernames 最多保留 history_limit 条，旧的在前
// TokenRequestedAt 每类 token 最近一次申请时间，申请事务都会写它，
// 同一用户同类型的并发申请因此在用户文档上产生写冲突
type User struct {
	ID                string                  `bson:"_id,omitempty" json:"id"`
	Username          string                  `bson:"username" json:"username"`
	Email             string                  `bson:"email,omitempty" json:"email,omitempty"`
	Password          string                  `bson:"password,omitempty" json:"-"`
	Provider          string                  `bson:"provider,omitempty" json:"provider,omitempty"`
	ProviderID        string                  `bson:"provider_id,omitempty" json:"provider_id,omitempty"`
	EmailVerified     bool                    `bson:"email_verified" json:"email_verified"`
	EmailVerifiedAt   *time.Time              `bson:"email_verified_at,omitempty" json:"email_verified_at,omitempty"`
	PreviousUsernames []PreviousUsername      `bson:"previous_usernames,omitempty" json:"previous_usernames,omitempty"`
	UsernameChangedAt *time.Time              `bson:"username_changed_at,omitempty" json:"username_changed_at,omitempty"`
	TokenRequestedAt  map[TokenType]time.Time `bson:"token_requested_at,omitempty" json:"-"`
	CreatedAt         time.Time               `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time               `bson:"updated_at" json:"updated_at"`
}

// PreviousUsername 历史用户名
type PreviousUsername struct {
	Username  string    `bson:"username" json:"username"`
	ChangedAt time.Time `bson:"changed_at" json:"changed_at"`
}

// Collection 返回集合名称
func (u *User) Collection() string {
	return "users"
}

// EnsureIndexes 创建和维护索引
// username 唯一索引是用户名分配的唯一真相来源
func (u *User) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(u.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{bson.E{Key: "username", Value: 1}},
			Options: options.Index().SetName(IndexUsername).SetUnique(true),
		},
		{
			Keys: bson.D{bson.E{Key: "email", Value: 1}},
			Options: options.Index().SetName(IndexEmail).SetUnique(true).
				SetPartialFilterExpression(bson.M{"email": bson.M{"$type": "string"}}),
		},
		{
			Keys: bson.D{bson.E{Key: "provider", Value: 1}, bson.E{Key: "provider_id", Value: 1}},
			Options: options.Index().SetName(IndexProvider).SetUnique(true).
				SetPartialFilterExpression(bson.M{"provider_id": bson.M{"$type": "string"}}),
		},
		{
			Keys:    bson.D{bson.E{Key: "previous_usernames.username", Value: 1}},
			Options: options.Index().SetName("idx_previous_usernames"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}

// Clone 深拷贝
func (u *User) Clone() *User {
	c := *u
	if u.PreviousUsernames != nil {
		c.PreviousUsernames = append([]PreviousUsername(nil), u.PreviousUsernames...)
	}
	if u.EmailVerifiedAt != nil {
		t := *u.EmailVerifiedAt
		c.EmailVerifiedAt = &t
	}
	if u.UsernameChangedAt != nil {
		t := *u.UsernameChangedAt
		c.UsernameChangedAt = &t
	}
	if u.TokenRequestedAt != nil {
		c.TokenRequestedAt = make(map[TokenType]time.Time, len(u.TokenRequestedAt))
		for k, v := range u.TokenRequestedAt {
			c.TokenRequestedAt[k] = v
		}
	}
	return &c
}
