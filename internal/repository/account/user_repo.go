package account

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"accountguard/internal/model/account"
	"accountguard/internal/pkg/mongodb"
	"accountguard/internal/repository"
)

// UserRepo 用户仓库
// 使用UUID作为ID，无需ObjectID转换
type UserRepo struct {
	collection *mongo.Collection
}

// NewUserRepo 创建用户仓库
func NewUserRepo(db *mongo.Database) *UserRepo {
	var u account.User
	return &UserRepo{
		collection: db.Collection(u.Collection()),
	}
}

// Create 创建用户
// 用户名冲突由 idx_username 唯一索引判定，不做预先查询
func (r *UserRepo) Create(ctx context.Context, user *account.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	_, err := r.collection.InsertOne(ctx, user)
	return classifyUserWrite(err)
}

func (r *UserRepo) findOne(ctx context.Context, filter bson.M) (*account.User, error) {
	var user account.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, mongodb.Classify(err)
	}
	return &user, nil
}

// FindByID 根据ID查询用户
func (r *UserRepo) FindByID(ctx context.Context, id string) (*account.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByEmail 根据邮箱查询用户（调用方负责小写化）
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*account.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByUsername 根据用户名查询用户
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*account.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

// FindByProvider 根据第三方账号查询
func (r *UserRepo) FindByProvider(ctx context.Context, provider, providerID string) (*account.User, error) {
	return r.findOne(ctx, bson.M{"provider": provider, "provider_id": providerID})
}

// UsernameExists 用户名是否已被占用
func (r *UserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"username": username})
	if err != nil {
		return false, mongodb.Classify(err)
	}
	return count > 0, nil
}

// ChangeUsername 条件更新：只有当前用户名仍为 oldName 时才生效
// 旧名追加到 previous_usernames 并用 $slice 截断到最近 limit 条
func (r *UserRepo) ChangeUsername(ctx context.Context, id, oldName, newName string, at time.Time, limit int) error {
	filter := bson.M{"_id": id, "username": oldName}
	update := bson.M{
		"$set": bson.M{
			"username":            newName,
			"username_changed_at": at,
			"updated_at":          at,
		},
		"$push": bson.M{
			"previous_usernames": bson.M{
				"$each":  bson.A{account.PreviousUsername{Username: oldName, ChangedAt: at}},
				"$slice": -limit,
			},
		},
	}

	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return classifyUserWrite(err)
	}
	if res.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return repository.ErrConcurrentWrite
	}
	return nil
}

// MarkEmailVerified 设置邮箱已验证
func (r *UserRepo) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	return r.set(ctx, id, bson.M{
		"email_verified":    true,
		"email_verified_at": at,
		"updated_at":        at,
	})
}

// UpdatePassword 更新密码 hash
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return r.set(ctx, id, bson.M{
		"password":   hash,
		"updated_at": at,
	})
}

// MarkTokenRequested 记录 typ 类型 token 的申请时间
// 事务内写用户文档，两个并发申请中后写的一方收到写冲突并由驱动重跑
func (r *UserRepo) MarkTokenRequested(ctx context.Context, id string, typ account.TokenType, at time.Time) error {
	return r.set(ctx, id, bson.M{
		"token_requested_at." + string(typ): at,
	})
}

func (r *UserRepo) set(ctx context.Context, id string, fields bson.M) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		return mongodb.Classify(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func classifyUserWrite(err error) error {
	switch {
	case err == nil:
		return nil
	case mongodb.DuplicateOn(err, account.IndexUsername):
		return repository.ErrUsernameTaken
	case mongodb.DuplicateOn(err, account.IndexEmail):
		return repository.ErrEmailTaken
	case mongo.IsDuplicateKeyError(err):
		return repository.ErrDuplicate
	default:
		return mongodb.Classify(err)
	}
}
