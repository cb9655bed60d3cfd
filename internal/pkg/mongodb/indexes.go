package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"accountguard/internal/model/account"
)

// EnsureIndexes 创建所有集合的索引
// users.username 与 verification_tokens.token 的唯一索引是正确性的前提，创建失败时服务不应启动
func EnsureIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	models := []Model{
		&account.User{},
		&account.VerificationToken{},
		&account.Report{},
		&account.DeliveryRecord{},
	}

	return EnsureAllIndexes(ctx, db, models...)
}
