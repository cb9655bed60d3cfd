// Package storefactory 按 store.driver 创建仓库集合
package storefactory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"accountguard/internal/config"
	"accountguard/internal/model/account"
	"accountguard/internal/pkg/mongodb"
	accountRepo "accountguard/internal/repository/account"
	"accountguard/internal/repository/memory"
)

// TxRunner 多文档事务
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserStore 用户仓库
type UserStore interface {
	Create(ctx context.Context, user *account.User) error
	FindByID(ctx context.Context, id string) (*account.User, error)
	FindByEmail(ctx context.Context, email string) (*account.User, error)
	FindByUsername(ctx context.Context, username string) (*account.User, error)
	FindByProvider(ctx context.Context, provider, providerID string) (*account.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	ChangeUsername(ctx context.Context, id, oldName, newName string, at time.Time, limit int) error
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
	MarkTokenRequested(ctx context.Context, id string, typ account.TokenType, at time.Time) error
}

// TokenStore 验证 token 仓库
type TokenStore interface {
	Create(ctx context.Context, t *account.VerificationToken) error
	FindOutstanding(ctx context.Context, userID string, typ account.TokenType, now time.Time) (*account.VerificationToken, error)
	Claim(ctx context.Context, token string, typ account.TokenType, now time.Time) (*account.VerificationToken, error)
	FindByToken(ctx context.Context, token string) (*account.VerificationToken, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ReportStore 举报仓库
type ReportStore interface {
	Create(ctx context.Context, report *account.Report) error
	RecentByReporter(ctx context.Context, reporterID string, limit int) ([]*account.Report, error)
	CountByReporter(ctx context.Context, reporterID string) (int64, error)
	CountByStatus(ctx context.Context, reporterID string) (map[account.ReportStatus]int64, error)
	LatestSuspension(ctx context.Context, reporterID string, since time.Time) (*account.Report, error)
}

// OutboxStore 邮件重试队列
type OutboxStore interface {
	Enqueue(ctx context.Context, d *account.DeliveryRecord) error
	Due(ctx context.Context, now time.Time, limit int) ([]*account.DeliveryRecord, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkAttemptFailed(ctx context.Context, id, lastErr string, at, next time.Time, final bool) error
	Get(ctx context.Context, id string) (*account.DeliveryRecord, error)
}

var (
	_ UserStore   = (*memory.UserRepo)(nil)
	_ UserStore   = (*accountRepo.UserRepo)(nil)
	_ TokenStore  = (*memory.TokenRepo)(nil)
	_ TokenStore  = (*accountRepo.TokenRepo)(nil)
	_ ReportStore = (*memory.ReportRepo)(nil)
	_ ReportStore = (*accountRepo.ReportRepo)(nil)
	_ OutboxStore = (*memory.OutboxRepo)(nil)
	_ OutboxStore = (*accountRepo.OutboxRepo)(nil)
)

// Stores 仓库集合
type Stores struct {
	Driver  string
	Tx      TxRunner
	Users   UserStore
	Tokens  TokenStore
	Reports ReportStore
	Outbox  OutboxStore

	ping  func(ctx context.Context) error
	close func(ctx context.Context) error
}

// Ping 就绪检查
func (s *Stores) Ping(ctx context.Context) error {
	return s.ping(ctx)
}

// Close 释放连接
func (s *Stores) Close(ctx context.Context) error {
	return s.close(ctx)
}

// New 根据配置创建仓库
// mongo 驱动连接或建索引失败都直接返回错误
func New(cfg *config.Config) (*Stores, error) {
	switch cfg.Store.Driver {
	case "mongo":
		client, err := mongodb.New(&cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		db := client.Database()
		if err := mongodb.EnsureIndexes(db); err != nil {
			_ = client.Close(context.Background())
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

		return &Stores{
			Driver:  "mongo",
			Tx:      client,
			Users:   accountRepo.NewUserRepo(db),
			Tokens:  accountRepo.NewTokenRepo(db),
			Reports: accountRepo.NewReportRepo(db),
			Outbox:  accountRepo.NewOutboxRepo(db),
			ping:    client.Ping,
			close:   client.Close,
		}, nil

	case "memory":
		log.Warn().Msg("using in-memory store, data is lost on restart")
		s := memory.New()
		return &Stores{
			Driver:  "memory",
			Tx:      s,
			Users:   memory.NewUserRepo(s),
			Tokens:  memory.NewTokenRepo(s),
			Reports: memory.NewReportRepo(s),
			Outbox:  memory.NewOutboxRepo(s),
			ping:    func(context.Context) error { return nil },
			close:   s.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
