// 集成测试，需要 MongoDB：
//
//	MONGO_URI=mongodb://localhost:27017 go test ./internal/repository/account -v
//
// 未设置 MONGO_URI 时跳过
package account

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"accountguard/internal/model/account"
	"accountguard/internal/pkg/apperr"
	"accountguard/internal/pkg/id"
	"accountguard/internal/pkg/mongodb"
	"accountguard/internal/repository"
)

func setupDB(t *testing.T) *mongo.Database {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect mongo: %v", err)
	}
	db := client.Database("accountguard_test_" + id.New()[:8])
	if err := mongodb.EnsureIndexes(db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		if os.Getenv("KEEP_TEST_DATA") != "true" {
			_ = db.Drop(ctx)
		}
		_ = client.Disconnect(ctx)
	})
	return db
}

func TestUserRepo(t *testing.T) {
	db := setupDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	Convey("UserRepo", t, func() {
		u := &account.User{ID: id.New(), Username: "alice000", Email: "alice@example.com", CreatedAt: now}
		So(repo.Create(ctx, u), ShouldBeNil)

		Convey("用户名唯一索引映射为 ErrUsernameTaken", func() {
			err := repo.Create(ctx, &account.User{ID: id.New(), Username: "alice000", Email: "other@example.com"})
			So(errors.Is(err, repository.ErrUsernameTaken), ShouldBeTrue)
		})

		Convey("邮箱唯一索引映射为 ErrEmailTaken", func() {
			err := repo.Create(ctx, &account.User{ID: id.New(), Username: "alice001", Email: "alice@example.com"})
			So(errors.Is(err, repository.ErrEmailTaken), ShouldBeTrue)
		})

		Convey("修改用户名并记录历史", func() {
			So(repo.ChangeUsername(ctx, u.ID, "alice000", "alice_new", now, 10), ShouldBeNil)

			got, err := repo.FindByID(ctx, u.ID)
			So(err, ShouldBeNil)
			So(got.Username, ShouldEqual, "alice_new")
			So(got.PreviousUsernames, ShouldHaveLength, 1)
			So(got.PreviousUsernames[0].Username, ShouldEqual, "alice000")

			Convey("旧用户名不匹配时返回并发冲突", func() {
				err := repo.ChangeUsername(ctx, u.ID, "alice000", "alice_two", now, 10)
				So(errors.Is(err, repository.ErrConcurrentWrite), ShouldBeTrue)
			})
		})

		Convey("不存在的用户", func() {
			_, err := repo.FindByEmail(ctx, "nobody@example.com")
			So(errors.Is(err, repository.ErrUserNotFound), ShouldBeTrue)
		})

		Reset(func() {
			_, _ = db.Collection(u.Collection()).DeleteMany(ctx, map[string]any{})
		})
	})
}

// 需要副本集；单节点 mongod 不支持事务时跳过
func TestUserRepo_TokenRequestConflict(t *testing.T) {
	db := setupDB(t)
	repo := NewUserRepo(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	u := &account.User{ID: id.New(), Username: "carol000", Email: "carol@example.com", CreatedAt: now}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	begin := func() (mongo.Session, mongo.SessionContext) {
		sess, err := db.Client().StartSession()
		if err != nil {
			t.Fatalf("start session: %v", err)
		}
		t.Cleanup(func() { sess.EndSession(ctx) })
		if err := sess.StartTransaction(); err != nil {
			t.Fatalf("start transaction: %v", err)
		}
		return sess, mongo.NewSessionContext(ctx, sess)
	}

	first, c1 := begin()
	if err := repo.MarkTokenRequested(c1, u.ID, account.TokenPasswordReset, now); err != nil {
		t.Skipf("transactions unavailable: %v", err)
	}

	Convey("同一用户同类型的两个事务写 token_requested_at 时后者冲突", t, func() {
		second, c2 := begin()
		err := repo.MarkTokenRequested(c2, u.ID, account.TokenPasswordReset, now)
		So(apperr.KindOf(err), ShouldEqual, apperr.KindTransient)

		var se mongo.ServerError
		So(errors.As(err, &se), ShouldBeTrue)
		So(se.HasErrorLabel("TransientTransactionError"), ShouldBeTrue)
		_ = second.AbortTransaction(ctx)

		So(first.CommitTransaction(c1), ShouldBeNil)
		got, err := repo.FindByID(ctx, u.ID)
		So(err, ShouldBeNil)
		So(got.TokenRequestedAt[account.TokenPasswordReset], ShouldEqual, now)
	})
}

func TestTokenRepo_ClaimOnce(t *testing.T) {
	db := setupDB(t)
	repo := NewTokenRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	Convey("并发领取同一个 token 只有一个成功", t, func() {
		tok := &account.VerificationToken{
			ID:        id.New(),
			Token:     "abc123",
			UserID:    id.New(),
			Type:      account.TokenEmailVerification,
			ExpiresAt: now.Add(time.Hour),
			CreatedAt: now,
		}
		So(repo.Create(ctx, tok), ShouldBeNil)

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.Claim(ctx, "abc123", account.TokenEmailVerification, now); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		So(wins, ShouldEqual, 1)

		_, err := repo.Claim(ctx, "abc123", account.TokenEmailVerification, now)
		So(errors.Is(err, repository.ErrTokenNotFound), ShouldBeTrue)
	})
}

func TestReportRepo_Stats(t *testing.T) {
	db := setupDB(t)
	repo := NewReportRepo(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	Convey("统计排除系统记录", t, func() {
		reporter := id.New()
		statuses := []account.ReportStatus{account.ReportProcessed, account.ReportRejected, account.ReportPending}
		for i, st := range statuses {
			So(repo.Create(ctx, &account.Report{
				ID: id.New(), ReporterID: reporter, TargetType: "post", TargetID: id.New(),
				Status: st, CreatedAt: now.Add(time.Duration(i) * time.Minute),
			}), ShouldBeNil)
		}
		So(repo.Create(ctx, &account.Report{
			ID: id.New(), ReporterID: reporter, TargetType: account.TargetSystem, TargetID: reporter,
			Status: account.ReportProcessed, CreatedAt: now,
			ActionMeta: map[string]any{account.MetaSuspended: true, account.MetaSuspendedAt: now},
		}), ShouldBeNil)

		total, err := repo.CountByReporter(ctx, reporter)
		So(err, ShouldBeNil)
		So(total, ShouldEqual, int64(3))

		counts, err := repo.CountByStatus(ctx, reporter)
		So(err, ShouldBeNil)
		So(counts[account.ReportProcessed], ShouldEqual, int64(1))

		recent, err := repo.RecentByReporter(ctx, reporter, 2)
		So(err, ShouldBeNil)
		So(recent, ShouldHaveLength, 2)
		So(recent[0].Status, ShouldEqual, account.ReportPending)

		s, err := repo.LatestSuspension(ctx, reporter, now.Add(-time.Hour))
		So(err, ShouldBeNil)
		So(s.IsSuspension(), ShouldBeTrue)

		_, err = repo.LatestSuspension(ctx, reporter, now.Add(time.Hour))
		So(errors.Is(err, repository.ErrNoSuspension), ShouldBeTrue)
	})
}
