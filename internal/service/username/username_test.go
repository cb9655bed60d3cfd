package username

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"accountguard/internal/config"
	"accountguard/internal/model/account"
	"accountguard/internal/pkg/apperr"
	"accountguard/internal/pkg/clock"
	"accountguard/internal/pkg/id"
	"accountguard/internal/pkg/password"
	"accountguard/internal/repository"
	"accountguard/internal/repository/memory"
)

var validName = regexp.MustCompile(`^[a-zA-Z0-9._-]{8,20}$`)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService() (*Service, *memory.UserRepo, *clock.Fake) {
	users := memory.NewUserRepo(memory.New())
	clk := clock.NewFake(t0)
	svc := NewService(users, clk, &config.UsernameConfig{
		ChangeCooldown: 30 * 24 * time.Hour,
		HistoryLimit:   10,
	}, WithSeed(42))
	return svc, users, clk
}

func TestSanitize(t *testing.T) {
	Convey("Sanitize", t, func() {
		So(Sanitize("alice"), ShouldEqual, "alice000")
		So(Sanitize("Alice Smith!"), ShouldEqual, "alicesmith")
		So(Sanitize("abcdefghijklmnopqrstuvwxyz"), ShouldEqual, "abcdefghijklmnopqrst")
		So(Sanitize("张三"), ShouldEqual, "00000000")
		So(Sanitize("a.b_c-d"), ShouldEqual, "a.b_c-d0")
	})

	Convey("fit 保持 20 位上限", t, func() {
		So(fit("abcdefghijklmnopqrst", "99"), ShouldEqual, "abcdefghijklmnopqr99")
		So(len(fit("abcdefghijklmnopqrst", "_official")), ShouldEqual, 20)
	})

	Convey("IsReserved 忽略补位", t, func() {
		So(IsReserved("admin000"), ShouldBeTrue)
		So(IsReserved("Administrator"), ShouldBeTrue)
		So(IsReserved("admin001"), ShouldBeFalse)
	})
}

func TestParseProfile(t *testing.T) {
	Convey("ParseProfile", t, func() {
		Convey("emails 为对象数组", func() {
			p, err := ParseProfile(map[string]any{
				"id":     "123",
				"emails": []any{map[string]any{"value": "Alice@Test.com"}},
			})
			So(err, ShouldBeNil)
			So(p.ID, ShouldEqual, "123")
			So(p.PrimaryEmail(), ShouldEqual, "alice@test.com")
		})

		Convey("数字 id 与 login", func() {
			p, err := ParseProfile(map[string]any{"id": float64(98765), "login": "octocat"})
			So(err, ShouldBeNil)
			So(p.ID, ShouldEqual, "98765")
			So(p.Handle, ShouldEqual, "octocat")
		})

		Convey("空资料返回 InvalidInput", func() {
			_, err := ParseProfile(map[string]any{"emails": []any{}, "id": nil})
			So(apperr.KindOf(err), ShouldEqual, apperr.KindInvalidInput)
			So(apperr.CodeOf(err), ShouldEqual, apperr.CodeInvalidProfile)

			_, err = ParseProfile(nil)
			So(errors.Is(err, ErrInvalidProfile), ShouldBeTrue)
		})
	})
}

func TestBaseFor(t *testing.T) {
	Convey("BaseFor 按 provider 选择字段", t, func() {
		p := Profile{ID: "42", Handle: "octocat", DisplayName: "The Octocat"}

		So(BaseFor(p, "github"), ShouldEqual, "octocat")
		So(BaseFor(p, "google"), ShouldEqual, "The Octocat")
		So(BaseFor(p, "unknown"), ShouldEqual, "42")
		So(BaseFor(Profile{DisplayName: "x"}, "unknown"), ShouldEqual, "user")

		p.Emails = []string{"octo@github.com"}
		So(BaseFor(p, "github"), ShouldEqual, "octo")
		So(BaseFor(p, "GOOGLE"), ShouldEqual, "octo")
	})
}

func TestAllocate(t *testing.T) {
	Convey("端到端：alice000 被占用后分配带两位数字后缀的候选", t, func() {
		svc, users, _ := newTestService()
		ctx := context.Background()
		raw := map[string]any{"id": "123", "emails": []any{map[string]any{"value": "alice@test.com"}}}

		first, err := svc.CreateOAuthUser(ctx, "google", raw)
		So(err, ShouldBeNil)
		So(first.Username, ShouldEqual, "alice000")
		So(first.Email, ShouldEqual, "alice@test.com")

		Convey("同一第三方账号再次登录返回已有用户", func() {
			again, err := svc.CreateOAuthUser(ctx, "google", raw)
			So(err, ShouldBeNil)
			So(again.ID, ShouldEqual, first.ID)
		})

		Convey("另一个 alice 得到不同的用户名", func() {
			second, err := svc.CreateOAuthUser(ctx, "google", map[string]any{
				"id": "456", "emails": []any{map[string]any{"value": "alice@other.com"}},
			})
			So(err, ShouldBeNil)
			So(second.Username, ShouldNotEqual, "alice000")
			So(second.Username, ShouldStartWith, "alice000")
			So(second.Username, ShouldHaveLength, 10)
			So(validName.MatchString(second.Username), ShouldBeTrue)

			exists, err := users.UsernameExists(ctx, second.Username)
			So(err, ShouldBeNil)
			So(exists, ShouldBeTrue)

			res, err := svc.Check(ctx, second.Username)
			So(err, ShouldBeNil)
			So(res.Available, ShouldBeFalse)
			So(res.Reason, ShouldEqual, ReasonTaken)
		})
	})

	Convey("并发分配同一基础名不会重复", t, func() {
		svc, _, _ := newTestService()
		ctx := context.Background()
		const n = 30

		var wg sync.WaitGroup
		names := make([]string, n)
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				u, err := svc.CreateOAuthUser(ctx, "google", map[string]any{
					"id":    id.New(),
					"email": "bob@example.com",
				})
				errs[i] = err
				if err == nil {
					names[i] = u.Username
				}
			}(i)
		}
		wg.Wait()

		seen := make(map[string]bool)
		for i := 0; i < n; i++ {
			if errs[i] != nil {
				// 同一邮箱只能注册一次
				So(apperr.CodeOf(errs[i]), ShouldEqual, apperr.CodeEmailTaken)
				continue
			}
			So(seen[names[i]], ShouldBeFalse)
			So(validName.MatchString(names[i]), ShouldBeTrue)
			seen[names[i]] = true
		}
		So(len(seen), ShouldEqual, 1)
	})

	Convey("并发分配不同邮箱、相同基础名", t, func() {
		svc, _, _ := newTestService()
		ctx := context.Background()
		const n = 30

		var wg sync.WaitGroup
		var mu sync.Mutex
		seen := make(map[string]int)
		failures := 0
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				u, err := svc.CreateOAuthUser(ctx, "github", map[string]any{
					"id":    id.New(),
					"login": "carol",
				})
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failures++
					return
				}
				seen[u.Username]++
			}()
		}
		wg.Wait()

		So(failures, ShouldEqual, 0)
		So(len(seen), ShouldEqual, n)
		for name, count := range seen {
			So(count, ShouldEqual, 1)
			So(validName.MatchString(name), ShouldBeTrue)
		}
	})

	Convey("reserve 返回非冲突错误时立即失败", t, func() {
		a := NewAllocator(nil, clock.NewFake(t0), WithSeed(1))
		storeDown := apperr.New(apperr.KindTransient, apperr.CodeStoreUnavailable, "store down")
		calls := 0

		_, err := a.Allocate(context.Background(), Profile{ID: "1"}, "google", func(context.Context, string) error {
			calls++
			return storeDown
		})
		So(errors.Is(err, storeDown), ShouldBeTrue)
		So(calls, ShouldEqual, 1)
	})

	Convey("所有候选都冲突时最后尝试时间戳形式", t, func() {
		a := NewAllocator(nil, clock.NewFake(t0), WithSeed(1))
		var tried []string

		_, err := a.Allocate(context.Background(), Profile{ID: "dave"}, "unknown", func(_ context.Context, name string) error {
			tried = append(tried, name)
			return repository.ErrUsernameTaken
		})
		So(apperr.KindOf(err), ShouldEqual, apperr.KindConflict)
		So(tried[0], ShouldEqual, "dave0000")
		So(tried[len(tried)-1], ShouldEqual, timestampName("dave0000", t0.UnixMilli()))
		So(len(tried), ShouldBeLessThanOrEqualTo, 1+len(strategies)*candidatesPerStrategy+1)
		for _, name := range tried {
			So(validName.MatchString(name), ShouldBeTrue)
		}
	})

	Convey("空资料直接拒绝", t, func() {
		a := NewAllocator(nil, clock.NewFake(t0))
		_, err := a.Allocate(context.Background(), Profile{}, "google", nil)
		So(errors.Is(err, ErrInvalidProfile), ShouldBeTrue)
	})
}

func TestSuggest(t *testing.T) {
	Convey("Suggest 返回 5 个互不相同的可用用户名", t, func() {
		svc, users, _ := newTestService()
		ctx := context.Background()
		So(users.Create(ctx, &account.User{ID: id.New(), Username: "alice000"}), ShouldBeNil)

		p := Profile{ID: "1", Emails: []string{"alice@test.com"}}
		names, err := svc.Allocator().Suggest(ctx, p, "google", 5, "alice00042")
		So(err, ShouldBeNil)
		So(names, ShouldHaveLength, 5)

		seen := make(map[string]bool)
		for _, name := range names {
			So(seen[name], ShouldBeFalse)
			seen[name] = true
			So(name, ShouldNotEqual, "alice00042")
			So(name, ShouldNotEqual, "alice000")
			So(validName.MatchString(name), ShouldBeTrue)
		}
	})

	Convey("Preview 对空资料返回 InvalidInput", t, func() {
		svc, _, _ := newTestService()
		_, err := svc.Preview(context.Background(), "google", map[string]any{})
		So(apperr.KindOf(err), ShouldEqual, apperr.KindInvalidInput)
	})
}

func TestCheck(t *testing.T) {
	Convey("Check", t, func() {
		svc, users, _ := newTestService()
		ctx := context.Background()
		So(users.Create(ctx, &account.User{ID: id.New(), Username: "taken000"}), ShouldBeNil)

		cases := map[string]string{
			"short":     ReasonInvalidFormat,
			"bad name!": ReasonInvalidFormat,
			"admin000":  ReasonReserved,
			"TAKEN000":  ReasonTaken,
		}
		for name, reason := range cases {
			res, err := svc.Check(ctx, name)
			So(err, ShouldBeNil)
			So(res.Available, ShouldBeFalse)
			So(res.Reason, ShouldEqual, reason)
		}

		res, err := svc.Check(ctx, "free.name")
		So(err, ShouldBeNil)
		So(res.Available, ShouldBeTrue)
		So(res.Reason, ShouldBeEmpty)
	})
}

func TestChange(t *testing.T) {
	Convey("Change", t, func() {
		svc, users, clk := newTestService()
		ctx := context.Background()

		hash, err := password.Hash("correct-horse")
		So(err, ShouldBeNil)
		user := &account.User{ID: id.New(), Username: "original", Password: hash}
		So(users.Create(ctx, user), ShouldBeNil)
		So(users.Create(ctx, &account.User{ID: id.New(), Username: "occupied"}), ShouldBeNil)

		Convey("格式错误", func() {
			_, err := svc.Change(ctx, user.ID, "bad", "correct-horse")
			So(apperr.KindOf(err), ShouldEqual, apperr.KindInvalidInput)
		})

		Convey("用户不存在", func() {
			_, err := svc.Change(ctx, id.New(), "newname1", "correct-horse")
			So(apperr.KindOf(err), ShouldEqual, apperr.KindNotFound)
		})

		Convey("密码错误", func() {
			_, err := svc.Change(ctx, user.ID, "newname1", "wrong-password")
			So(apperr.KindOf(err), ShouldEqual, apperr.KindUnauthorized)
		})

		Convey("用户名未变化", func() {
			_, err := svc.Change(ctx, user.ID, "ORIGINAL", "correct-horse")
			So(apperr.CodeOf(err), ShouldEqual, apperr.CodeSameUsername)
		})

		Convey("保留字", func() {
			_, err := svc.Change(ctx, user.ID, "support0", "correct-horse")
			So(apperr.CodeOf(err), ShouldEqual, apperr.CodeUsernameReserved)
		})

		Convey("已被占用", func() {
			_, err := svc.Change(ctx, user.ID, "occupied", "correct-horse")
			So(apperr.KindOf(err), ShouldEqual, apperr.KindConflict)
		})

		Convey("修改成功后进入 30 天冷却", func() {
			res, err := svc.Change(ctx, user.ID, "newname1", "correct-horse")
			So(err, ShouldBeNil)
			So(res.PreviousUsername, ShouldEqual, "original")
			So(res.NextChangeAvailable, ShouldEqual, t0.Add(30*24*time.Hour))

			got, err := users.FindByID(ctx, user.ID)
			So(err, ShouldBeNil)
			So(got.Username, ShouldEqual, "newname1")
			So(got.PreviousUsernames[0].Username, ShouldEqual, "original")

			sugg, err := svc.SuggestionsFor(ctx, user.ID)
			So(err, ShouldBeNil)
			So(sugg.CanChangeUsername, ShouldBeFalse)
			So(*sugg.NextChangeAvailable, ShouldEqual, t0.Add(30*24*time.Hour))
			So(sugg.Suggestions, ShouldHaveLength, SuggestionCount)
			So(sugg.Suggestions, ShouldNotContain, "newname1")

			Convey("29 天时被拒绝并提示剩余天数", func() {
				clk.Set(t0.Add(29 * 24 * time.Hour))
				_, err := svc.Change(ctx, user.ID, "newname2", "correct-horse")
				So(apperr.KindOf(err), ShouldEqual, apperr.KindAlreadyDone)
				So(apperr.CodeOf(err), ShouldEqual, apperr.CodeCooldownActive)
				So(apperr.MessageOf(err), ShouldContainSubstring, "1 days remaining")
			})

			Convey("恰好 30 天时允许", func() {
				clk.Set(t0.Add(30 * 24 * time.Hour))
				res, err := svc.Change(ctx, user.ID, "newname2", "correct-horse")
				So(err, ShouldBeNil)
				So(res.Username, ShouldEqual, "newname2")

				sugg, err := svc.SuggestionsFor(ctx, user.ID)
				So(err, ShouldBeNil)
				So(sugg.CanChangeUsername, ShouldBeFalse)
			})
		})

		Convey("第三方用户没有密码时拒绝", func() {
			oauth := &account.User{ID: id.New(), Username: "oauth000"}
			So(users.Create(ctx, oauth), ShouldBeNil)
			_, err := svc.Change(ctx, oauth.ID, "newname3", "")
			So(apperr.KindOf(err), ShouldEqual, apperr.KindUnauthorized)
		})
	})
}
