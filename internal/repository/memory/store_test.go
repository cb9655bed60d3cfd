package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountguard/internal/model/account"
	"accountguard/internal/repository"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestWithTx_RollbackOnError(t *testing.T) {
	s := New()
	users := NewUserRepo(s)
	tokens := NewTokenRepo(s)
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &account.User{ID: "u1", Username: "alice000", Email: "a@example.com"}))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, users.MarkEmailVerified(ctx, "u1", t0))
		require.NoError(t, tokens.Create(ctx, &account.VerificationToken{
			ID: "t1", Token: "tok", UserID: "u1", Type: account.TokenEmailVerification, ExpiresAt: t0.Add(time.Hour),
		}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	u, err := users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, u.EmailVerified)
	assert.Nil(t, u.EmailVerifiedAt)

	_, err = tokens.FindByToken(ctx, "tok")
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)
}

func TestUserRepo_MarkTokenRequested(t *testing.T) {
	s := New()
	users := NewUserRepo(s)
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &account.User{ID: "u1", Username: "alice000", Email: "a@example.com"}))
	require.NoError(t, users.MarkTokenRequested(ctx, "u1", account.TokenEmailVerification, t0))

	err := s.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, users.MarkTokenRequested(ctx, "u1", account.TokenPasswordReset, t0.Add(time.Hour)))
		return errors.New("boom")
	})
	require.Error(t, err)

	u, err := users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[account.TokenType]time.Time{account.TokenEmailVerification: t0}, u.TokenRequestedAt)

	err = users.MarkTokenRequested(ctx, "missing", account.TokenEmailVerification, t0)
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestWithTx_NestedJoinsOuter(t *testing.T) {
	s := New()
	users := NewUserRepo(s)
	ctx := context.Background()

	err := s.WithTx(ctx, func(ctx context.Context) error {
		inner := s.WithTx(ctx, func(ctx context.Context) error {
			return users.Create(ctx, &account.User{ID: "u1", Username: "alice000"})
		})
		require.NoError(t, inner)
		return errors.New("outer failed")
	})
	require.Error(t, err)

	_, err = users.FindByID(ctx, "u1")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestUserRepo_UniqueConstraints(t *testing.T) {
	s := New()
	users := NewUserRepo(s)
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &account.User{ID: "u1", Username: "alice000", Email: "a@example.com"}))

	err := users.Create(ctx, &account.User{ID: "u2", Username: "alice000", Email: "b@example.com"})
	assert.ErrorIs(t, err, repository.ErrUsernameTaken)

	err = users.Create(ctx, &account.User{ID: "u3", Username: "bob00000", Email: "a@example.com"})
	assert.ErrorIs(t, err, repository.ErrEmailTaken)

	exists, err := users.UsernameExists(ctx, "alice000")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestUserRepo_ChangeUsernameHistory(t *testing.T) {
	s := New()
	users := NewUserRepo(s)
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &account.User{ID: "u1", Username: "name0000"}))
	require.NoError(t, users.Create(ctx, &account.User{ID: "u2", Username: "taken000"}))

	current := "name0000"
	for i, next := range []string{"name0001", "name0002", "name0003"} {
		require.NoError(t, users.ChangeUsername(ctx, "u1", current, next, t0.Add(time.Duration(i)*time.Hour), 2))
		current = next
	}

	u, err := users.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "name0003", u.Username)
	require.Len(t, u.PreviousUsernames, 2)
	assert.Equal(t, "name0001", u.PreviousUsernames[0].Username)
	assert.Equal(t, "name0002", u.PreviousUsernames[1].Username)

	assert.ErrorIs(t, users.ChangeUsername(ctx, "u1", "name0003", "taken000", t0, 2), repository.ErrUsernameTaken)
	assert.ErrorIs(t, users.ChangeUsername(ctx, "u1", "stale000", "fresh000", t0, 2), repository.ErrConcurrentWrite)
}

func TestTokenRepo_ClaimOnce(t *testing.T) {
	s := New()
	tokens := NewTokenRepo(s)
	ctx := context.Background()

	require.NoError(t, tokens.Create(ctx, &account.VerificationToken{
		ID: "t1", Token: "tok", UserID: "u1", Type: account.TokenEmailVerification, ExpiresAt: t0.Add(time.Hour),
	}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tokens.Claim(ctx, "tok", account.TokenEmailVerification, t0); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	_, err := tokens.Claim(ctx, "tok", account.TokenPasswordReset, t0)
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)
}

func TestTokenRepo_ExpiryAndReap(t *testing.T) {
	s := New()
	tokens := NewTokenRepo(s)
	ctx := context.Background()

	require.NoError(t, tokens.Create(ctx, &account.VerificationToken{
		ID: "t1", Token: "old", UserID: "u1", Type: account.TokenEmailVerification, ExpiresAt: t0,
	}))
	require.NoError(t, tokens.Create(ctx, &account.VerificationToken{
		ID: "t2", Token: "new", UserID: "u1", Type: account.TokenEmailVerification, ExpiresAt: t0.Add(time.Hour),
	}))

	_, err := tokens.Claim(ctx, "old", account.TokenEmailVerification, t0)
	assert.ErrorIs(t, err, repository.ErrTokenNotFound)

	out, err := tokens.FindOutstanding(ctx, "u1", account.TokenEmailVerification, t0)
	require.NoError(t, err)
	assert.Equal(t, "t2", out.ID)

	n, err := tokens.DeleteExpired(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestReportRepo_ExcludesSystemRecords(t *testing.T) {
	s := New()
	reports := NewReportRepo(s)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, reports.Create(ctx, &account.Report{
			ID: string(rune('a' + i)), ReporterID: "r1", TargetType: "post",
			Status: account.ReportRejected, CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, reports.Create(ctx, &account.Report{
		ID: "sys", ReporterID: "r1", TargetType: account.TargetSystem, TargetID: "r1",
		Status: account.ReportProcessed, CreatedAt: t0,
		ActionMeta: map[string]any{account.MetaSuspended: true, account.MetaSuspendedAt: t0},
	}))

	total, err := reports.CountByReporter(ctx, "r1")
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)

	recent, err := reports.RecentByReporter(ctx, "r1", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)

	_, err = reports.LatestSuspension(ctx, "r1", t0.Add(time.Second))
	assert.ErrorIs(t, err, repository.ErrNoSuspension)

	sus, err := reports.LatestSuspension(ctx, "r1", t0)
	require.NoError(t, err)
	assert.Equal(t, "sys", sus.ID)
}

func TestOutboxRepo_Lifecycle(t *testing.T) {
	s := New()
	outbox := NewOutboxRepo(s)
	ctx := context.Background()

	require.NoError(t, outbox.Enqueue(ctx, &account.DeliveryRecord{
		ID: "d1", Recipient: "a@example.com", Status: account.DeliveryPending, NextAttemptAt: t0,
	}))

	due, err := outbox.Due(ctx, t0, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, outbox.MarkAttemptFailed(ctx, "d1", "smtp down", t0, t0.Add(time.Minute), false))
	due, err = outbox.Due(ctx, t0, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	require.NoError(t, outbox.MarkSent(ctx, "d1", t0.Add(time.Minute)))
	d, err := outbox.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, account.DeliverySent, d.Status)
	assert.Equal(t, 2, d.Attempts)
}
