package memory

import (
	"context"
	"time"

	"accountguard/internal/model/account"
	"accountguard/internal/repository"
)

// TokenRepo 内存验证 token 仓库
type TokenRepo struct {
	s *Store
}

// NewTokenRepo 创建 token 仓库
func NewTokenRepo(s *Store) *TokenRepo {
	return &TokenRepo{s: s}
}

// Create 保存 token，token 值唯一
func (r *TokenRepo) Create(ctx context.Context, t *account.VerificationToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.tokens {
		if existing.Token == t.Token || existing.ID == t.ID {
			return repository.ErrDuplicate
		}
	}
	c := *t
	r.s.tokens[t.ID] = &c
	id := t.ID
	r.s.record(ctx, func() { delete(r.s.tokens, id) })
	return nil
}

// FindOutstanding 查找用户未使用且未过期的同类 token
func (r *TokenRepo) FindOutstanding(_ context.Context, userID string, typ account.TokenType, now time.Time) (*account.VerificationToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, t := range r.s.tokens {
		if t.UserID == userID && t.Type == typ && !t.Used && t.ExpiresAt.After(now) {
			c := *t
			return &c, nil
		}
	}
	return nil, repository.ErrTokenNotFound
}

// Claim 原子地把匹配 {token, type, used:false, expires_at > now} 的 token 标记为已使用
func (r *TokenRepo) Claim(ctx context.Context, token string, typ account.TokenType, now time.Time) (*account.VerificationToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, t := range r.s.tokens {
		if t.Token != token || t.Type != typ || t.Used || !t.ExpiresAt.After(now) {
			continue
		}
		before := *t
		usedAt := now
		t.Used = true
		t.UsedAt = &usedAt
		r.s.record(ctx, func() { r.s.tokens[id] = &before })
		c := *t
		return &c, nil
	}
	return nil, repository.ErrTokenNotFound
}

// DeleteExpired 删除 expires_at 早于 before 的 token
func (r *TokenRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, t := range r.s.tokens {
		if t.ExpiresAt.Before(before) {
			delete(r.s.tokens, id)
			n++
		}
	}
	return n, nil
}

// FindByToken 按 token 值查询（不判断状态）
func (r *TokenRepo) FindByToken(_ context.Context, token string) (*account.VerificationToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, t := range r.s.tokens {
		if t.Token == token {
			c := *t
			return &c, nil
		}
	}
	return nil, repository.ErrTokenNotFound
}
