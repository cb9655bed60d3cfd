package memory

import (
	"context"
	"errors"
	"time"

	"accountguard/internal/model/account"
	"accountguard/internal/repository"
)

// UserRepo 内存用户仓库
type UserRepo struct {
	s *Store
}

// NewUserRepo 创建用户仓库
func NewUserRepo(s *Store) *UserRepo {
	return &UserRepo{s: s}
}

// Create 创建用户，username / email / provider 任一冲突返回 Conflict
func (r *UserRepo) Create(ctx context.Context, user *account.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		switch {
		case u.Username == user.Username:
			return repository.ErrUsernameTaken
		case user.Email != "" && u.Email == user.Email:
			return repository.ErrEmailTaken
		case user.ProviderID != "" && u.Provider == user.Provider && u.ProviderID == user.ProviderID:
			return repository.ErrDuplicate
		case u.ID == user.ID:
			return repository.ErrDuplicate
		}
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	r.s.users[user.ID] = user.Clone()
	id := user.ID
	r.s.record(ctx, func() { delete(r.s.users, id) })
	return nil
}

func (r *UserRepo) findOne(match func(u *account.User) bool) (*account.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// FindByID 根据ID查询
func (r *UserRepo) FindByID(_ context.Context, id string) (*account.User, error) {
	return r.findOne(func(u *account.User) bool { return u.ID == id })
}

// FindByEmail 根据邮箱查询（调用方负责小写化）
func (r *UserRepo) FindByEmail(_ context.Context, email string) (*account.User, error) {
	return r.findOne(func(u *account.User) bool { return email != "" && u.Email == email })
}

// FindByUsername 根据用户名查询
func (r *UserRepo) FindByUsername(_ context.Context, username string) (*account.User, error) {
	return r.findOne(func(u *account.User) bool { return u.Username == username })
}

// FindByProvider 根据第三方账号查询
func (r *UserRepo) FindByProvider(_ context.Context, provider, providerID string) (*account.User, error) {
	return r.findOne(func(u *account.User) bool {
		return providerID != "" && u.Provider == provider && u.ProviderID == providerID
	})
}

// UsernameExists 用户名是否已被占用
func (r *UserRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := r.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ChangeUsername 仅当当前用户名仍为 oldName 时更新，旧名写入历史并截断到 limit 条
func (r *UserRepo) ChangeUsername(ctx context.Context, id, oldName, newName string, at time.Time, limit int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if u.Username != oldName {
		return repository.ErrConcurrentWrite
	}
	for _, other := range r.s.users {
		if other.ID != id && other.Username == newName {
			return repository.ErrUsernameTaken
		}
	}

	before := u.Clone()
	history := append(u.PreviousUsernames, account.PreviousUsername{Username: oldName, ChangedAt: at})
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	u.PreviousUsernames = append([]account.PreviousUsername(nil), history...)
	u.Username = newName
	changedAt := at
	u.UsernameChangedAt = &changedAt
	u.UpdatedAt = at

	r.s.record(ctx, func() { r.s.users[id] = before })
	return nil
}

// MarkEmailVerified 设置邮箱已验证
func (r *UserRepo) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, func(u *account.User) {
		verifiedAt := at
		u.EmailVerified = true
		u.EmailVerifiedAt = &verifiedAt
		u.UpdatedAt = at
	})
}

// UpdatePassword 更新密码 hash
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return r.update(ctx, id, func(u *account.User) {
		u.Password = hash
		u.UpdatedAt = at
	})
}

// MarkTokenRequested 记录 typ 类型 token 的申请时间
func (r *UserRepo) MarkTokenRequested(ctx context.Context, id string, typ account.TokenType, at time.Time) error {
	return r.update(ctx, id, func(u *account.User) {
		if u.TokenRequestedAt == nil {
			u.TokenRequestedAt = make(map[account.TokenType]time.Time)
		}
		u.TokenRequestedAt[typ] = at
	})
}

func (r *UserRepo) update(ctx context.Context, id string, mutate func(u *account.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	before := u.Clone()
	mutate(u)
	r.s.record(ctx, func() { r.s.users[id] = before })
	return nil
}
