package username

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"accountguard/internal/config"
	"accountguard/internal/model/account"
	"accountguard/internal/pkg/apperr"
	"accountguard/internal/pkg/clock"
	"accountguard/internal/pkg/id"
	"accountguard/internal/pkg/password"
	"accountguard/internal/pkg/validate"
)

// SuggestionCount 默认建议数量
const SuggestionCount = 5

// 检查结果原因
const (
	ReasonInvalidFormat = "invalid_format"
	ReasonReserved      = "reserved"
	ReasonTaken         = "taken"
)

// UserRepository 服务依赖的用户仓库
type UserRepository interface {
	Availability
	Create(ctx context.Context, user *account.User) error
	FindByID(ctx context.Context, id string) (*account.User, error)
	FindByProvider(ctx context.Context, provider, providerID string) (*account.User, error)
	ChangeUsername(ctx context.Context, id, oldName, newName string, at time.Time, limit int) error
}

// Service 用户名服务
type Service struct {
	users        UserRepository
	alloc        *Allocator
	clock        clock.Clock
	cooldown     time.Duration
	historyLimit int
}

// NewService 创建用户名服务
func NewService(users UserRepository, clk clock.Clock, cfg *config.UsernameConfig, opts ...AllocatorOption) *Service {
	return &Service{
		users:        users,
		alloc:        NewAllocator(users, clk, opts...),
		clock:        clk,
		cooldown:     cfg.ChangeCooldown,
		historyLimit: cfg.HistoryLimit,
	}
}

// Allocator 返回内部分配器
func (s *Service) Allocator() *Allocator {
	return s.alloc
}

// CreateOAuthUser 第三方登录首次进入时创建用户
// 同一 provider 账号已存在时直接返回已有用户
func (s *Service) CreateOAuthUser(ctx context.Context, provider string, raw map[string]any) (*account.User, error) {
	p, err := ParseProfile(raw)
	if err != nil {
		return nil, err
	}
	provider = strings.ToLower(strings.TrimSpace(provider))

	if p.ID != "" {
		existing, err := s.users.FindByProvider(ctx, provider, p.ID)
		if err == nil {
			return existing, nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
	}

	now := s.clock.Now()
	var created *account.User
	reserve := func(ctx context.Context, name string) error {
		user := &account.User{
			ID:         id.New(),
			Username:   name,
			Email:      p.PrimaryEmail(),
			Provider:   provider,
			ProviderID: p.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.users.Create(ctx, user); err != nil {
			return err
		}
		created = user
		return nil
	}

	name, err := s.alloc.Allocate(ctx, p, provider, reserve)
	if err != nil {
		log.Error().Err(err).Str("provider", provider).Msg("failed to allocate username")
		return nil, err
	}

	log.Info().Str("user_id", created.ID).Str("username", name).Str("provider", provider).Msg("oauth user created")
	return created, nil
}

// Preview 根据资料预览可用用户名
func (s *Service) Preview(ctx context.Context, provider string, raw map[string]any) ([]string, error) {
	p, err := ParseProfile(raw)
	if err != nil {
		return nil, err
	}
	return s.alloc.Suggest(ctx, p, provider, SuggestionCount, "")
}

// CheckResult 用户名检查结果
type CheckResult struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Check 检查用户名是否可用
func (s *Service) Check(ctx context.Context, name string) (*CheckResult, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	result := &CheckResult{Username: name}

	switch {
	case !validate.Username(name):
		result.Reason = ReasonInvalidFormat
	case IsReserved(name):
		result.Reason = ReasonReserved
	default:
		exists, err := s.users.UsernameExists(ctx, name)
		if err != nil {
			return nil, err
		}
		if exists {
			result.Reason = ReasonTaken
		} else {
			result.Available = true
		}
	}
	return result, nil
}

// Suggestions 已登录用户的用户名建议
type Suggestions struct {
	Current             string     `json:"current"`
	Suggestions         []string   `json:"suggestions"`
	CanChangeUsername   bool       `json:"canChangeUsername"`
	NextChangeAvailable *time.Time `json:"nextChangeAvailable,omitempty"`
}

// SuggestionsFor 为已有用户生成建议（排除当前用户名）
func (s *Service) SuggestionsFor(ctx context.Context, userID string) (*Suggestions, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	base := user.Username
	if at := strings.Index(user.Email, "@"); at > 0 {
		base = user.Email[:at]
	}

	names, err := s.alloc.SuggestFrom(ctx, base, SuggestionCount, user.Username)
	if err != nil {
		return nil, err
	}

	next := s.nextChange(user)
	result := &Suggestions{
		Current:           user.Username,
		Suggestions:       names,
		CanChangeUsername: next == nil || !s.clock.Now().Before(*next),
	}
	if !result.CanChangeUsername {
		result.NextChangeAvailable = next
	}
	return result, nil
}

// ChangeResult 修改结果
type ChangeResult struct {
	Username            string    `json:"username"`
	PreviousUsername    string    `json:"previousUsername"`
	ChangedAt           time.Time `json:"changedAt"`
	NextChangeAvailable time.Time `json:"nextChangeAvailable"`
}

// Change 修改用户名
// 顺序：格式 -> 用户 -> 密码 -> 未变化 -> 冷却期 -> 保留字 -> 条件更新
func (s *Service) Change(ctx context.Context, userID, name, currentPassword string) (*ChangeResult, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !validate.Username(name) {
		return nil, apperr.New(apperr.KindInvalidInput, apperr.CodeInvalidUsername,
			fmt.Sprintf("username must be %d-%d characters of letters, digits, '.', '_' or '-'",
				validate.UsernameMinLength, validate.UsernameMaxLength))
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !password.Verify(currentPassword, user.Password) {
		return nil, apperr.New(apperr.KindUnauthorized, apperr.CodeWrongPassword, "current password is incorrect")
	}

	if name == user.Username {
		return nil, apperr.New(apperr.KindAlreadyDone, apperr.CodeSameUsername, "new username is the same as the current one")
	}

	now := s.clock.Now()
	if next := s.nextChange(user); next != nil && now.Before(*next) {
		days := int(math.Ceil(next.Sub(now).Hours() / 24))
		return nil, apperr.New(apperr.KindAlreadyDone, apperr.CodeCooldownActive,
			fmt.Sprintf("username was changed recently, %d days remaining", days))
	}

	if IsReserved(name) {
		return nil, apperr.New(apperr.KindInvalidInput, apperr.CodeUsernameReserved, "username is reserved")
	}

	if err := s.users.ChangeUsername(ctx, user.ID, user.Username, name, now, s.historyLimit); err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID).Str("from", user.Username).Str("to", name).Msg("username changed")
	return &ChangeResult{
		Username:            name,
		PreviousUsername:    user.Username,
		ChangedAt:           now,
		NextChangeAvailable: now.Add(s.cooldown),
	}, nil
}

func (s *Service) nextChange(user *account.User) *time.Time {
	if user.UsernameChangedAt == nil {
		return nil
	}
	next := user.UsernameChangedAt.Add(s.cooldown)
	return &next
}
