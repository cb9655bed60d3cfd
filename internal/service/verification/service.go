// Package verification 单次使用、限时的验证 token：邮箱验证与密码重置
//
// 所有失败都是 fail-closed：任何不确定都拒绝操作。
// 投递策略由 verification.delivery 决定：
//   - inline: 在事务内调用 Notifier，投递失败则事务回滚，不留下任何 token
//   - outbox: 先提交 token，再在事务外投递，失败写入 email_outbox 由 worker 重试
//
// 同一用户同类型的申请事务都会写用户文档上的 token_requested_at，
// 并发申请在该文档上冲突，重跑的一方看到已提交的 token 后返回 TooManyRequests。
//
// inline 模式下驱动可能因 TransientTransactionError 重跑事务函数。
// token 值在事务外生成，重跑时复用；已经用同一 token 投递过则不再发送，
// 用户只会收到一封邮件，且其中的 token 就是最终提交的那个。
// 重跑最终失败时（例如被并发申请抢先）已发出的邮件里的 token 不存在，兑换返回 InvalidOrExpired。
package verification

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"accountguard/internal/config"
	"accountguard/internal/model/account"
	"accountguard/internal/pkg/apperr"
	"accountguard/internal/pkg/clock"
	"accountguard/internal/pkg/id"
	"accountguard/internal/pkg/mailer"
	"accountguard/internal/pkg/metrics"
	"accountguard/internal/pkg/password"
	"accountguard/internal/pkg/validate"
)

// 投递策略
const (
	DeliveryInline = "inline"
	DeliveryOutbox = "outbox"
)

// tokenBytes token 随机字节数（hex 编码后 64 字符）
const tokenBytes = 32

// RetryDelay outbox 首次重试间隔
const RetryDelay = time.Minute

var (
	ErrInvalidEmail    = apperr.New(apperr.KindInvalidInput, apperr.CodeInvalidEmail, "invalid email address")
	ErrInvalidToken    = apperr.New(apperr.KindInvalidInput, apperr.CodeInvalidToken, "token is required")
	ErrAlreadyVerified = apperr.New(apperr.KindAlreadyDone, apperr.CodeAlreadyVerified, "email is already verified")
	ErrTooManyRequests = apperr.New(apperr.KindRateLimited, apperr.CodeTooManyRequests, "a valid token was already sent, please check your inbox")
)

// TxRunner 多文档事务
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserRepository 用户仓库
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*account.User, error)
	FindByEmail(ctx context.Context, email string) (*account.User, error)
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
	MarkTokenRequested(ctx context.Context, id string, typ account.TokenType, at time.Time) error
}

// TokenRepository token 仓库
type TokenRepository interface {
	Create(ctx context.Context, t *account.VerificationToken) error
	FindOutstanding(ctx context.Context, userID string, typ account.TokenType, now time.Time) (*account.VerificationToken, error)
	Claim(ctx context.Context, token string, typ account.TokenType, now time.Time) (*account.VerificationToken, error)
	FindByToken(ctx context.Context, token string) (*account.VerificationToken, error)
}

// Outbox 投递失败的邮件队列
type Outbox interface {
	Enqueue(ctx context.Context, d *account.DeliveryRecord) error
}

// Service 验证 token 服务
type Service struct {
	tx        TxRunner
	users     UserRepository
	tokens    TokenRepository
	outbox    Outbox
	notifier  mailer.Notifier
	clock     clock.Clock
	ttl       time.Duration
	delivery  string
	verifyURL string
	resetURL  string
}

// NewService 创建验证服务
func NewService(
	tx TxRunner,
	users UserRepository,
	tokens TokenRepository,
	outbox Outbox,
	notifier mailer.Notifier,
	clk clock.Clock,
	cfg *config.VerificationConfig,
) *Service {
	delivery := cfg.Delivery
	if delivery == "" {
		delivery = DeliveryInline
	}
	return &Service{
		tx:        tx,
		users:     users,
		tokens:    tokens,
		outbox:    outbox,
		notifier:  notifier,
		clock:     clk,
		ttl:       cfg.TokenTTL,
		delivery:  delivery,
		verifyURL: cfg.VerifyURL,
		resetURL:  cfg.ResetURL,
	}
}

// SendResult 发送结果
type SendResult struct {
	SentAt    time.Time  `json:"sentAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Issue 签发 token 并持久化，ttl <= 0 时使用配置的有效期
// 在事务中执行；调用方已处于事务时加入外层事务
func (s *Service) Issue(ctx context.Context, userID string, typ account.TokenType, ttl time.Duration) (*account.VerificationToken, error) {
	value, err := newToken()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, apperr.CodeInternal, "failed to generate token")
	}
	return s.issue(ctx, userID, typ, ttl, value)
}

func (s *Service) issue(ctx context.Context, userID string, typ account.TokenType, ttl time.Duration, value string) (*account.VerificationToken, error) {
	if !typ.IsValid() {
		return nil, apperr.New(apperr.KindInvalidInput, apperr.CodeInvalidToken, "unknown token type")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}

	now := s.clock.Now()
	t := &account.VerificationToken{
		ID:        id.New(),
		Token:     value,
		UserID:    userID,
		Type:      typ,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.tokens.Create(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	metrics.TokenIssued(string(typ))
	return t, nil
}

// RequestEmailVerification 发送邮箱验证邮件
func (s *Service) RequestEmailVerification(ctx context.Context, email string) (*SendResult, error) {
	return s.request(ctx, email, account.TokenEmailVerification)
}

// Resend 重新发送验证邮件；与首次发送同样受"同类型最多一个有效 token"约束，
// 更短的接口冷却由中间件负责
func (s *Service) Resend(ctx context.Context, email string) (*SendResult, error) {
	return s.request(ctx, email, account.TokenEmailVerification)
}

// RequestPasswordReset 发送密码重置邮件
// 无论邮箱是否注册、是否已有未过期 token、投递是否成功，响应都相同，避免泄露账号是否存在。
// 只有邮箱格式错误和存储故障会返回错误，这两者与账号是否存在无关。
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (*SendResult, error) {
	_, err := s.request(ctx, email, account.TokenPasswordReset)
	switch code := apperr.CodeOf(err); code {
	case "":
	case apperr.CodeUserNotFound, apperr.CodeTooManyRequests, apperr.CodeDeliveryFailed:
		log.Info().Str("reason", code).Msg("password reset not sent")
	default:
		return nil, err
	}
	return &SendResult{SentAt: s.clock.Now()}, nil
}

type delivery struct {
	recipient  string
	templateID string
	data       map[string]any
}

func (s *Service) request(ctx context.Context, email string, typ account.TokenType) (*SendResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validate.Email(email) {
		return nil, ErrInvalidEmail
	}

	value, err := newToken()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindInternal, apperr.CodeInternal, "failed to generate token")
	}

	var (
		result  *SendResult
		pending *delivery
		sent    bool
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		// mongo 驱动会重放事务函数，这里的状态必须每次重置
		result, pending = nil, nil
		now := s.clock.Now()

		user, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		if typ == account.TokenEmailVerification && user.EmailVerified {
			return ErrAlreadyVerified
		}

		// 先写用户文档，再读未过期 token
		if err := s.users.MarkTokenRequested(ctx, user.ID, typ, now); err != nil {
			return err
		}

		_, err = s.tokens.FindOutstanding(ctx, user.ID, typ, now)
		switch {
		case err == nil:
			return ErrTooManyRequests
		case !apperr.Is(err, apperr.KindNotFound):
			return err
		}

		t, err := s.issue(ctx, user.ID, typ, s.ttl, value)
		if err != nil {
			return err
		}

		d := s.compose(user, t)
		switch {
		case s.delivery != DeliveryInline:
			pending = &d
		case sent:
			log.Debug().Str("user_id", user.ID).Msg("transaction retried, email already delivered")
		default:
			if err := s.notifier.Send(ctx, d.recipient, d.templateID, d.data); err != nil {
				metrics.DeliveryFailed(d.templateID)
				return apperr.Wrap(err, apperr.KindTransient, apperr.CodeDeliveryFailed, "failed to deliver email, please retry")
			}
			sent = true
		}

		expiresAt := t.ExpiresAt
		result = &SendResult{SentAt: now, ExpiresAt: &expiresAt}
		return nil
	})
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			log.Warn().Err(err).Str("token_type", string(typ)).Msg("token request rejected")
		}
		return nil, err
	}

	if pending != nil {
		s.deliverAfterCommit(ctx, pending)
	}
	return result, nil
}

// deliverAfterCommit outbox 模式：token 已提交，投递失败只记录，不影响结果
func (s *Service) deliverAfterCommit(ctx context.Context, d *delivery) {
	err := s.notifier.Send(ctx, d.recipient, d.templateID, d.data)
	if err == nil {
		return
	}
	metrics.DeliveryFailed(d.templateID)

	now := s.clock.Now()
	record := &account.DeliveryRecord{
		ID:            id.New(),
		Recipient:     d.recipient,
		TemplateID:    d.templateID,
		Data:          d.data,
		Status:        account.DeliveryPending,
		Attempts:      1,
		LastError:     err.Error(),
		NextAttemptAt: now.Add(RetryDelay),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if qerr := s.outbox.Enqueue(ctx, record); qerr != nil {
		log.Error().Err(qerr).Str("template", d.templateID).Msg("failed to enqueue undelivered email")
		return
	}
	log.Warn().Err(err).Str("delivery_id", record.ID).Str("template", d.templateID).Msg("email delivery failed, queued for retry")
}

func (s *Service) compose(user *account.User, t *account.VerificationToken) delivery {
	templateID, base := mailer.TemplateEmailVerification, s.verifyURL
	if t.Type == account.TokenPasswordReset {
		templateID, base = mailer.TemplatePasswordReset, s.resetURL
	}
	return delivery{
		recipient:  user.Email,
		templateID: templateID,
		data: map[string]any{
			"username":   user.Username,
			"link":       link(base, t.Token),
			"expires_in": humanize(t.ExpiresAt.Sub(t.CreatedAt)),
		},
	}
}

// VerifyResult 验证结果
type VerifyResult struct {
	UserID     string    `json:"userId"`
	VerifiedAt time.Time `json:"verifiedAt"`
}

// Verify 兑换邮箱验证 token
// 领取（used:false -> true）与设置用户已验证在同一事务内；
// 用户已验证时事务回滚，token 保持未使用
func (s *Service) Verify(ctx context.Context, token string) (*VerifyResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	var result *VerifyResult
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		now := s.clock.Now()

		t, err := s.tokens.Claim(ctx, token, account.TokenEmailVerification, now)
		if err != nil {
			return err
		}

		user, err := s.users.FindByID(ctx, t.UserID)
		if err != nil {
			return err
		}
		if user.EmailVerified {
			return ErrAlreadyVerified
		}

		if err := s.users.MarkEmailVerified(ctx, user.ID, now); err != nil {
			return err
		}
		result = &VerifyResult{UserID: user.ID, VerifiedAt: now}
		return nil
	})

	metrics.TokenRedeemed(string(account.TokenEmailVerification), s.outcome(ctx, token, account.TokenEmailVerification, err))
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", result.UserID).Msg("email verified")
	return result, nil
}

// ResetPassword 兑换密码重置 token 并设置新密码
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInvalidInput, apperr.CodeInvalidPassword,
			fmt.Sprintf("password must be at least %d characters", password.MinLength))
	}

	var userID string
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		now := s.clock.Now()

		t, err := s.tokens.Claim(ctx, token, account.TokenPasswordReset, now)
		if err != nil {
			return err
		}
		userID = t.UserID
		return s.users.UpdatePassword(ctx, t.UserID, hash, now)
	})

	metrics.TokenRedeemed(string(account.TokenPasswordReset), s.outcome(ctx, token, account.TokenPasswordReset, err))
	if err != nil {
		return err
	}

	log.Info().Str("user_id", userID).Msg("password reset")
	return nil
}

// outcome 兑换结果标签
// InvalidOrExpired 对调用方不区分原因，这里按 token 实际状态细分，只进日志和指标
func (s *Service) outcome(ctx context.Context, token string, typ account.TokenType, err error) string {
	if err == nil {
		return "success"
	}
	code := apperr.CodeOf(err)
	if code != apperr.CodeInvalidOrExpired {
		return code
	}

	t, ferr := s.tokens.FindByToken(ctx, token)
	switch {
	case ferr != nil:
		return "unknown_token"
	case t.Type != typ:
		return "wrong_type"
	}
	state := string(t.State(s.clock.Now()))
	log.Debug().Str("user_id", t.UserID).Str("token_type", string(typ)).Str("state", state).Msg("token redemption rejected")
	return state
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func link(base, token string) string {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

func humanize(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	case d >= time.Minute && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}
