package apperr

import (
	"errors"
	"fmt"
)

// Kind 错误分类
// Handler 层只根据 Kind 决定 HTTP 状态码，Code 用于客户端区分具体原因
type Kind string

const (
	KindInvalidInput Kind = "invalid_input" // 参数格式错误（邮箱、用户名、资料）
	KindConflict     Kind = "conflict"      // 唯一约束冲突
	KindNotFound     Kind = "not_found"     // 用户 / token 不存在
	KindAlreadyDone  Kind = "already_done"  // 已验证、用户名未变化、冷却期未结束
	KindRateLimited  Kind = "rate_limited"  // 存在未过期 token、重发过快、举报被限制
	KindUnauthorized Kind = "unauthorized"  // 密码错误
	KindTransient    Kind = "transient"     // 存储或投递暂时不可用，可重试
	KindInternal     Kind = "internal"
)

// 常用错误码
const (
	CodeInvalidProfile   = "invalid_profile"
	CodeInvalidEmail     = "invalid_email"
	CodeInvalidUsername  = "invalid_username"
	CodeInvalidPassword  = "invalid_password"
	CodeInvalidToken     = "invalid_token"
	CodeInvalidOrExpired = "invalid_or_expired"
	CodeUserNotFound     = "user_not_found"
	CodeAlreadyVerified  = "already_verified"
	CodeSameUsername     = "same_username"
	CodeCooldownActive   = "cooldown_active"
	CodeUsernameTaken    = "username_taken"
	CodeUsernameReserved = "username_reserved"
	CodeEmailTaken       = "email_taken"
	CodeDuplicate        = "duplicate"
	CodeTooManyRequests  = "too_many_requests"
	CodeWrongPassword    = "wrong_password"
	CodeDeliveryFailed   = "delivery_failed"
	CodeStoreUnavailable = "store_unavailable"
	CodeConcurrentUpdate = "concurrent_update"
	CodeInternal         = "internal_error"
	CodeInvalidInputBody = "invalid_request_body"
)

// Error 业务错误
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// New 创建业务错误
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap 包装底层错误
func Wrap(err error, kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is 可以按 Kind+Code 比较两个 *Error
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

// KindOf 返回错误分类，非 *Error 一律视为 Internal
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf 返回错误码
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	if err != nil {
		return CodeInternal
	}
	return ""
}

// Is 判断错误是否属于指定分类
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable 只有 Transient 可以由调用方重试
func Retryable(err error) bool {
	return Is(err, KindTransient)
}

// MessageOf 返回面向用户的错误信息
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
