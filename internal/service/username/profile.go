package username

import (
	"encoding/json"
	"strconv"
	"strings"

	"accountguard/internal/pkg/apperr"
)

// Profile 第三方登录返回的资料，字段均可能缺失
type Profile struct {
	ID          string
	Handle      string
	DisplayName string
	Emails      []string
}

// ErrInvalidProfile 资料中没有任何可用字段
var ErrInvalidProfile = apperr.New(apperr.KindInvalidInput, apperr.CodeInvalidProfile, "profile has no usable id, name or email")

// Empty 是否没有任何可用字段
func (p Profile) Empty() bool {
	return p.ID == "" && p.Handle == "" && p.DisplayName == "" && len(p.Emails) == 0
}

// PrimaryEmail 第一个包含 @ 的邮箱（小写）
func (p Profile) PrimaryEmail() string {
	for _, e := range p.Emails {
		if strings.Contains(e, "@") {
			return strings.ToLower(e)
		}
	}
	return ""
}

// ParseProfile 从松散结构中读取资料
// 支持 id（字符串或数字）、username/login、displayName/name、emails（[{value}] 或字符串数组）/email
func ParseProfile(raw map[string]any) (Profile, error) {
	var p Profile
	if raw == nil {
		return p, ErrInvalidProfile
	}

	p.ID = scalar(raw["id"])
	p.Handle = firstString(raw, "username", "login")
	p.DisplayName = firstString(raw, "displayName", "name")

	if list, ok := raw["emails"].([]any); ok {
		for _, item := range list {
			switch v := item.(type) {
			case string:
				p.Emails = appendEmail(p.Emails, v)
			case map[string]any:
				p.Emails = appendEmail(p.Emails, scalar(v["value"]))
			}
		}
	}
	if email := scalar(raw["email"]); email != "" {
		p.Emails = appendEmail(p.Emails, email)
	}

	if p.Empty() {
		return p, ErrInvalidProfile
	}
	return p, nil
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := scalar(raw[k]); v != "" {
			return v
		}
	}
	return ""
}

func appendEmail(emails []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return emails
	}
	return append(emails, v)
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	}
	return ""
}

// 按 provider 决定取名顺序
var (
	emailFirst  = map[string]bool{"google": true, "facebook": true, "microsoft": true, "local": true}
	handleFirst = map[string]bool{"github": true, "twitter": true, "gitlab": true}
)

// BaseFor 按 provider 选出用户名基础串（未清洗），第一个清洗后非空的字段胜出
func BaseFor(p Profile, provider string) string {
	local := ""
	if email := p.PrimaryEmail(); email != "" {
		local = email[:strings.Index(email, "@")]
	}

	var order []string
	switch provider = strings.ToLower(provider); {
	case emailFirst[provider]:
		order = []string{local, p.DisplayName, p.ID}
	case handleFirst[provider]:
		order = []string{local, p.Handle, p.DisplayName, p.ID}
	default:
		order = []string{p.ID}
	}

	for _, s := range order {
		if strip(s) != "" {
			return s
		}
	}
	return "user"
}
