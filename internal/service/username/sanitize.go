package username

import (
	"regexp"
	"strings"

	"accountguard/internal/pkg/validate"
)

var disallowed = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// strip 去掉字符集外的字符并小写
func strip(s string) string {
	return strings.ToLower(disallowed.ReplaceAllString(s, ""))
}

// Sanitize 清洗为合法用户名：过滤字符集、小写，不足 8 位右补 '0'，超过 20 位截断
func Sanitize(s string) string {
	s = strip(s)
	if len(s) < validate.UsernameMinLength {
		s += strings.Repeat("0", validate.UsernameMinLength-len(s))
	}
	if len(s) > validate.UsernameMaxLength {
		s = s[:validate.UsernameMaxLength]
	}
	return s
}

// fit 拼接后缀，必要时截断 base 以满足 20 位上限
func fit(base, suffix string) string {
	if room := validate.UsernameMaxLength - len(suffix); len(base) > room {
		base = base[:room]
	}
	return Sanitize(base + suffix)
}

var reserved = map[string]bool{
	"admin":         true,
	"administrator": true,
	"root":          true,
	"system":        true,
	"support":       true,
	"moderator":     true,
	"staff":         true,
	"official":      true,
	"security":      true,
	"help":          true,
	"null":          true,
	"undefined":     true,
	"anonymous":     true,
}

// IsReserved 保留用户名（忽略补位的 '0'）
func IsReserved(name string) bool {
	name = strings.ToLower(name)
	return reserved[name] || reserved[strings.TrimRight(name, "0")]
}
