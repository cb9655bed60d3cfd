// Package validate 封装 go-playground/validator，统一邮箱与用户名格式校验
package validate

import (
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

// 用户名字符集与长度
const (
	UsernameMinLength = 8
	UsernameMaxLength = 20
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{8,20}$`)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		_ = RegisterRules(instance)
	})
	return instance
}

// Email 邮箱格式是否合法
func Email(email string) bool {
	return get().Var(email, "required,email,max=254") == nil
}

// Username 用户名是否满足 [a-zA-Z0-9._-]{8,20}
func Username(name string) bool {
	return get().Var(name, "required,username") == nil
}

// RegisterRules 在 validator 上注册自定义规则（gin binding 也复用）
func RegisterRules(v *validator.Validate) error {
	return v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
}
