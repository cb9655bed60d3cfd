package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinLength 最短密码长度
const MinLength = 8

// ErrTooShort 密码过短
var ErrTooShort = errors.New("password too short")

// Hash 加密密码
func Hash(password string) (string, error) {
	if len(password) < MinLength {
		return "", ErrTooShort
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify 验证密码，hash 为空（第三方登录用户）时一律失败
func Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
