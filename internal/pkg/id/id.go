package id

import (
	"github.com/google/uuid"
)

// New 生成 UUIDv7（按时间有序）
func New() string {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return u.String()
}

// IsValid 是否为合法 UUID（任意版本）
func IsValid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
