// Package repository 仓库层共享的错误定义，MongoDB 与内存实现返回同一组错误
package repository

import "accountguard/internal/pkg/apperr"

var (
	ErrUserNotFound    = apperr.New(apperr.KindNotFound, apperr.CodeUserNotFound, "user not found")
	ErrTokenNotFound   = apperr.New(apperr.KindNotFound, apperr.CodeInvalidOrExpired, "token is invalid or expired")
	ErrNoSuspension    = apperr.New(apperr.KindNotFound, "suspension_not_found", "no active suspension")
	ErrRecordNotFound  = apperr.New(apperr.KindNotFound, "not_found", "record not found")
	ErrUsernameTaken   = apperr.New(apperr.KindConflict, apperr.CodeUsernameTaken, "username is already taken")
	ErrEmailTaken      = apperr.New(apperr.KindConflict, apperr.CodeEmailTaken, "email is already registered")
	ErrDuplicate       = apperr.New(apperr.KindConflict, apperr.CodeDuplicate, "duplicate record")
	ErrConcurrentWrite = apperr.New(apperr.KindConflict, apperr.CodeConcurrentUpdate, "record was modified concurrently")
)
