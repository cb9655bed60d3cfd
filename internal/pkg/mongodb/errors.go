package mongodb

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"

	"accountguard/internal/pkg/apperr"
)

// Classify 将驱动错误归类为业务错误
// 已经是 *apperr.Error 的错误原样返回
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.Wrap(err, apperr.KindNotFound, "not_found", "record not found")
	case mongo.IsDuplicateKeyError(err):
		return apperr.Wrap(err, apperr.KindConflict, apperr.CodeDuplicate, "duplicate record")
	case isTransient(err):
		return apperr.Wrap(err, apperr.KindTransient, apperr.CodeStoreUnavailable, "store temporarily unavailable")
	default:
		return apperr.Wrap(err, apperr.KindInternal, apperr.CodeInternal, "store error")
	}
}

// DuplicateOn 判断是否为指定索引上的唯一冲突
func DuplicateOn(err error, index string) bool {
	return err != nil && mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), index)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorLabel("TransientTransactionError") || se.HasErrorLabel("RetryableWriteError")) {
		return true
	}
	// 选主失败没有导出类型，只能按信息判断
	return errors.Is(err, mongo.ErrClientDisconnected) || strings.Contains(err.Error(), "server selection error")
}
