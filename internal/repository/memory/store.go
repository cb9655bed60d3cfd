// Package memory 内存版仓库，与 MongoDB 仓库契约一致
// 唯一约束在写锁内检查；事务串行执行，失败时按日志回滚
package memory

import (
	"context"
	"sync"

	"accountguard/internal/model/account"
)

// Store 内存数据集
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	users   map[string]*account.User
	tokens  map[string]*account.VerificationToken
	reports []*account.Report
	outbox  map[string]*account.DeliveryRecord
}

// New 创建空的内存数据集
func New() *Store {
	return &Store{
		users:  make(map[string]*account.User),
		tokens: make(map[string]*account.VerificationToken),
		outbox: make(map[string]*account.DeliveryRecord),
	}
}

type txKey struct{}

type journal struct {
	undo []func()
}

// WithTx 串行执行事务，fn 返回错误时撤销其间的所有写入
// 嵌套调用复用外层事务
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*journal); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := &journal{}
	if err := fn(context.WithValue(ctx, txKey{}, j)); err != nil {
		s.mu.Lock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// record 在事务内登记撤销操作，调用方需持有 s.mu
func (s *Store) record(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(txKey{}).(*journal); ok {
		j.undo = append(j.undo, undo)
	}
}

// Close 与 MongoDB 客户端保持相同的生命周期接口
func (s *Store) Close(context.Context) error {
	return nil
}
