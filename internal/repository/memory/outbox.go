package memory

import (
	"context"
	"sort"
	"time"

	"accountguard/internal/model/account"
	"accountguard/internal/repository"
)

// OutboxRepo 内存邮件重试队列
type OutboxRepo struct {
	s *Store
}

// NewOutboxRepo 创建邮件重试队列
func NewOutboxRepo(s *Store) *OutboxRepo {
	return &OutboxRepo{s: s}
}

// Enqueue 入队
func (r *OutboxRepo) Enqueue(_ context.Context, d *account.DeliveryRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.outbox[d.ID]; ok {
		return repository.ErrDuplicate
	}
	c := *d
	r.s.outbox[d.ID] = &c
	return nil
}

// Due 取出到期待发送的记录
func (r *OutboxRepo) Due(_ context.Context, now time.Time, limit int) ([]*account.DeliveryRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*account.DeliveryRecord
	for _, d := range r.s.outbox {
		if d.Status == account.DeliveryPending && !d.NextAttemptAt.After(now) {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkSent 标记已发送
func (r *OutboxRepo) MarkSent(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(d *account.DeliveryRecord) {
		d.Status = account.DeliverySent
		d.Attempts++
		d.LastError = ""
		d.UpdatedAt = at
	})
}

// MarkAttemptFailed 记录一次失败；final 为 true 时不再重试
func (r *OutboxRepo) MarkAttemptFailed(_ context.Context, id, lastErr string, at, next time.Time, final bool) error {
	return r.update(id, func(d *account.DeliveryRecord) {
		d.Attempts++
		d.LastError = lastErr
		d.NextAttemptAt = next
		d.UpdatedAt = at
		if final {
			d.Status = account.DeliveryFailed
		}
	})
}

// Get 按ID查询
func (r *OutboxRepo) Get(_ context.Context, id string) (*account.DeliveryRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.outbox[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	c := *d
	return &c, nil
}

func (r *OutboxRepo) update(id string, mutate func(d *account.DeliveryRecord)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d, ok := r.s.outbox[id]
	if !ok {
		return repository.ErrRecordNotFound
	}
	mutate(d)
	return nil
}
