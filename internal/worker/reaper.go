// Package worker 后台任务：清理过期验证 token，重试 outbox 中投递失败的邮件
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"accountguard/internal/model/account"
	"accountguard/internal/pkg/clock"
	"accountguard/internal/pkg/mailer"
	"accountguard/internal/pkg/metrics"
)

// 重试参数
const (
	MaxAttempts  = 5
	BaseBackoff  = time.Minute
	RedeliverMax = 50
)

// TokenStore 过期 token 删除
type TokenStore interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// OutboxStore 投递重试队列
type OutboxStore interface {
	Due(ctx context.Context, now time.Time, limit int) ([]*account.DeliveryRecord, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkAttemptFailed(ctx context.Context, id, lastErr string, at, next time.Time, final bool) error
}

// Reaper 周期任务句柄
// outbox 为 nil 时只清理 token
type Reaper struct {
	tokens   TokenStore
	outbox   OutboxStore
	notifier mailer.Notifier
	clock    clock.Clock
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReaper 创建 Reaper
func NewReaper(tokens TokenStore, outbox OutboxStore, notifier mailer.Notifier, clk clock.Clock, interval time.Duration) *Reaper {
	return &Reaper{
		tokens:   tokens,
		outbox:   outbox,
		notifier: notifier,
		clock:    clk,
		interval: interval,
	}
}

// Start 启动后台循环，重复调用无效
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil || r.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		log.Info().Dur("interval", r.interval).Msg("reaper started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("reaper stopped")
				return
			case <-ticker.C:
				if err := r.RunOnce(ctx); err != nil {
					log.Error().Err(err).Msg("reaper pass failed")
				}
			}
		}
	}(r.done)
}

// Stop 停止后台循环并等待当前一轮结束
func (r *Reaper) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce 执行一轮：删除过期 token，重试到期的投递
func (r *Reaper) RunOnce(ctx context.Context) error {
	now := r.clock.Now()

	n, err := r.tokens.DeleteExpired(ctx, now)
	if err != nil {
		return err
	}
	if n > 0 {
		metrics.TokensReaped(n)
		log.Info().Int64("count", n).Msg("expired verification tokens reaped")
	}

	if r.outbox == nil || r.notifier == nil {
		return nil
	}
	return r.redeliver(ctx, now)
}

func (r *Reaper) redeliver(ctx context.Context, now time.Time) error {
	due, err := r.outbox.Due(ctx, now, RedeliverMax)
	if err != nil {
		return err
	}

	for _, d := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		sendErr := r.notifier.Send(ctx, d.Recipient, d.TemplateID, d.Data)
		if sendErr == nil {
			if err := r.outbox.MarkSent(ctx, d.ID, now); err != nil {
				return err
			}
			log.Info().Str("delivery_id", d.ID).Str("template", d.TemplateID).Msg("queued email delivered")
			continue
		}

		metrics.DeliveryFailed(d.TemplateID)
		attempts := d.Attempts + 1
		final := attempts >= MaxAttempts
		next := now.Add(Backoff(attempts))
		if err := r.outbox.MarkAttemptFailed(ctx, d.ID, sendErr.Error(), now, next, final); err != nil {
			return err
		}

		evt := log.Warn()
		if final {
			evt = log.Error()
		}
		evt.Err(sendErr).Str("delivery_id", d.ID).Int("attempts", attempts).Bool("final", final).Msg("queued email delivery failed")
	}
	return nil
}

// Backoff 第 attempts 次失败后的等待时间：1m, 2m, 4m, ...
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return BaseBackoff << (attempts - 1)
}
