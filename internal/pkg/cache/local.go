package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalCooldown 进程内冷却，Redis 未配置时使用
// 多实例部署时各实例独立计数
type LocalCooldown struct {
	mu       sync.Mutex
	limiters map[string]*cooldownEntry
	sweptAt  time.Time
	now      func() time.Time
}

type cooldownEntry struct {
	lim    *rate.Limiter
	window time.Duration
	last   time.Time
}

// NewLocalCooldown 创建进程内冷却
func NewLocalCooldown() *LocalCooldown {
	return &LocalCooldown{
		limiters: make(map[string]*cooldownEntry),
		now:      time.Now,
	}
}

// Acquire 与 RedisCache.Acquire 语义一致
func (l *LocalCooldown) Acquire(_ context.Context, key string, window time.Duration) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now, window)

	e, ok := l.limiters[key]
	if !ok {
		e = &cooldownEntry{lim: rate.NewLimiter(rate.Every(window), 1), window: window}
		l.limiters[key] = e
	}

	r := e.lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay, nil
	}
	e.last = now
	return true, 0, nil
}

// sweep 删除冷却已结束的条目，每个窗口最多扫描一次
// 上次放行距今超过自身窗口的 limiter 已回满，删除后重建行为不变
func (l *LocalCooldown) sweep(now time.Time, window time.Duration) {
	if now.Sub(l.sweptAt) < window {
		return
	}
	l.sweptAt = now
	for key, e := range l.limiters {
		if now.Sub(e.last) >= e.window {
			delete(l.limiters, key)
		}
	}
}

