package clock

import (
	"sync"
	"time"
)

// Clock 时间源，服务层通过注入 Clock 计算过期、冷却和封禁窗口
type Clock interface {
	Now() time.Time
}

type realClock struct{}

// Real 返回系统时钟
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// Fake 可手动推进的时钟（测试用）
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake 创建固定时间的时钟
func NewFake(now time.Time) *Fake {
	return &Fake{now: now.UTC()}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance 推进时间
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set 设置当前时间
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.UTC()
	f.mu.Unlock()
}
