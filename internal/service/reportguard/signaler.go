package reportguard

import (
	"context"
	"time"
)

// SuspensionEvent 封禁事件，供通知系统消费
type SuspensionEvent struct {
	ReporterID    string    `json:"reporterId"`
	SuspendedAt   time.Time `json:"suspendedAt"`
	Until         time.Time `json:"until"`
	EffectiveRate float64   `json:"effectiveRate"`
	Sampled       int       `json:"sampled"`
}

// Signaler 封禁发生时的通知出口，失败只记录日志
type Signaler interface {
	Suspended(ctx context.Context, event SuspensionEvent) error
}

// Publisher 消息发布（Redis PUBLISH）
type Publisher interface {
	Publish(ctx context.Context, channel string, v any) error
}

// PublishSignaler 把封禁事件发布到频道
type PublishSignaler struct {
	pub     Publisher
	channel string
}

// NewPublishSignaler 创建发布型 Signaler
func NewPublishSignaler(pub Publisher, channel string) *PublishSignaler {
	return &PublishSignaler{pub: pub, channel: channel}
}

// Suspended 发布事件
func (s *PublishSignaler) Suspended(ctx context.Context, event SuspensionEvent) error {
	return s.pub.Publish(ctx, s.channel, event)
}
