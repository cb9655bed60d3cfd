package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"accountguard/internal/config"
)

// RedisCache Redis 封装
// 只保存限流冷却等可丢失状态，业务真相仍在 MongoDB
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 创建 Redis 客户端
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

// Acquire 占用一个冷却窗口
// key 不存在时写入并返回 (true, 0)；已存在时返回 (false, 剩余时间)
func (c *RedisCache) Acquire(ctx context.Context, key string, window time.Duration) (bool, time.Duration, error) {
	ok, err := c.client.SetNX(ctx, key, 1, window).Result()
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}
	ttl, err := c.client.PTTL(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if ttl < 0 {
		ttl = window
	}
	return false, ttl, nil
}

// Publish 以 JSON 发布消息
func (c *RedisCache) Publish(ctx context.Context, channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, channel, data).Err()
}

// Ping 健康检查
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// 常用 key 模式
const (
	ResendCooldownKeyPrefix = "cooldown:verification_resend:"
)

// ResendCooldownKey 生成重发冷却 key
func ResendCooldownKey(subject string) string {
	return ResendCooldownKeyPrefix + subject
}
