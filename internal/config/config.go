package config

import (
	"errors"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Store        StoreConfig        `mapstructure:"store"`
	Mongo        MongoConfig        `mapstructure:"mongo"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Mail         MailConfig         `mapstructure:"mail"`
	Verification VerificationConfig `mapstructure:"verification"`
	Username     UsernameConfig     `mapstructure:"username"`
	ReportGuard  ReportGuardConfig  `mapstructure:"report_guard"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// StoreConfig 存储驱动
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // mongo, memory
}

// MongoConfig MongoDB 配置
// 事务依赖副本集，单机部署需要以 --replSet 启动
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`          // JWT密钥
	AccessTokenExpiry time.Duration `mapstructure:"access_token_expiry"` // Access Token过期时间
}

// MailConfig 邮件投递配置
type MailConfig struct {
	Driver   string `mapstructure:"driver"` // smtp, log
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// VerificationConfig 验证 token 配置
type VerificationConfig struct {
	TokenTTL       time.Duration `mapstructure:"token_ttl"`       // token 有效期
	Delivery       string        `mapstructure:"delivery"`        // inline: 事务内发送；outbox: 提交后发送，失败入队重试
	VerifyURL      string        `mapstructure:"verify_url"`      // 邮件中的验证链接前缀
	ResetURL       string        `mapstructure:"reset_url"`       // 邮件中的重置密码链接前缀
	ResendCooldown time.Duration `mapstructure:"resend_cooldown"` // 重发接口冷却时间（中间件）
	ReaperInterval time.Duration `mapstructure:"reaper_interval"` // 过期 token 清理间隔
}

// UsernameConfig 用户名配置
type UsernameConfig struct {
	ChangeCooldown time.Duration `mapstructure:"change_cooldown"`
	HistoryLimit   int           `mapstructure:"history_limit"`
}

// ReportGuardConfig 举报滥用防护配置
type ReportGuardConfig struct {
	SampleSize        int           `mapstructure:"sample_size"`         // 采样最近举报数
	MinReports        int           `mapstructure:"min_reports"`         // 冷启动豁免阈值
	SuspendMinReports int           `mapstructure:"suspend_min_reports"` // 触发封禁的最少举报数
	SuspendRate       float64       `mapstructure:"suspend_rate"`        // 有效率低于该值触发封禁
	WarnRate          float64       `mapstructure:"warn_rate"`           // 有效率低于该值返回警告
	SuspensionWindow  time.Duration `mapstructure:"suspension_window"`   // 封禁时长
	FailOpen          bool          `mapstructure:"fail_open"`           // 内部错误时放行
	NotifyChannel     string        `mapstructure:"notify_channel"`      // Redis 发布频道
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	switch c.Store.Driver {
	case "mongo":
		if c.Mongo.URI == "" {
			return errors.New("mongo.uri is required when store.driver is mongo")
		}
	case "memory":
	default:
		return errors.New("invalid store driver, must be mongo/memory")
	}

	switch c.Mail.Driver {
	case "smtp":
		if c.Mail.Host == "" || c.Mail.Port == 0 || c.Mail.From == "" {
			return errors.New("mail.host, mail.port and mail.from are required for smtp driver")
		}
	case "log":
	default:
		return errors.New("invalid mail driver, must be smtp/log")
	}

	if c.Verification.Delivery != "inline" && c.Verification.Delivery != "outbox" {
		return errors.New("invalid verification delivery, must be inline/outbox")
	}
	if c.Verification.TokenTTL <= 0 {
		return errors.New("verification.token_ttl must be positive")
	}

	if c.Username.HistoryLimit <= 0 {
		return errors.New("username.history_limit must be positive")
	}

	g := c.ReportGuard
	if g.SampleSize <= 0 || g.MinReports <= 0 || g.SuspendMinReports <= 0 {
		return errors.New("report_guard sizes must be positive")
	}
	if g.SuspendRate < 0 || g.WarnRate < g.SuspendRate || g.WarnRate > 1 {
		return errors.New("report_guard rates must satisfy 0 <= suspend_rate <= warn_rate <= 1")
	}

	return nil
}
