package config

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, Mode: "release"},
		Store:  StoreConfig{Driver: "memory"},
		Mail:   MailConfig{Driver: "log"},
		Verification: VerificationConfig{
			TokenTTL: 24 * time.Hour,
			Delivery: "inline",
		},
		Username: UsernameConfig{ChangeCooldown: 30 * 24 * time.Hour, HistoryLimit: 10},
		ReportGuard: ReportGuardConfig{
			SampleSize:        20,
			MinReports:        5,
			SuspendMinReports: 40,
			SuspendRate:       0.05,
			WarnRate:          0.10,
			SuspensionWindow:  7 * 24 * time.Hour,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	Convey("Validate 校验配置", t, func() {
		Convey("默认配置合法", func() {
			So(validConfig().Validate(), ShouldBeNil)
		})

		Convey("mongo 驱动需要 uri", func() {
			cfg := validConfig()
			cfg.Store.Driver = "mongo"
			So(cfg.Validate(), ShouldNotBeNil)
			cfg.Mongo.URI = "mongodb://localhost:27017"
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("未知投递模式", func() {
			cfg := validConfig()
			cfg.Verification.Delivery = "carrier-pigeon"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("smtp 缺少 host", func() {
			cfg := validConfig()
			cfg.Mail.Driver = "smtp"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("警告阈值不能低于封禁阈值", func() {
			cfg := validConfig()
			cfg.ReportGuard.WarnRate = 0.01
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("端口越界", func() {
			cfg := validConfig()
			cfg.Server.Port = 70000
			So(cfg.Validate(), ShouldNotBeNil)
		})
	})
}
