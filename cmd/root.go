package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"accountguard/internal/config"
	"accountguard/internal/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "accountguard",
	Short: "AccountGuard - account trust service",
	Long: `AccountGuard allocates unique usernames for OAuth sign-ups, issues and redeems
email verification and password reset tokens, and throttles abusive reporters.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ./configs/config.yaml)")

	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	if err := loadConfig(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.Debug().Str("config_file", viper.ConfigFileUsed()).Msg("configuration loaded")
}

// loadConfig 依次读取默认值、配置文件与 ACCOUNTGUARD_ 环境变量，随后初始化日志
// 找不到配置文件不算错误
func loadConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		for _, dir := range []string{"./configs", ".", "$HOME/.accountguard"} {
			viper.AddConfigPath(dir)
		}
	}

	viper.SetEnvPrefix("ACCOUNTGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
		fmt.Fprintln(os.Stderr, "No config file found, using defaults and environment variables")
	}

	loaded := &config.Config{}
	if err := viper.Unmarshal(loaded); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := logger.Init(&loaded.Log); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	cfg = loaded
	return nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.time_format", "RFC3339")

	// Store
	viper.SetDefault("store.driver", "mongo")

	// MongoDB
	viper.SetDefault("mongo.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	viper.SetDefault("mongo.database", "accountguard")
	viper.SetDefault("mongo.max_pool_size", 100)
	viper.SetDefault("mongo.min_pool_size", 10)

	// Redis
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.db", 0)

	// Auth
	viper.SetDefault("auth.access_token_expiry", "24h")

	// Mail
	viper.SetDefault("mail.driver", "log")
	viper.SetDefault("mail.port", 587)
	viper.SetDefault("mail.from", "no-reply@accountguard.local")

	// Verification
	viper.SetDefault("verification.token_ttl", "24h")
	viper.SetDefault("verification.delivery", "inline")
	viper.SetDefault("verification.verify_url", "http://localhost:8080/api/v1/verification/verify")
	viper.SetDefault("verification.reset_url", "http://localhost:3000/reset-password")
	viper.SetDefault("verification.resend_cooldown", "1m")
	viper.SetDefault("verification.reaper_interval", "10m")

	// Username
	viper.SetDefault("username.change_cooldown", "720h")
	viper.SetDefault("username.history_limit", 10)

	// Report guard
	viper.SetDefault("report_guard.sample_size", 20)
	viper.SetDefault("report_guard.min_reports", 5)
	viper.SetDefault("report_guard.suspend_min_reports", 40)
	viper.SetDefault("report_guard.suspend_rate", 0.05)
	viper.SetDefault("report_guard.warn_rate", 0.10)
	viper.SetDefault("report_guard.suspension_window", "168h")
	viper.SetDefault("report_guard.fail_open", true)
	viper.SetDefault("report_guard.notify_channel", "accountguard:report_suspensions")
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return cfg
}
