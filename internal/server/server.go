package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"accountguard/internal/config"
	"accountguard/internal/handler"
	reportHandler "accountguard/internal/handler/report"
	usernameHandler "accountguard/internal/handler/username"
	verificationHandler "accountguard/internal/handler/verification"
	"accountguard/internal/pkg/cache"
	"accountguard/internal/pkg/clock"
	"accountguard/internal/pkg/jwt"
	"accountguard/internal/pkg/mailer"
	"accountguard/internal/pkg/validate"
	"accountguard/internal/repository/storefactory"
	"accountguard/internal/server/middleware"
	"accountguard/internal/service/reportguard"
	"accountguard/internal/service/username"
	"accountguard/internal/service/verification"
	"accountguard/internal/worker"
)

// Server HTTP 服务器
type Server struct {
	cfg      *config.Config
	engine   *gin.Engine
	stores   *storefactory.Stores
	redis    *cache.RedisCache
	cooldown middleware.Cooldown
	jwt      *jwt.JWT
	reaper   *worker.Reaper

	usernameSvc     *username.Service
	verificationSvc *verification.Service
	guard           *reportguard.Guard
}

// New 创建服务器实例
func New(cfg *config.Config) (*Server, error) {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	// binding 校验复用自定义规则
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := validate.RegisterRules(v); err != nil {
			return nil, fmt.Errorf("register validation rules: %w", err)
		}
	}

	engine := gin.New()

	// 存储（必需）
	stores, err := storefactory.New(cfg)
	if err != nil {
		return nil, err
	}

	// 初始化 Redis (可选)
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without it")
		} else {
			redisCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	var cooldown middleware.Cooldown = cache.NewLocalCooldown()
	var signaler reportguard.Signaler
	if redisCache != nil {
		cooldown = redisCache
		if cfg.ReportGuard.NotifyChannel != "" {
			signaler = reportguard.NewPublishSignaler(redisCache, cfg.ReportGuard.NotifyChannel)
		}
	} else {
		log.Warn().Msg("Redis not configured, resend cooldown is per-process")
	}

	notifier, err := mailer.New(&cfg.Mail)
	if err != nil {
		_ = stores.Close(context.Background())
		return nil, err
	}

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		log.Warn().Msg("JWT secret not configured, using default (NOT SECURE for production)")
	}
	accessTokenExpiry := cfg.Auth.AccessTokenExpiry
	if accessTokenExpiry == 0 {
		accessTokenExpiry = 24 * time.Hour
	}

	clk := clock.Real()

	srv := &Server{
		cfg:      cfg,
		engine:   engine,
		stores:   stores,
		redis:    redisCache,
		cooldown: cooldown,
		jwt:      jwt.NewJWT(jwtSecret, accessTokenExpiry),
		reaper:   worker.NewReaper(stores.Tokens, stores.Outbox, notifier, clk, cfg.Verification.ReaperInterval),

		usernameSvc:     username.NewService(stores.Users, clk, &cfg.Username),
		verificationSvc: verification.NewService(stores.Tx, stores.Users, stores.Tokens, stores.Outbox, notifier, clk, &cfg.Verification),
		guard:           reportguard.New(stores.Reports, signaler, clk, &cfg.ReportGuard),
	}

	// 设置路由
	srv.setupRoutes()

	return srv, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	checks := []handler.ReadyCheck{{Name: s.stores.Driver, Check: s.stores.Ping}}
	if s.redis != nil {
		checks = append(checks, handler.ReadyCheck{Name: "redis", Check: s.redis.Ping})
	}
	healthHandler := handler.NewHealthHandler(checks...)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	usernameHdl := usernameHandler.NewHandler(s.usernameSvc, s.jwt)
	verificationHdl := verificationHandler.NewHandler(s.verificationSvc)
	reportHdl := reportHandler.NewHandler(s.guard)
	auth := middleware.Auth(s.jwt)

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		// OAuth 回调（由上游完成授权后提交资料）
		v1.POST("/auth/oauth/:provider", usernameHdl.OAuthLogin)

		// 用户名
		name := v1.Group("/username")
		{
			name.POST("/preview", usernameHdl.Preview)
			name.GET("/check/:username", usernameHdl.Check)
			name.GET("/suggestions", auth, usernameHdl.Suggestions)
			name.POST("/change", auth, usernameHdl.Change)
		}

		// 邮箱验证
		verify := v1.Group("/verification")
		{
			verify.POST("/send", verificationHdl.Send)
			verify.GET("/verify", verificationHdl.Verify)
			verify.POST("/resend",
				middleware.ResendCooldown(s.cooldown, s.cfg.Verification.ResendCooldown, cache.ResendCooldownKey),
				verificationHdl.Resend,
			)
		}

		// 密码重置
		password := v1.Group("/password")
		{
			password.POST("/forgot", verificationHdl.ForgotPassword)
			password.POST("/reset", verificationHdl.ResetPassword)
		}

		// 举报
		reports := v1.Group("/reports", auth)
		{
			reports.POST("", middleware.ReportGuard(s.guard), reportHdl.Create)
			reports.GET("/stats", reportHdl.Stats)
		}
	}
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		s.Close(shutdownCtx)
		return err
	case err := <-errCh:
		s.Close(context.Background())
		return err
	}
}

// Close 停止 reaper 后关闭存储与 Redis 连接
func (s *Server) Close(ctx context.Context) {
	s.reaper.Stop()
	if err := s.stores.Close(ctx); err != nil {
		log.Error().Err(err).Str("driver", s.stores.Driver).Msg("failed to close store")
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close Redis connection")
		}
	}
}

// Reaper 后台清理任务（由 serve 命令启停）
func (s *Server) Reaper() *worker.Reaper {
	return s.reaper
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
