package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	jwtpkg "tempmail/bot/internal/auth/jwt"
	"tempmail/bot/internal/cache"
	"tempmail/bot/internal/config"
	"tempmail/bot/internal/health"
	"tempmail/bot/internal/logger"
	"tempmail/bot/internal/monitoring"
	"tempmail/bot/internal/notify"
	"tempmail/bot/internal/provider/mailtm"
	"tempmail/bot/internal/service"
	"tempmail/bot/internal/storage/memory"
	"tempmail/bot/internal/storage/redis"
	httptransport "tempmail/bot/internal/transport/http"
	"tempmail/bot/internal/watcher"
	"tempmail/bot/internal/websocket"
)

// main 启动 HTTP API、新邮件轮询与 WebSocket 推送的综合服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.NewLogger(logger.FromConfig(cfg.Log))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting tempmail bot",
		zap.String("provider", cfg.Provider.BaseURL),
		zap.Duration("watch_interval", cfg.Watcher.Interval),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化监控系统
	metrics := monitoring.NewMetrics()

	// 会话与用户只保存在内存中，重启后清空
	sessions := memory.NewSessionStore()
	users := memory.NewUserRegistry()

	// 域名缓存：本地缓存 + 可选的 Redis 共享缓存
	localCache := cache.NewLocalCache(ctx, 64, cfg.Provider.DomainCacheTTL)
	var sharedCache cache.StringsCache
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient, err = redis.New(ctx, cfg.Redis, log.Named("redis"))
		if err != nil {
			// Redis 只是缓存，连接失败时退化为本地缓存
			log.Warn("redis unavailable, using local cache only", zap.Error(err))
		} else {
			sharedCache = redisClient
			defer func() { _ = redisClient.Close() }()
		}
	}

	provider := mailtm.New(mailtm.Options{
		BaseURL:        cfg.Provider.BaseURL,
		Timeout:        cfg.Provider.Timeout,
		RateLimit:      cfg.Provider.RateLimit,
		DomainCacheTTL: cfg.Provider.DomainCacheTTL,
		Cache:          cache.NewTiered(localCache, sharedCache),
		Logger:         log.Named("provider"),
		Metrics:        metrics,
	})

	jwtManager := jwtpkg.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TokenExpiry)
	log.Info("JWT configuration",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.Duration("token_expiry", cfg.JWT.TokenExpiry),
	)

	// 创建 WebSocket Hub，同时作为通知渠道
	wsHub := websocket.NewHub(cfg.CORS.AllowedOrigins, jwtManager, log.Named("websocket"))

	notifier := notify.Multi{newPrimaryNotifier(cfg, log), wsHub}

	// 初始化服务层
	sessionService := service.NewSessionService(sessions, users, provider, log.Named("session"), metrics)
	adminService := service.NewAdminService(sessions, users, notifier, cfg.Broadcast.Workers, log.Named("admin"), metrics)

	mailWatcher := watcher.New(sessions, provider, notifier, cfg.Watcher, log.Named("watcher"), metrics)

	// 初始化健康检查
	healthOpts := health.Options{
		Provider: provider.Ready,
		Interval: 30 * time.Second,
	}
	if redisClient != nil {
		healthOpts.Redis = redisClient.Ping
	}
	healthChecker := health.NewHealthChecker(ctx, healthOpts, log.Named("health"))

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:         cfg,
		SessionService: sessionService,
		AdminService:   adminService,
		JWTManager:     jwtManager,
		WebSocketHub:   wsHub,
		HealthChecker:  healthChecker,
		Metrics:        metrics,
		Logger:         log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 新邮件轮询 goroutine
	group.Go(func() error {
		log.Info("starting mail watcher",
			zap.Duration("interval", cfg.Watcher.Interval),
			zap.Int("concurrency", cfg.Watcher.Concurrency),
		)
		return mailWatcher.Run(groupCtx)
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("servers stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// newPrimaryNotifier 配置了机器人令牌时使用 Telegram，否则只写日志
func newPrimaryNotifier(cfg *config.Config, log *zap.Logger) notify.Notifier {
	if cfg.Telegram.BotToken == "" {
		log.Warn("telegram bot token not set, notifications are only logged")
		return notify.NewLogNotifier(log.Named("notify"))
	}
	return notify.NewTelegramNotifier(cfg.Telegram, log.Named("telegram"))
}
