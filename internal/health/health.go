package health

import (
	"context"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

// CheckFunc 带上下文的依赖检查
type CheckFunc func(ctx context.Context) error

// Options 健康检查配置
type Options struct {
	// Provider 邮件服务商可用性检查，必填
	Provider CheckFunc
	// Redis 共享缓存检查，未启用 Redis 时为 nil
	Redis CheckFunc
	// Interval 后台异步检查的间隔；为 0 时每次请求同步检查
	Interval time.Duration
	// Timeout 单次检查超时，默认 5 秒
	Timeout time.Duration
	// GoroutineThreshold 存活检查的协程数上限，默认 10000
	GoroutineThreshold int
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器；ctx 取消后后台检查停止
func NewHealthChecker(ctx context.Context, opts Options, logger *zap.Logger) *HealthChecker {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.GoroutineThreshold <= 0 {
		opts.GoroutineThreshold = 10000
	}

	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		logger: logger,
	}

	// 存活检查只看进程自身
	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(opts.GoroutineThreshold))

	// 就绪检查依赖外部服务
	hc.health.AddReadinessCheck("mail-provider", hc.wrap(ctx, "mail-provider", opts.Provider, opts))
	if opts.Redis != nil {
		hc.health.AddReadinessCheck("redis", hc.wrap(ctx, "redis", opts.Redis, opts))
	}

	return hc
}

func (hc *HealthChecker) wrap(ctx context.Context, name string, fn CheckFunc, opts Options) healthcheck.Check {
	check := func() error {
		checkCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()

		if err := fn(checkCtx); err != nil {
			hc.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			return err
		}
		return nil
	}
	if opts.Interval > 0 {
		return healthcheck.AsyncWithContext(ctx, check, opts.Interval)
	}
	return check
}

// Handler 返回完整的健康检查处理器（/live 与 /ready）
func (hc *HealthChecker) Handler() http.Handler {
	return hc.health
}

// LiveEndpoint 存活检查
func (hc *HealthChecker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查
func (hc *HealthChecker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}
