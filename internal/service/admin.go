package service

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/monitoring"
	"tempmail/bot/internal/notify"
	"tempmail/bot/internal/pool"
	"tempmail/bot/internal/storage"
)

// broadcastTimeout 一次广播的最长耗时
const broadcastTimeout = 10 * time.Minute

// Stats 管理面板统计
type Stats struct {
	TotalUsers     int      `json:"totalUsers"`
	ActiveSessions int      `json:"activeSessions"`
	Addresses      []string `json:"addresses"`
}

// BroadcastResult 广播投递结果
type BroadcastResult struct {
	Recipients int `json:"recipients"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// AdminService 管理服务
type AdminService struct {
	sessions storage.SessionRepository
	users    storage.UserRepository
	notifier notify.Notifier
	workers  int
	log      *zap.Logger
	metrics  *monitoring.Metrics
}

// NewAdminService 创建管理服务；metrics 可以为 nil
func NewAdminService(sessions storage.SessionRepository, users storage.UserRepository,
	notifier notify.Notifier, workers int, log *zap.Logger, metrics *monitoring.Metrics) *AdminService {
	if workers < 1 {
		workers = 1
	}
	return &AdminService{
		sessions: sessions,
		users:    users,
		notifier: notifier,
		workers:  workers,
		log:      log,
		metrics:  metrics,
	}
}

// Stats 返回用户数、活跃会话数与全部邮箱地址
func (s *AdminService) Stats() Stats {
	return Stats{
		TotalUsers:     s.users.Count(),
		ActiveSessions: s.sessions.Count(),
		Addresses:      s.sessions.Addresses(),
	}
}

// Broadcast 向所有登记过的用户推送一条消息
//
// 单个用户推送失败只计数，不会中断广播；调用方取消 ctx 不会截断推送。
func (s *AdminService) Broadcast(ctx context.Context, text string) (BroadcastResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return BroadcastResult{}, domain.ErrEmptyBroadcast
	}

	recipients := s.users.List()
	result := BroadcastResult{Recipients: len(recipients)}
	if len(recipients) == 0 {
		return result, nil
	}

	// 广播不随调用方取消：请求断开后仍推送给所有用户，只受服务端超时约束
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), broadcastTimeout)
	defer cancel()

	opts := []pool.Option{pool.WithLogger(s.log)}
	if s.metrics != nil {
		opts = append(opts, pool.WithPanicHook(s.metrics.RecordPanic))
	}
	workers := pool.NewWorkerPool(s.workers, len(recipients), opts...)
	workers.Start(ctx)

	payload := notify.FormatBroadcast(text)
	var sent atomic.Int64
	for _, owner := range recipients {
		if !workers.Submit(ctx, func() {
			err := s.notifier.Notify(ctx, owner, payload)
			if s.metrics != nil {
				s.metrics.RecordBroadcast(err == nil)
			}
			if err != nil {
				s.log.Warn("broadcast delivery failed", zap.Stringer("owner", owner), zap.Error(err))
				return
			}
			sent.Add(1)
		}) {
			break
		}
	}
	workers.Stop()

	result.Sent = int(sent.Load())
	result.Failed = result.Recipients - result.Sent

	s.log.Info("broadcast finished",
		zap.Int("recipients", result.Recipients),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
