package watcher

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tempmail/bot/internal/config"
	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/monitoring"
	"tempmail/bot/internal/notify"
)

// SessionSource 轮询任务需要的会话存储操作
type SessionSource interface {
	Snapshot() []domain.MailboxSession
	MarkSeen(owner domain.OwnerID, sessionID, messageID string) bool
}

// MessageLister 列出邮箱里的邮件，失败时返回空列表
type MessageLister interface {
	ListMessages(ctx context.Context, token string) []domain.MessageSummary
}

// CycleReport 一轮轮询的统计
type CycleReport struct {
	Sessions     int // 本轮快照中的会话数
	Polled       int // 完成轮询的会话数
	Empty        int // 服务商返回空列表（或失败）的会话数
	Notified     int // 推送成功的新邮件数
	NotifyFailed int // 推送失败的新邮件数
}

// Watcher 周期性检查所有会话的新邮件并推送给用户
type Watcher struct {
	sessions    SessionSource
	provider    MessageLister
	notifier    notify.Notifier
	interval    time.Duration
	concurrency int
	log         *zap.Logger
	metrics     *monitoring.Metrics
}

// New 创建轮询任务；metrics 可以为 nil
func New(sessions SessionSource, provider MessageLister, notifier notify.Notifier,
	cfg config.WatcherConfig, log *zap.Logger, metrics *monitoring.Metrics) *Watcher {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Watcher{
		sessions:    sessions,
		provider:    provider,
		notifier:    notifier,
		interval:    interval,
		concurrency: concurrency,
		log:         log,
		metrics:     metrics,
	}
}

// Run 每隔一个间隔执行一轮，直到 ctx 取消；第一轮在一个间隔之后开始
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("watcher started",
		zap.Duration("interval", w.interval),
		zap.Int("concurrency", w.concurrency),
	)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("watcher stopped")
			return nil
		case <-ticker.C:
			w.RunCycle(ctx)
		}
	}
}

// sessionResult 单个会话的处理结果，每个 goroutine 只写自己的下标
type sessionResult struct {
	polled       bool
	empty        bool
	notified     int
	notifyFailed int
}

// RunCycle 执行一轮：快照所有会话，逐个拉取邮件，推送未见过的新邮件
//
// 会话之间并发处理，同一会话内的邮件按服务商顺序依次推送。
// 推送失败也会标记为已见，保证同一封邮件最多推送一次。
func (w *Watcher) RunCycle(ctx context.Context) CycleReport {
	start := time.Now()
	snapshot := w.sessions.Snapshot()
	results := make([]sessionResult, len(snapshot))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for i := range snapshot {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = w.pollSession(gctx, snapshot[i])
			return nil
		})
	}
	_ = g.Wait()

	report := CycleReport{Sessions: len(snapshot)}
	for _, r := range results {
		if r.polled {
			report.Polled++
		}
		if r.empty {
			report.Empty++
		}
		report.Notified += r.notified
		report.NotifyFailed += r.notifyFailed
	}

	elapsed := time.Since(start)
	if w.metrics != nil {
		w.metrics.RecordWatcherCycle(elapsed)
	}
	w.log.Debug("watcher cycle finished",
		zap.Int("sessions", report.Sessions),
		zap.Int("polled", report.Polled),
		zap.Int("empty", report.Empty),
		zap.Int("notified", report.Notified),
		zap.Int("notify_failed", report.NotifyFailed),
		zap.Duration("elapsed", elapsed),
	)
	return report
}

func (w *Watcher) pollSession(ctx context.Context, session domain.MailboxSession) sessionResult {
	var res sessionResult
	if session.AuthToken == "" || ctx.Err() != nil {
		return res
	}

	messages := w.provider.ListMessages(ctx, session.AuthToken)
	res.polled = true
	if len(messages) == 0 {
		res.empty = true
		return res
	}

	for _, msg := range messages {
		if ctx.Err() != nil {
			return res
		}
		// 同一响应里重复的 ID 在第一次处理后已加入本地副本
		if session.HasSeen(msg.ID) {
			continue
		}
		session.Seen[msg.ID] = struct{}{}

		err := w.notifier.Notify(ctx, session.Owner, notify.FormatNewMail(msg))
		if err != nil {
			res.notifyFailed++
			w.log.Warn("failed to deliver new mail notification",
				zap.Stringer("owner", session.Owner),
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		} else {
			res.notified++
		}
		if w.metrics != nil {
			w.metrics.RecordNotification(err == nil)
		}

		if !w.sessions.MarkSeen(session.Owner, session.ID, msg.ID) {
			// 会话已被替换，剩余邮件属于旧邮箱
			w.log.Debug("session replaced during cycle, skipping rest",
				zap.Stringer("owner", session.Owner),
				zap.String("session_id", session.ID),
			)
			return res
		}
	}
	return res
}
