package notify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"tempmail/bot/internal/domain"
)

// Notifier 向用户推送一条文本消息
//
// 调用方只记录返回的错误，不会向上传播。
type Notifier interface {
	Notify(ctx context.Context, owner domain.OwnerID, text string) error
}

// LogNotifier 把通知写入日志，未配置机器人令牌时使用
type LogNotifier struct {
	log *zap.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify 实现 Notifier
func (n *LogNotifier) Notify(_ context.Context, owner domain.OwnerID, text string) error {
	n.log.Info("notification", zap.Stringer("owner", owner), zap.String("text", text))
	return nil
}

// Multi 把同一条通知分发给多个通知器，任意一个成功即视为送达
type Multi []Notifier

// Notify 实现 Notifier
func (m Multi) Notify(ctx context.Context, owner domain.OwnerID, text string) error {
	var errs []error
	delivered := false
	for _, n := range m {
		if err := n.Notify(ctx, owner, text); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = true
	}
	if delivered || len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
