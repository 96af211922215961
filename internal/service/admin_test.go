package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/monitoring"
	"tempmail/bot/internal/storage/memory"
)

// MockNotifier 模拟推送通道
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, owner domain.OwnerID, text string) error {
	args := m.Called(ctx, owner, text)
	return args.Error(0)
}

func TestAdminService_Stats(t *testing.T) {
	sessions := memory.NewSessionStore()
	users := memory.NewUserRegistry()
	for _, owner := range []domain.OwnerID{1, 2, 3} {
		users.Register(owner)
	}
	sessions.Put(domain.NewMailboxSession(2, &domain.Account{Address: "b@example.test", Token: "t"}))
	sessions.Put(domain.NewMailboxSession(1, &domain.Account{Address: "a@example.test", Token: "t"}))

	svc := NewAdminService(sessions, users, &MockNotifier{}, 2, zap.NewNop(), nil)

	assert.Equal(t, Stats{
		TotalUsers:     3,
		ActiveSessions: 2,
		Addresses:      []string{"a@example.test", "b@example.test"},
	}, svc.Stats())
}

func TestAdminService_Broadcast(t *testing.T) {
	t.Run("推送给所有用户并统计失败", func(t *testing.T) {
		users := memory.NewUserRegistry()
		for _, owner := range []domain.OwnerID{1, 2, 3, 4} {
			users.Register(owner)
		}
		n := &MockNotifier{}
		n.On("Notify", mock.Anything, domain.OwnerID(3), mock.Anything).Return(errors.New("bot blocked"))
		n.On("Notify", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		metrics := monitoring.NewMetrics()
		svc := NewAdminService(memory.NewSessionStore(), users, n, 2, zap.NewNop(), metrics)

		result, err := svc.Broadcast(t.Context(), "  maintenance tonight  ")
		require.NoError(t, err)

		assert.Equal(t, BroadcastResult{Recipients: 4, Sent: 3, Failed: 1}, result)
		n.AssertNumberOfCalls(t, "Notify", 4)
		for _, c := range n.Calls {
			assert.Equal(t, "📢 *Broadcast:*\n\nmaintenance tonight", c.Arguments.String(2))
		}
		assert.Equal(t, 3.0, testutil.ToFloat64(metrics.BroadcastMessages.WithLabelValues("success")))
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BroadcastMessages.WithLabelValues("error")))
	})

	t.Run("调用方取消后仍推送给所有用户", func(t *testing.T) {
		users := memory.NewUserRegistry()
		for owner := domain.OwnerID(1); owner <= 40; owner++ {
			users.Register(owner)
		}
		n := &MockNotifier{}
		n.On("Notify", mock.Anything, mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { time.Sleep(5 * time.Millisecond) }).
			Return(nil)

		svc := NewAdminService(memory.NewSessionStore(), users, n, 2, zap.NewNop(), nil)

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()

		result, err := svc.Broadcast(ctx, "hello")
		require.NoError(t, err)

		assert.Equal(t, BroadcastResult{Recipients: 40, Sent: 40}, result)
		n.AssertNumberOfCalls(t, "Notify", 40)
		assert.Error(t, ctx.Err())
	})

	t.Run("空内容", func(t *testing.T) {
		n := &MockNotifier{}
		svc := NewAdminService(memory.NewSessionStore(), memory.NewUserRegistry(), n, 2, zap.NewNop(), nil)

		_, err := svc.Broadcast(t.Context(), "   ")
		assert.ErrorIs(t, err, domain.ErrEmptyBroadcast)
		n.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("没有用户", func(t *testing.T) {
		svc := NewAdminService(memory.NewSessionStore(), memory.NewUserRegistry(), &MockNotifier{}, 2, zap.NewNop(), nil)

		result, err := svc.Broadcast(t.Context(), "hello")
		require.NoError(t, err)
		assert.Equal(t, BroadcastResult{}, result)
	})
}
