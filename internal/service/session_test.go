package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/monitoring"
	"tempmail/bot/internal/storage/memory"
)

// MockProvider 模拟邮件服务商
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateAccount(ctx context.Context) (*domain.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockProvider) ListMessages(ctx context.Context, token string) []domain.MessageSummary {
	args := m.Called(ctx, token)
	return args.Get(0).([]domain.MessageSummary)
}

func (m *MockProvider) FetchMessage(ctx context.Context, token, id string) (*domain.Message, error) {
	args := m.Called(ctx, token, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

type sessionFixture struct {
	svc      *SessionService
	sessions *memory.SessionStore
	users    *memory.UserRegistry
	provider *MockProvider
	metrics  *monitoring.Metrics
}

func newSessionFixture() *sessionFixture {
	f := &sessionFixture{
		sessions: memory.NewSessionStore(),
		users:    memory.NewUserRegistry(),
		provider: &MockProvider{},
		metrics:  monitoring.NewMetrics(),
	}
	f.svc = NewSessionService(f.sessions, f.users, f.provider, zap.NewNop(), f.metrics)
	return f
}

func account(address, token string) *domain.Account {
	return &domain.Account{Address: address, Password: "pw", Token: token}
}

func TestSessionService_CreateSession(t *testing.T) {
	t.Run("创建成功", func(t *testing.T) {
		f := newSessionFixture()
		f.provider.On("CreateAccount", mock.Anything).Return(account("ab12cd34@example.test", "tok"), nil).Once()

		session, err := f.svc.CreateSession(t.Context(), 42)
		require.NoError(t, err)

		assert.Equal(t, domain.OwnerID(42), session.Owner)
		assert.Equal(t, "ab12cd34@example.test", session.Address)
		assert.Equal(t, "tok", session.AuthToken)
		assert.Empty(t, session.Seen)
		assert.True(t, f.users.Contains(42))

		stored, ok := f.sessions.Get(42)
		require.True(t, ok)
		assert.Equal(t, session.ID, stored.ID)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionsActive))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionsCreated.WithLabelValues("success")))
	})

	t.Run("替换旧会话并清空已读集合", func(t *testing.T) {
		f := newSessionFixture()
		f.provider.On("CreateAccount", mock.Anything).Return(account("first@example.test", "t1"), nil).Once()
		f.provider.On("CreateAccount", mock.Anything).Return(account("second@example.test", "t2"), nil).Once()

		first, err := f.svc.CreateSession(t.Context(), 42)
		require.NoError(t, err)
		require.True(t, f.sessions.MarkSeen(42, first.ID, "m1"))

		second, err := f.svc.CreateSession(t.Context(), 42)
		require.NoError(t, err)

		stored, _ := f.sessions.Get(42)
		assert.Equal(t, second.ID, stored.ID)
		assert.Equal(t, "second@example.test", stored.Address)
		assert.Empty(t, stored.Seen)
		assert.Equal(t, 1, f.sessions.Count())
	})

	t.Run("登录步骤失败时保留原会话", func(t *testing.T) {
		f := newSessionFixture()
		f.provider.On("CreateAccount", mock.Anything).Return(account("keep@example.test", "t1"), nil).Once()
		f.provider.On("CreateAccount", mock.Anything).Return(nil, domain.ErrProviderFailure).Once()

		original, err := f.svc.CreateSession(t.Context(), 7)
		require.NoError(t, err)
		require.True(t, f.sessions.MarkSeen(7, original.ID, "m1"))

		_, err = f.svc.CreateSession(t.Context(), 7)
		assert.ErrorIs(t, err, domain.ErrProviderFailure)

		stored, ok := f.sessions.Get(7)
		require.True(t, ok)
		assert.Equal(t, original.ID, stored.ID)
		assert.Equal(t, "keep@example.test", stored.Address)
		assert.True(t, stored.HasSeen("m1"))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SessionsCreated.WithLabelValues("error")))
	})

	t.Run("服务商不可用时不创建会话但登记用户", func(t *testing.T) {
		f := newSessionFixture()
		f.provider.On("CreateAccount", mock.Anything).Return(nil, domain.ErrProviderUnavailable)

		_, err := f.svc.CreateSession(t.Context(), 9)
		assert.ErrorIs(t, err, domain.ErrProviderUnavailable)

		_, ok := f.sessions.Get(9)
		assert.False(t, ok)
		assert.True(t, f.users.Contains(9))
	})

	t.Run("并发创建最终只有一个会话", func(t *testing.T) {
		f := newSessionFixture()
		f.provider.On("CreateAccount", mock.Anything).Return(account("same@example.test", "t"), nil)

		var wg sync.WaitGroup
		ids := make([]string, 8)
		for i := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s, err := f.svc.CreateSession(context.Background(), 5)
				if err == nil {
					ids[i] = s.ID
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, f.sessions.Count())
		stored, _ := f.sessions.Get(5)
		assert.Contains(t, ids, stored.ID)
	})
}

func TestSessionService_ListInbox(t *testing.T) {
	t.Run("没有会话", func(t *testing.T) {
		f := newSessionFixture()

		_, err := f.svc.ListInbox(t.Context(), 1)
		assert.ErrorIs(t, err, domain.ErrNoSession)
		f.provider.AssertNotCalled(t, "ListMessages", mock.Anything, mock.Anything)
	})

	t.Run("返回服务商结果", func(t *testing.T) {
		f := newSessionFixture()
		f.provider.On("CreateAccount", mock.Anything).Return(account("a@example.test", "tok"), nil)
		f.provider.On("ListMessages", mock.Anything, "tok").Return([]domain.MessageSummary{{ID: "m2"}, {ID: "m1"}})

		_, err := f.svc.CreateSession(t.Context(), 1)
		require.NoError(t, err)

		messages, err := f.svc.ListInbox(t.Context(), 1)
		require.NoError(t, err)
		require.Len(t, messages, 2)
		assert.Equal(t, "m2", messages[0].ID)
	})

	t.Run("空收件箱", func(t *testing.T) {
		f := newSessionFixture()
		f.provider.On("CreateAccount", mock.Anything).Return(account("a@example.test", "tok"), nil)
		f.provider.On("ListMessages", mock.Anything, "tok").Return([]domain.MessageSummary{})

		_, err := f.svc.CreateSession(t.Context(), 1)
		require.NoError(t, err)

		messages, err := f.svc.ListInbox(t.Context(), 1)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})
}

func TestSessionService_ReadMessage(t *testing.T) {
	newReady := func(t *testing.T) *sessionFixture {
		f := newSessionFixture()
		f.provider.On("CreateAccount", mock.Anything).Return(account("a@example.test", "tok"), nil)
		_, err := f.svc.CreateSession(t.Context(), 1)
		require.NoError(t, err)
		return f
	}

	t.Run("读取成功", func(t *testing.T) {
		f := newReady(t)
		want := &domain.Message{MessageSummary: domain.MessageSummary{ID: "m1"}, Text: "hello"}
		f.provider.On("FetchMessage", mock.Anything, "tok", "m1").Return(want, nil)

		msg, err := f.svc.ReadMessage(t.Context(), 1, " m1 ")
		require.NoError(t, err)
		assert.Equal(t, want, msg)
	})

	t.Run("空ID", func(t *testing.T) {
		f := newReady(t)

		_, err := f.svc.ReadMessage(t.Context(), 1, "  ")
		assert.ErrorIs(t, err, domain.ErrInvalidMessageID)
	})

	t.Run("没有会话", func(t *testing.T) {
		f := newSessionFixture()

		_, err := f.svc.ReadMessage(t.Context(), 1, "m1")
		assert.ErrorIs(t, err, domain.ErrNoSession)

		_, err = f.svc.ReadMessage(t.Context(), 1, "  ")
		assert.ErrorIs(t, err, domain.ErrNoSession)
		f.provider.AssertNotCalled(t, "FetchMessage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("邮件不存在", func(t *testing.T) {
		f := newReady(t)
		f.provider.On("FetchMessage", mock.Anything, "tok", "gone").Return(nil, domain.ErrMessageNotFound)

		_, err := f.svc.ReadMessage(t.Context(), 1, "gone")
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	})

	t.Run("其他错误也归为邮件不存在", func(t *testing.T) {
		f := newReady(t)
		f.provider.On("FetchMessage", mock.Anything, "tok", "x").Return(nil, errors.New("boom"))

		_, err := f.svc.ReadMessage(t.Context(), 1, "x")
		assert.ErrorIs(t, err, domain.ErrMessageNotFound)
	})
}

func TestSessionService_RegisterUser(t *testing.T) {
	f := newSessionFixture()

	assert.True(t, f.svc.RegisterUser(3))
	assert.False(t, f.svc.RegisterUser(3))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.UsersRegistered))
}
