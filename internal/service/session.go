package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"tempmail/bot/internal/domain"
	"tempmail/bot/internal/monitoring"
	"tempmail/bot/internal/storage"
)

// MailProvider 会话服务依赖的服务商操作
type MailProvider interface {
	CreateAccount(ctx context.Context) (*domain.Account, error)
	ListMessages(ctx context.Context, token string) []domain.MessageSummary
	FetchMessage(ctx context.Context, token, id string) (*domain.Message, error)
}

// SessionService 邮箱会话服务
//
// 每个用户同一时刻最多持有一个会话，新建会话会整体替换旧会话。
type SessionService struct {
	sessions storage.SessionRepository
	users    storage.UserRepository
	provider MailProvider
	log      *zap.Logger
	metrics  *monitoring.Metrics
}

// NewSessionService 创建会话服务；metrics 可以为 nil
func NewSessionService(sessions storage.SessionRepository, users storage.UserRepository,
	provider MailProvider, log *zap.Logger, metrics *monitoring.Metrics) *SessionService {
	return &SessionService{
		sessions: sessions,
		users:    users,
		provider: provider,
		log:      log,
		metrics:  metrics,
	}
}

// RegisterUser 登记一次用户交互，首次出现时返回 true
func (s *SessionService) RegisterUser(owner domain.OwnerID) bool {
	added := s.users.Register(owner)
	if added {
		s.log.Info("user registered", zap.Stringer("owner", owner))
		s.updateGauges()
	}
	return added
}

// CreateSession 为用户开通新的临时邮箱
//
// 开通失败时返回服务商错误，原有会话保持不变。
func (s *SessionService) CreateSession(ctx context.Context, owner domain.OwnerID) (domain.MailboxSession, error) {
	s.RegisterUser(owner)

	account, err := s.provider.CreateAccount(ctx)
	if s.metrics != nil {
		s.metrics.RecordSessionCreated(err == nil)
	}
	if err != nil {
		s.log.Warn("failed to create mailbox", zap.Stringer("owner", owner), zap.Error(err))
		return domain.MailboxSession{}, err
	}

	session := domain.NewMailboxSession(owner, account)
	s.sessions.Put(session)
	s.updateGauges()

	s.log.Info("mailbox session created",
		zap.Stringer("owner", owner),
		zap.String("session_id", session.ID),
		zap.String("address", session.Address),
	)
	return session.Clone(), nil
}

// Session 返回用户当前会话
func (s *SessionService) Session(owner domain.OwnerID) (domain.MailboxSession, error) {
	session, ok := s.sessions.Get(owner)
	if !ok {
		return domain.MailboxSession{}, domain.ErrNoSession
	}
	return session, nil
}

// ListInbox 列出用户邮箱中的邮件，空列表表示没有邮件
func (s *SessionService) ListInbox(ctx context.Context, owner domain.OwnerID) ([]domain.MessageSummary, error) {
	session, err := s.Session(owner)
	if err != nil {
		return nil, err
	}
	return s.provider.ListMessages(ctx, session.AuthToken), nil
}

// ReadMessage 读取用户邮箱中的一封邮件
func (s *SessionService) ReadMessage(ctx context.Context, owner domain.OwnerID, messageID string) (*domain.Message, error) {
	// 没有会话优先于参数错误
	session, err := s.Session(owner)
	if err != nil {
		return nil, err
	}

	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, domain.ErrInvalidMessageID
	}

	msg, err := s.provider.FetchMessage(ctx, session.AuthToken, messageID)
	if err != nil {
		if !errors.Is(err, domain.ErrMessageNotFound) {
			err = errors.Join(domain.ErrMessageNotFound, err)
		}
		return nil, err
	}
	return msg, nil
}

func (s *SessionService) updateGauges() {
	if s.metrics != nil {
		s.metrics.UpdateSessions(s.sessions.Count(), s.users.Count())
	}
}
