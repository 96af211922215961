package memory

import (
	"sort"
	"sync"

	"tempmail/bot/internal/domain"
)

// SessionStore 在内存中保存每个用户的邮箱会话。
//
// 每个用户最多一个会话；重新创建会整体替换旧会话（包括 Seen 集合）。
// 进程重启后会话全部丢失。
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.OwnerID]*domain.MailboxSession
}

// NewSessionStore 创建一个空的会话存储。
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.OwnerID]*domain.MailboxSession),
	}
}

// Put 无条件替换用户的会话。
func (s *SessionStore) Put(session domain.MailboxSession) {
	stored := session.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Owner] = &stored
}

// Get 返回用户当前会话的副本。
func (s *SessionStore) Get(owner domain.OwnerID) (domain.MailboxSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[owner]
	if !ok {
		return domain.MailboxSession{}, false
	}
	return session.Clone(), true
}

// Snapshot 返回全部会话的时间点副本，按用户 ID 排序。
func (s *SessionStore) Snapshot() []domain.MailboxSession {
	s.mu.RLock()
	result := make([]domain.MailboxSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		result = append(result, session.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Owner < result[j].Owner
	})
	return result
}

// MarkSeen 将邮件 ID 加入用户会话的 Seen 集合。
//
// sessionID 必须与当前会话一致，否则说明会话已被替换，写入被忽略并返回 false。
// 重复标记同一 ID 是幂等的。
func (s *SessionStore) MarkSeen(owner domain.OwnerID, sessionID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[owner]
	if !ok || session.ID != sessionID {
		return false
	}
	session.Seen[messageID] = struct{}{}
	return true
}

// Count 返回当前会话数量。
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Addresses 返回全部活跃邮箱地址（已排序）。
func (s *SessionStore) Addresses() []string {
	s.mu.RLock()
	addresses := make([]string, 0, len(s.sessions))
	for _, session := range s.sessions {
		addresses = append(addresses, session.Address)
	}
	s.mu.RUnlock()

	sort.Strings(addresses)
	return addresses
}
