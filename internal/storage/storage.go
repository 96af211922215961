package storage

import (
	"tempmail/bot/internal/domain"
)

// SessionRepository 定义邮箱会话的存取操作。
//
// 所有方法必须是并发安全的；返回值都是副本，调用方不能借此修改存储内容。
type SessionRepository interface {
	Put(session domain.MailboxSession)
	Get(owner domain.OwnerID) (domain.MailboxSession, bool)
	Snapshot() []domain.MailboxSession
	MarkSeen(owner domain.OwnerID, sessionID, messageID string) bool
	Count() int
	Addresses() []string
}

// UserRepository 定义交互用户登记表的操作，只增不减。
type UserRepository interface {
	Register(owner domain.OwnerID) bool
	Contains(owner domain.OwnerID) bool
	List() []domain.OwnerID
	Count() int
}
