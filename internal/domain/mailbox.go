package domain

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// OwnerID 表示外部分配的用户身份（聊天平台的 chat id）。
type OwnerID int64

// String 返回十进制表示，便于日志与路由参数。
func (o OwnerID) String() string {
	return strconv.FormatInt(int64(o), 10)
}

// ParseOwnerID 解析十进制的用户身份。
func ParseOwnerID(raw string) (OwnerID, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return OwnerID(v), nil
}

// MailboxSession 表示某个用户当前持有的临时邮箱会话。
//
// Address、AuthToken 与 ID 在创建时一次性写入，之后只允许 Seen 集合增长。
type MailboxSession struct {
	ID        string              `json:"id"`
	Owner     OwnerID             `json:"owner"`
	Address   string              `json:"address"`
	AuthToken string              `json:"-"`
	CreatedAt time.Time           `json:"createdAt"`
	Seen      map[string]struct{} `json:"-"`
}

// NewMailboxSession 基于已开通的账号创建一个空 Seen 集合的新会话。
func NewMailboxSession(owner OwnerID, account *Account) MailboxSession {
	return MailboxSession{
		ID:        uuid.NewString(),
		Owner:     owner,
		Address:   account.Address,
		AuthToken: account.Token,
		CreatedAt: time.Now().UTC(),
		Seen:      make(map[string]struct{}),
	}
}

// HasSeen 判断邮件是否已通知过。
func (s MailboxSession) HasSeen(messageID string) bool {
	_, ok := s.Seen[messageID]
	return ok
}

// SeenIDs 返回排序后的已通知邮件 ID。
func (s MailboxSession) SeenIDs() []string {
	ids := make([]string, 0, len(s.Seen))
	for id := range s.Seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone 深拷贝会话，调用方可以自由读取而不与存储层共享 Seen。
func (s MailboxSession) Clone() MailboxSession {
	seen := make(map[string]struct{}, len(s.Seen))
	for id := range s.Seen {
		seen[id] = struct{}{}
	}
	s.Seen = seen
	return s
}
