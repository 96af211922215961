package memory

import (
	"sort"
	"sync"
	"time"

	"tempmail/bot/internal/domain"
)

// UserRegistry 记录所有与机器人交互过的用户，只增不减，用于广播。
type UserRegistry struct {
	mu    sync.RWMutex
	users map[domain.OwnerID]time.Time // owner -> 首次出现时间
}

// NewUserRegistry 创建用户登记表。
func NewUserRegistry() *UserRegistry {
	return &UserRegistry{
		users: make(map[domain.OwnerID]time.Time),
	}
}

// Register 登记用户，首次登记时返回 true。
func (r *UserRegistry) Register(owner domain.OwnerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[owner]; ok {
		return false
	}
	r.users[owner] = time.Now().UTC()
	return true
}

// Contains 判断用户是否已登记。
func (r *UserRegistry) Contains(owner domain.OwnerID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[owner]
	return ok
}

// List 返回全部已登记用户（按 ID 排序）。
func (r *UserRegistry) List() []domain.OwnerID {
	r.mu.RLock()
	owners := make([]domain.OwnerID, 0, len(r.users))
	for owner := range r.users {
		owners = append(owners, owner)
	}
	r.mu.RUnlock()

	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })
	return owners
}

// Count 返回已登记用户数量。
func (r *UserRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
