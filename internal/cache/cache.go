package cache

import (
	"context"
	"time"
)

// StringsCache 字符串列表缓存，用于服务商域名列表
type StringsCache interface {
	GetStrings(ctx context.Context, key string) ([]string, bool)
	SetStrings(ctx context.Context, key string, values []string, ttl time.Duration) error
}

// Tiered 两级缓存：先查本地，未命中再查共享缓存并回填本地
type Tiered struct {
	local  StringsCache
	shared StringsCache
}

// NewTiered 创建两级缓存，shared 为 nil 时退化为仅本地缓存
func NewTiered(local, shared StringsCache) *Tiered {
	return &Tiered{local: local, shared: shared}
}

// GetStrings 实现 StringsCache
func (t *Tiered) GetStrings(ctx context.Context, key string) ([]string, bool) {
	if values, ok := t.local.GetStrings(ctx, key); ok {
		return values, true
	}
	if t.shared == nil {
		return nil, false
	}
	values, ok := t.shared.GetStrings(ctx, key)
	if !ok {
		return nil, false
	}
	// 回填时使用 0 表示本地默认 TTL
	_ = t.local.SetStrings(ctx, key, values, 0)
	return values, true
}

// SetStrings 同时写入两级缓存，共享缓存失败时返回其错误
func (t *Tiered) SetStrings(ctx context.Context, key string, values []string, ttl time.Duration) error {
	_ = t.local.SetStrings(ctx, key, values, ttl)
	if t.shared == nil {
		return nil
	}
	return t.shared.SetStrings(ctx, key, values, ttl)
}
