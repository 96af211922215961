package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"tempmail/bot/internal/config"
)

func TestNew_UnreachableServer(t *testing.T) {
	// 端口 1 上没有 Redis，连接应当立即失败
	client, err := New(context.Background(), config.RedisConfig{Address: "127.0.0.1:1"}, zap.NewNop())

	assert.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}
