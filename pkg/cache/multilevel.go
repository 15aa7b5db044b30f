package cache

import (
	"context"
	"time"

	"github.com/alfarkas/basic-contract-interaction/pkg/logger"

	"go.uber.org/zap"
)

// MultiLevelCache L1 进程内 + L2 Redis, 多个 product-server 实例共享 L2
// L1 条目最多保留 localTTL, 限制实例间读到旧列表的时间
type MultiLevelCache struct {
	local    Cache
	remote   Cache
	localTTL time.Duration
}

func NewMultiLevelCache(local, remote Cache, localTTL time.Duration) *MultiLevelCache {
	return &MultiLevelCache{local: local, remote: remote, localTTL: localTTL}
}

func (m *MultiLevelCache) l1TTL(ttl time.Duration) time.Duration {
	if m.localTTL > 0 && (ttl <= 0 || ttl > m.localTTL) {
		return m.localTTL
	}
	return ttl
}

func (m *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := m.local.Set(ctx, key, value, m.l1TTL(ttl)); err != nil {
		logger.Warn("L1 缓存写入失败", zap.String("key", key), zap.Error(err))
	}
	return m.remote.Set(ctx, key, value, ttl)
}

func (m *MultiLevelCache) Get(ctx context.Context, key string, target interface{}) error {
	// 1. L1
	if err := m.local.Get(ctx, key, target); err == nil {
		return nil
	}

	// 2. L2, 命中后回写 L1
	if err := m.remote.Get(ctx, key, target); err != nil {
		return err
	}
	_ = m.local.Set(ctx, key, target, m.l1TTL(0))
	return nil
}

func (m *MultiLevelCache) Delete(ctx context.Context, key string) error {
	_ = m.local.Delete(ctx, key)
	return m.remote.Delete(ctx, key)
}
