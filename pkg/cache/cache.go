package cache

import (
	"context"
	"errors"
	"time"

	"github.com/alfarkas/basic-contract-interaction/pkg/logger"

	"go.uber.org/zap"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// Cache 值以 JSON 保存, Get 反序列化到 target
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Get 未命中返回 ErrCacheMiss
	Get(ctx context.Context, key string, target interface{}) error
	Delete(ctx context.Context, key string) error
}

// GetOrLoad 命中直接返回, 否则调用 load 并写回缓存
// c 为 nil 或 ttl <= 0 时每次都调用 load. 缓存读写失败只记日志, 不影响结果.
func GetOrLoad[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	if c == nil || ttl <= 0 {
		return load(ctx)
	}

	var cached T
	err := c.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		logger.Warn("读取缓存失败", zap.String("key", key), zap.Error(err))
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, key, v, ttl); err != nil {
		logger.Warn("写入缓存失败", zap.String("key", key), zap.Error(err))
	}
	return v, nil
}
