package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, "test:"), mr
}

func TestMemoryCacheReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	src := []item{{Name: "a", Count: 1}}
	require.NoError(t, c.Set(ctx, "k", src, time.Minute))
	src[0].Count = 99

	var got []item
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, 1, got[0].Count)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestRedisCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, mr := newRedisCache(t)

	require.NoError(t, c.Set(ctx, "k", item{Name: "a"}, time.Second))
	assert.True(t, mr.Exists("test:k"))

	var got item
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "a", got.Name)

	mr.FastForward(2 * time.Second)
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMultiLevelCacheBackfillsLocal(t *testing.T) {
	ctx := context.Background()
	local := NewMemoryCache(time.Minute, time.Minute)
	remote, _ := newRedisCache(t)
	c := NewMultiLevelCache(local, remote, time.Second)

	// 只写 L2, 读取后 L1 应被回写
	require.NoError(t, remote.Set(ctx, "k", item{Name: "remote"}, time.Minute))

	var got item
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, "remote", got.Name)

	var fromLocal item
	require.NoError(t, local.Get(ctx, "k", &fromLocal))
	assert.Equal(t, "remote", fromLocal.Name)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestGetOrLoad(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	calls := 0
	load := func(ctx context.Context) ([]item, error) {
		calls++
		return []item{{Name: "chair", Count: calls}}, nil
	}

	first, err := GetOrLoad(ctx, c, "products", time.Minute, load)
	require.NoError(t, err)
	second, err := GetOrLoad(ctx, c, "products", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	// 未启用缓存时每次都加载
	_, _ = GetOrLoad(ctx, nil, "products", time.Minute, load)
	_, _ = GetOrLoad(ctx, c, "other", 0, load)
	assert.Equal(t, 3, calls)
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	_, err := GetOrLoad(ctx, c, "k", time.Minute, func(ctx context.Context) (int, error) {
		return 0, assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	var v int
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrCacheMiss)
}
