package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/planzy/internal/config"
)

type testStruct struct {
	Name string
	Age  int
}

func setupTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cache, err := InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestSetAndGet(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	expected := testStruct{Name: "Alice", Age: 30}
	require.NoError(t, cache.Set(ctx, "user:1", expected, time.Minute))

	var actual testStruct
	found, err := cache.Get(ctx, "user:1", &actual)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, expected, actual)
}

func TestGetNotFound(t *testing.T) {
	cache, _ := setupTestCache(t)

	var out testStruct
	found, err := cache.Get(context.Background(), "no_such_key", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExpiration(t *testing.T) {
	cache, mr := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "plans:all", []string{"a"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	var out []string
	found, err := cache.Get(ctx, "plans:all", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidate(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k1", "v", time.Minute))
	require.NoError(t, cache.Set(ctx, "k2", "v", time.Minute))
	require.NoError(t, cache.Invalidate(ctx, "k1", "k2"))
	require.NoError(t, cache.Invalidate(ctx))

	var out string
	found, err := cache.Get(ctx, "k1", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetInvalidJSON(t *testing.T) {
	cache, _ := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Db.Set(ctx, "bad", []byte("not-json"), time.Minute).Err())

	var out testStruct
	found, err := cache.Get(ctx, "bad", &out)
	assert.False(t, found)
	assert.Error(t, err)
}

func TestInitServerInvalidAddr(t *testing.T) {
	cache, err := InitServer(context.Background(), config.RedisConnection{
		AddressRedis: "127.0.0.1:1",
		DialTimeout:  100 * time.Millisecond,
	})
	assert.Nil(t, cache)
	assert.Error(t, err)
}
