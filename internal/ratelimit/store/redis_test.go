package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedisStore starts a miniredis instance and returns a store backed
// by it.
func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreWithClient(client, "test:", nil)
	t.Cleanup(func() { _ = s.Close() })

	return s, mr
}

func TestRedisStore_IncrementIfBelow(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		value, allowed, err := s.IncrementIfBelow(ctx, "key", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, i, value)
	}

	value, allowed, err := s.IncrementIfBelow(ctx, "key", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, int64(3), value, "rejected increment must not consume budget")
}

func TestRedisStore_KeyExpiry(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, _, err := s.IncrementIfBelow(ctx, "key", 10, time.Minute)
	require.NoError(t, err)

	// The expiry set by the script survives further increments.
	_, _, err = s.IncrementIfBelow(ctx, "key", 10, time.Minute)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	assert.False(t, mr.Exists("test:key"))

	value, allowed, err := s.IncrementIfBelow(ctx, "key", 10, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), value)
}

func TestRedisStore_Delete(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	_, _, err := s.IncrementIfBelow(ctx, "key", 10, time.Minute)
	require.NoError(t, err)
	require.True(t, mr.Exists("test:key"))

	require.NoError(t, s.Delete(ctx, "key"))

	assert.False(t, mr.Exists("test:key"))
}

func TestRedisStore_PrefixIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	a := NewRedisStoreWithClient(client, "a:", nil)
	b := NewRedisStoreWithClient(client, "b:", nil)
	ctx := context.Background()

	_, _, err := a.IncrementIfBelow(ctx, "key", 10, time.Minute)
	require.NoError(t, err)

	value, allowed, err := b.IncrementIfBelow(ctx, "key", 10, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, int64(1), value, "counters under different prefixes are independent")
}

func TestNewRedisStore_ConnectFailure(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Address = "127.0.0.1:1"
	cfg.DialTimeout = 100 * time.Millisecond

	_, err := NewRedisStore(cfg)
	assert.Error(t, err)
}
