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

func newTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	r := NewRedisFromClient(client, "", ttl)
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func TestRedis(t *testing.T) {
	t.Parallel()

	r, _ := newTestRedis(t, 0)
	exerciseCache(t, r)
}

func TestRedis_StoresHashUnderPrefix(t *testing.T) {
	t.Parallel()

	r, mr := newTestRedis(t, 0)
	require.NoError(t, r.PutSummary(context.Background(), "doc-9", "hashed"))

	key := DefaultRedisPrefix + "doc-9"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, "hashed", mr.HGet(key, "summary"))
	assert.Equal(t, "doc-9", mr.HGet(key, "doc_id"))
	assert.Zero(t, mr.TTL(key))
}

func TestRedis_TTLExpiresRecords(t *testing.T) {
	t.Parallel()

	r, mr := newTestRedis(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, r.PutSummary(ctx, "doc-10", "short lived"))
	assert.Equal(t, time.Hour, mr.TTL(r.Key("doc-10")))

	mr.FastForward(2 * time.Hour)

	_, found, err := r.Get(ctx, "doc-10")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedis_ConnectionErrors(t *testing.T) {
	t.Parallel()

	r, mr := newTestRedis(t, 0)
	mr.Close()

	_, _, err := r.Get(context.Background(), "doc")
	require.Error(t, err)
	require.Error(t, r.PutSummary(context.Background(), "doc", "s"))
}

func TestNewRedis_BadURL(t *testing.T) {
	t.Parallel()

	_, err := NewRedis(context.Background(), "not a url", "", 0)
	require.Error(t, err)
}

func TestNewRedis_PingsServer(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	r, err := NewRedis(context.Background(), "redis://"+mr.Addr(), "custom:", 0)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "custom:doc", r.Key("doc"))
}
