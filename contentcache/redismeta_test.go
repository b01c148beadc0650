package contentcache_test

import (
	"context"
	"testing"
	"time"

	"github.com/ceyewan/lexigate/contentcache"
	"github.com/ceyewan/lexigate/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisMetaStore(t *testing.T) contentcache.MetaStore {
	t.Helper()
	conn, _ := testkit.NewRedisConnector(t)
	store, err := contentcache.NewRedisMetaStore(conn)
	require.NoError(t, err)
	return store
}

func sampleMeta(key string, size int64, at time.Time) *contentcache.Meta {
	return &contentcache.Meta{
		Key:            key,
		Digest:         key + "0000",
		Type:           "word",
		Size:           size,
		Location:       "word/" + key[:2] + "/" + key + ".bin",
		CreatedAt:      at,
		LastAccessedAt: at,
	}
}

func TestRedisMetaRoundTrip(t *testing.T) {
	store := newRedisMetaStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	meta := sampleMeta("abcdef0123456789", 42, now)
	require.NoError(t, store.Put(ctx, meta))

	got, err := store.Get(ctx, meta.Key)
	require.NoError(t, err)
	assert.Equal(t, meta.Key, got.Key)
	assert.Equal(t, meta.Digest, got.Digest)
	assert.Equal(t, int64(42), got.Size)
	assert.Equal(t, meta.Location, got.Location)

	_, err = store.Get(ctx, "missing0missing0")
	assert.ErrorIs(t, err, contentcache.ErrMetaNotFound)
}

func TestRedisMetaTouch(t *testing.T) {
	store := newRedisMetaStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	meta := sampleMeta("abcdef0123456789", 42, now)
	require.NoError(t, store.Put(ctx, meta))

	later := now.Add(time.Minute)
	require.NoError(t, store.Touch(ctx, meta.Key, later))
	require.NoError(t, store.Touch(ctx, meta.Key, later.Add(time.Minute)))

	got, err := store.Get(ctx, meta.Key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Hits)
	assert.True(t, got.LastAccessedAt.After(later.Add(30*time.Second)))

	// 不存在的键为空操作
	assert.NoError(t, store.Touch(ctx, "missing0missing0", later))
}

func TestRedisMetaLRUOrderAndStats(t *testing.T) {
	store := newRedisMetaStore(t)
	ctx := context.Background()
	base := time.Now().Truncate(time.Millisecond)

	keys := []string{"cccccccccccccccc", "aaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbb"}
	ages := []time.Duration{2 * time.Minute, 0, time.Minute}
	for i, key := range keys {
		require.NoError(t, store.Put(ctx, sampleMeta(key, 10, base.Add(ages[i]))))
	}

	oldest, err := store.OldestFirst(ctx, 2)
	require.NoError(t, err)
	require.Len(t, oldest, 2)
	assert.Equal(t, "aaaaaaaaaaaaaaaa", oldest[0].Key)
	assert.Equal(t, "bbbbbbbbbbbbbbbb", oldest[1].Key)

	count, bytes, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, int64(30), bytes)
}

func TestRedisMetaDelete(t *testing.T) {
	store := newRedisMetaStore(t)
	ctx := context.Background()
	now := time.Now()

	meta := sampleMeta("abcdef0123456789", 42, now)
	require.NoError(t, store.Put(ctx, meta))
	require.NoError(t, store.Delete(ctx, meta.Key))

	_, err := store.Get(ctx, meta.Key)
	assert.ErrorIs(t, err, contentcache.ErrMetaNotFound)

	count, bytes, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, int64(0), bytes)

	// 重复删除为空操作
	assert.NoError(t, store.Delete(ctx, meta.Key))
}

func TestRedisMetaOverwriteAdjustsBytes(t *testing.T) {
	store := newRedisMetaStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Put(ctx, sampleMeta("abcdef0123456789", 100, now)))
	require.NoError(t, store.Put(ctx, sampleMeta("abcdef0123456789", 40, now)))

	count, bytes, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, int64(40), bytes)
}
