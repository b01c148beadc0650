package contentcache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ceyewan/lexigate/contentcache"
	"github.com/ceyewan/lexigate/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putSized(t *testing.T, cache contentcache.Cache, text string, size int) contentcache.Key {
	t.Helper()
	src := baseSource()
	src.Text = text
	key := contentcache.Fingerprint(src)
	require.NoError(t, cache.Put(context.Background(), key, "word", make([]byte, size)))
	return key
}

func TestJanitorEvictsLRU(t *testing.T) {
	cache, meta, _ := newTestCache(t)
	ctx := context.Background()

	janitor, err := contentcache.NewJanitor(&contentcache.JanitorConfig{MaxBytes: 250}, cache, meta,
		contentcache.WithJanitorLogger(testkit.NewLogger()))
	require.NoError(t, err)

	// 5 条各 100 字节，写入顺序即访问顺序
	var keys []contentcache.Key
	for i := 0; i < 5; i++ {
		keys = append(keys, putSized(t, cache, fmt.Sprintf("word-%d", i), 100))
		time.Sleep(5 * time.Millisecond) // 保证 lastAccessedAt 严格递增
	}

	evicted, err := janitor.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, evicted)

	// 最久未访问的三条被驱逐，负载与元数据一并清除
	for _, key := range keys[:3] {
		_, err := meta.Get(ctx, key.ID)
		assert.ErrorIs(t, err, contentcache.ErrMetaNotFound)
	}
	for _, key := range keys[3:] {
		_, err := meta.Get(ctx, key.ID)
		assert.NoError(t, err)
	}

	_, bytes, err := cache.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(200), bytes)
}

func TestJanitorRespectsRecentAccess(t *testing.T) {
	cache, meta, _ := newTestCache(t)
	ctx := context.Background()

	janitor, err := contentcache.NewJanitor(&contentcache.JanitorConfig{MaxBytes: 200}, cache, meta,
		contentcache.WithJanitorLogger(testkit.NewLogger()))
	require.NoError(t, err)

	var keys []contentcache.Key
	for i := 0; i < 3; i++ {
		keys = append(keys, putSized(t, cache, fmt.Sprintf("word-%d", i), 100))
		time.Sleep(5 * time.Millisecond)
	}

	// 重新访问最老的一条，LRU 序应随之翻转
	time.Sleep(5 * time.Millisecond)
	_, err = cache.Get(ctx, keys[0])
	require.NoError(t, err)

	_, err = janitor.RunOnce(ctx)
	require.NoError(t, err)

	_, err = meta.Get(ctx, keys[0].ID)
	assert.NoError(t, err, "刚访问过的条目不应被驱逐")
	_, err = meta.Get(ctx, keys[1].ID)
	assert.ErrorIs(t, err, contentcache.ErrMetaNotFound)
}

func TestJanitorUnderLimitNoop(t *testing.T) {
	cache, meta, _ := newTestCache(t)

	janitor, err := contentcache.NewJanitor(&contentcache.JanitorConfig{MaxBytes: 1000}, cache, meta,
		contentcache.WithJanitorLogger(testkit.NewLogger()))
	require.NoError(t, err)

	putSized(t, cache, "word", 100)

	evicted, err := janitor.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, evicted)
}

func TestJanitorStartStop(t *testing.T) {
	cache, meta, _ := newTestCache(t)

	janitor, err := contentcache.NewJanitor(&contentcache.JanitorConfig{
		MaxBytes: 150,
		Interval: 10 * time.Millisecond,
	}, cache, meta, contentcache.WithJanitorLogger(testkit.NewLogger()))
	require.NoError(t, err)

	putSized(t, cache, "word-a", 100)
	putSized(t, cache, "word-b", 100)

	janitor.Start(context.Background())
	defer janitor.Stop()

	assert.Eventually(t, func() bool {
		_, bytes, err := cache.Stats(context.Background())
		return err == nil && bytes <= 150
	}, 2*time.Second, 10*time.Millisecond)

	// 重复启停安全
	janitor.Start(context.Background())
	janitor.Stop()
	janitor.Stop()
}

func TestJanitorConfigValidation(t *testing.T) {
	cache, meta, _ := newTestCache(t)
	_, err := contentcache.NewJanitor(&contentcache.JanitorConfig{}, cache, meta)
	assert.ErrorIs(t, err, contentcache.ErrJanitorMaxBytes)
}
