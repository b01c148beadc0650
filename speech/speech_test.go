package speech_test

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ceyewan/lexigate/provider"
	"github.com/ceyewan/lexigate/retry"
	"github.com/ceyewan/lexigate/speech"
	"github.com/ceyewan/lexigate/testkit"
	"github.com/ceyewan/lexigate/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInvoker 可编程的提供方替身
type fakeInvoker struct {
	fn func(ctx context.Context, payload []byte) ([]byte, error)
}

func (f *fakeInvoker) Name() string { return "fake" }

func (f *fakeInvoker) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	return f.fn(ctx, payload)
}

func newTestClient(t *testing.T, cfg *speech.Config, fn func(ctx context.Context, payload []byte) ([]byte, error)) speech.Client {
	t.Helper()
	client, err := speech.New(cfg, &fakeInvoker{fn: fn}, speech.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	return client
}

func TestGenerateSuccess(t *testing.T) {
	client := newTestClient(t, nil, func(ctx context.Context, payload []byte) ([]byte, error) {
		var req speech.Request
		require.NoError(t, json.Unmarshal(payload, &req))
		assert.Equal(t, "butterfly", req.Text)
		return []byte("audio"), nil
	})

	artifact, err := client.Generate(context.Background(), &speech.Request{
		Text:  "butterfly",
		Model: "eleven_turbo_v2",
		Voice: "rachel",
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("audio"), artifact.Data)
	assert.Equal(t, int64(5), artifact.Size)
	assert.False(t, artifact.CreatedAt.IsZero())
}

func TestGenerateEmptyText(t *testing.T) {
	client := newTestClient(t, nil, func(ctx context.Context, payload []byte) ([]byte, error) {
		t.Fatal("should not invoke")
		return nil, nil
	})
	_, err := client.Generate(context.Background(), &speech.Request{})
	assert.ErrorIs(t, err, speech.ErrTextEmpty)
}

func TestAdmissionBoundsAndFIFO(t *testing.T) {
	const maxConcurrency = 6
	const total = 10

	var (
		mu         sync.Mutex
		startOrder []string
		inFlight   atomic.Int64
		peak       atomic.Int64
	)
	release := make(chan struct{})

	client := newTestClient(t, &speech.Config{MaxConcurrency: maxConcurrency}, func(ctx context.Context, payload []byte) ([]byte, error) {
		var req speech.Request
		_ = json.Unmarshal(payload, &req)

		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		mu.Lock()
		startOrder = append(startOrder, req.Text)
		mu.Unlock()

		<-release
		inFlight.Add(-1)
		return []byte("ok"), nil
	})

	var wg sync.WaitGroup
	launch := func(text string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Generate(context.Background(), &speech.Request{Text: text, Model: "m", Voice: "v"})
			assert.NoError(t, err)
		}()
	}

	// 先占满 6 个槽位
	for i := 0; i < maxConcurrency; i++ {
		launch(string(rune('a' + i)))
	}
	require.Eventually(t, func() bool {
		return client.InFlight() == maxConcurrency
	}, time.Second, 5*time.Millisecond)

	// 再按已知顺序逐个入队 4 个等待者
	queued := []string{"q0", "q1", "q2", "q3"}
	for _, text := range queued {
		launch(text)
		time.Sleep(20 * time.Millisecond) // 保证入队顺序确定
	}

	// 任一时刻在途不超过上限
	assert.Equal(t, int64(maxConcurrency), peak.Load())

	// 逐个放行，等待者应按到达顺序获得槽位
	for i := 0; i < total; i++ {
		release <- struct{}{}
	}
	wg.Wait()

	assert.Equal(t, int64(maxConcurrency), peak.Load())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, startOrder, total)
	assert.Equal(t, queued, startOrder[maxConcurrency:])
}

func TestSlotReleasedOnError(t *testing.T) {
	boom := xerrors.New("bad request")
	client := newTestClient(t, &speech.Config{MaxConcurrency: 1}, func(ctx context.Context, payload []byte) ([]byte, error) {
		return nil, provider.NewPermanentError("fake", 400, boom)
	})

	// 连续调用均能取到唯一槽位，说明失败路径不泄漏容量
	for i := 0; i < 3; i++ {
		_, err := client.Generate(context.Background(), &speech.Request{Text: "x", Model: "m", Voice: "v"})
		require.Error(t, err)
	}
	assert.Equal(t, int64(0), client.InFlight())
}

func TestRetryOnlyRateLimited(t *testing.T) {
	t.Run("限流错误重试后成功", func(t *testing.T) {
		calls := 0
		client := newTestClient(t, &speech.Config{
			Retry: retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
		}, func(ctx context.Context, payload []byte) ([]byte, error) {
			calls++
			if calls < 3 {
				return nil, provider.ClassifyStatus("fake", 429)
			}
			return []byte("ok"), nil
		})

		_, err := client.Generate(context.Background(), &speech.Request{Text: "x", Model: "m", Voice: "v"})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("非限流失败立即上抛", func(t *testing.T) {
		calls := 0
		client := newTestClient(t, &speech.Config{
			Retry: retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
		}, func(ctx context.Context, payload []byte) ([]byte, error) {
			calls++
			return nil, provider.ClassifyStatus("fake", 400)
		})

		_, err := client.Generate(context.Background(), &speech.Request{Text: "x", Model: "m", Voice: "v"})
		require.Error(t, err)
		assert.False(t, provider.IsTransient(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("重试耗尽返回最后一次错误", func(t *testing.T) {
		calls := 0
		client := newTestClient(t, &speech.Config{
			Retry: retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond},
		}, func(ctx context.Context, payload []byte) ([]byte, error) {
			calls++
			return nil, provider.ClassifyStatus("fake", 429)
		})

		_, err := client.Generate(context.Background(), &speech.Request{Text: "x", Model: "m", Voice: "v"})
		require.Error(t, err)
		assert.True(t, provider.IsRateLimited(err))
		assert.Equal(t, 2, calls)
	})
}

func TestCallTimeout(t *testing.T) {
	client := newTestClient(t, &speech.Config{
		CallTimeout: 20 * time.Millisecond,
		Retry:       retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond},
	}, func(ctx context.Context, payload []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	start := time.Now()
	_, err := client.Generate(context.Background(), &speech.Request{Text: "x", Model: "m", Voice: "v"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// 调用超时独立于外层 ctx，不会无限等待
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int64(0), client.InFlight())
}

func TestQueueAbandonedOnCancel(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, &speech.Config{MaxConcurrency: 1}, func(ctx context.Context, payload []byte) ([]byte, error) {
		<-release
		return []byte("ok"), nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := client.Generate(context.Background(), &speech.Request{Text: "a", Model: "m", Voice: "v"})
		assert.NoError(t, err)
	}()
	require.Eventually(t, func() bool { return client.InFlight() == 1 }, time.Second, 5*time.Millisecond)

	// 第二个调用排队后取消，应立即返回且不占槽位
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Generate(ctx, &speech.Request{Text: "b", Model: "m", Voice: "v"})
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	wg.Wait()
}
