package ratelimit_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ceyewan/lexigate/ratelimit"
	"github.com/ceyewan/lexigate/testkit"
	"github.com/ceyewan/lexigate/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyLimiter 可随时标记为不可达的共享限流器替身
type flakyLimiter struct {
	inner ratelimit.Limiter
	down  atomic.Bool
	calls atomic.Int64
}

func (f *flakyLimiter) Check(ctx context.Context, identity string) (*ratelimit.Decision, error) {
	f.calls.Add(1)
	if f.down.Load() {
		return nil, xerrors.Wrap(ratelimit.ErrStoreUnreachable, "injected")
	}
	return f.inner.Check(ctx, identity)
}

func newFailoverFixture(t *testing.T, clock *fakeClock) (*flakyLimiter, ratelimit.Limiter) {
	t.Helper()
	cfg := &ratelimit.Config{MaxAttempts: 3, Window: time.Minute}

	shared := &flakyLimiter{inner: ratelimit.NewLocal(cfg, ratelimit.WithClock(clock.Now))}
	local := ratelimit.NewLocal(cfg, ratelimit.WithClock(clock.Now))
	failover := ratelimit.NewFailover(shared, local,
		ratelimit.WithLogger(testkit.NewLogger()),
		ratelimit.WithClock(clock.Now))
	return shared, failover
}

func TestFailoverDegradesAndServes(t *testing.T) {
	clock := newFakeClock()
	shared, failover := newFailoverFixture(t, clock)
	ctx := context.Background()

	// 共享存储正常时走共享路径
	decision, err := failover.Check(ctx, "student")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// 共享存储中途故障：请求照常被判定，语义不变。
	// 本地计数从故障时刻起步，故障前的一次共享计数丢失是可接受的退化,
	// 因此本地路径还能放行满额的 3 次
	shared.down.Store(true)
	for i := 0; i < 3; i++ {
		decision, err = failover.Check(ctx, "student")
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "退化后第 %d 次应放行", i+1)
	}
	decision, err = failover.Check(ctx, "student")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestFailoverProbesOnceNotPerRequest(t *testing.T) {
	clock := newFakeClock()
	shared, failover := newFailoverFixture(t, clock)
	ctx := context.Background()

	shared.down.Store(true)
	_, err := failover.Check(ctx, "student")
	require.NoError(t, err)
	callsAfterDegrade := shared.calls.Load()

	// 退化期间的请求不再逐个敲打共享存储
	for i := 0; i < 10; i++ {
		_, err := failover.Check(ctx, "student")
		require.NoError(t, err)
	}
	assert.Equal(t, callsAfterDegrade, shared.calls.Load())

	// 过了重探间隔才再试一次
	clock.Advance(31 * time.Second)
	_, err = failover.Check(ctx, "student")
	require.NoError(t, err)
	assert.Equal(t, callsAfterDegrade+1, shared.calls.Load())
}

func TestFailoverAutoResumes(t *testing.T) {
	clock := newFakeClock()
	shared, failover := newFailoverFixture(t, clock)
	ctx := context.Background()

	shared.down.Store(true)
	_, err := failover.Check(ctx, "student")
	require.NoError(t, err)

	// 存储恢复后，下一次重探起全部流量切回共享路径
	shared.down.Store(false)
	clock.Advance(31 * time.Second)
	_, err = failover.Check(ctx, "student")
	require.NoError(t, err)

	before := shared.calls.Load()
	for i := 0; i < 5; i++ {
		_, err := failover.Check(ctx, "other")
		require.NoError(t, err)
	}
	assert.Equal(t, before+5, shared.calls.Load())
}

func TestFailoverMidRunStoreFailure(t *testing.T) {
	// 真实 Redis 实现配合注入故障：运行中存储失联，请求不被阻断
	clock := newFakeClock()
	cfg := &ratelimit.Config{MaxAttempts: 5, Window: time.Minute}
	conn, srv := testkit.NewRedisConnector(t)

	shared, err := ratelimit.NewRedis(cfg, conn,
		ratelimit.WithLogger(testkit.NewLogger()),
		ratelimit.WithClock(clock.Now))
	require.NoError(t, err)

	failover := ratelimit.NewFailover(shared,
		ratelimit.NewLocal(cfg, ratelimit.WithClock(clock.Now)),
		ratelimit.WithLogger(testkit.NewLogger()),
		ratelimit.WithClock(clock.Now))
	ctx := context.Background()

	decision, err := failover.Check(ctx, "student")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	srv.Close()
	for i := 0; i < 3; i++ {
		decision, err = failover.Check(ctx, "student")
		require.NoError(t, err, "存储失联不得阻断请求")
		assert.True(t, decision.Allowed)
	}
}
