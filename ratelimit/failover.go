package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/metrics"
	"github.com/ceyewan/lexigate/xerrors"
)

// defaultReprobeInterval 退化后尝试切回共享存储的间隔
const defaultReprobeInterval = 30 * time.Second

// NewFailover 把共享限流器与本地限流器组合成一个永不拒绝服务的整体：
// 共享存储不可达时切换到本地计数（语义不变，只是计数退化为单实例视角），
// 之后周期性重试共享存储，恢复即自动切回。
// 退化与恢复各记一条日志，不随请求刷屏。
func NewFailover(shared, local Limiter, opts ...Option) Limiter {
	f := &failoverLimiter{
		shared:  shared,
		local:   local,
		opts:    newOptions(opts...),
		reprobe: defaultReprobeInterval,
	}
	if f.opts.meter != nil {
		f.fallback, _ = f.opts.meter.Counter(MetricFallbackChecks, "Checks served by the local fallback limiter")
	}
	return f
}

type failoverLimiter struct {
	shared Limiter
	local  Limiter
	opts   *options

	reprobe  time.Duration
	fallback metrics.Counter

	mu          sync.Mutex
	degraded    bool
	lastAttempt time.Time
}

func (f *failoverLimiter) Check(ctx context.Context, identity string) (*Decision, error) {
	if f.useShared() {
		decision, err := f.shared.Check(ctx, identity)
		if err == nil {
			f.markRecovered(ctx)
			return decision, nil
		}
		if !xerrors.Is(err, ErrStoreUnreachable) {
			return nil, err
		}
		f.markDegraded(ctx, err)
	}

	if f.fallback != nil {
		f.fallback.Inc(ctx)
	}
	return f.local.Check(ctx, identity)
}

// useShared 判断本次是否走共享存储。退化期间每隔 reprobe 放行一次探测。
func (f *failoverLimiter) useShared() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.degraded {
		return true
	}
	if f.opts.now().Sub(f.lastAttempt) >= f.reprobe {
		f.lastAttempt = f.opts.now()
		return true
	}
	return false
}

func (f *failoverLimiter) markDegraded(ctx context.Context, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.degraded {
		return
	}
	f.degraded = true
	f.lastAttempt = f.opts.now()
	// 只在进入退化时记一条，不随每个请求重复
	f.opts.logger.WarnContext(ctx, "shared store unreachable, rate limiting degraded to local counters",
		clog.Error(err))
}

func (f *failoverLimiter) markRecovered(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.degraded {
		return
	}
	f.degraded = false
	f.opts.logger.InfoContext(ctx, "shared store reachable again, rate limiting resumed")
}
