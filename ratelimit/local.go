package ratelimit

import (
	"context"
	"sync"
	"time"
)

// NewLocal 创建进程内限流器。与 Redis 实现语义一致，
// 互斥锁保证同一身份的并发判定线性化。
// 作为 Failover 的退化路径，也可在单实例部署中独立使用。
func NewLocal(cfg *Config, opts ...Option) Limiter {
	if cfg == nil {
		cfg = &Config{}
	}
	config := *cfg
	config.setDefaults()

	return &localLimiter{
		config:  config,
		opts:    newOptions(opts...),
		windows: make(map[string][]time.Time),
	}
}

type localLimiter struct {
	config Config
	opts   *options

	mu      sync.Mutex
	windows map[string][]time.Time
}

func (l *localLimiter) Check(ctx context.Context, identity string) (*Decision, error) {
	if identity == "" {
		return nil, ErrIdentityEmpty
	}

	now := l.opts.now()
	cutoff := now.Add(-l.config.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	// 丢弃滑出窗口的时间戳
	window := l.windows[identity]
	kept := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	// 被拒绝的尝试同样记账，窗口按每次尝试递增
	kept = append(kept, now)
	l.windows[identity] = kept

	count := int64(len(kept))
	allowed := count <= l.config.MaxAttempts
	return buildDecision(l.config, now, allowed, count, kept[0]), nil
}
