package ratelimit

import (
	"time"

	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/metrics"
)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
	now    func() time.Time
}

func newOptions(opts ...Option) *options {
	o := &options{
		logger: clog.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option 配置限流器的可选依赖
type Option func(*options)

// WithLogger 设置日志器
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMeter 设置指标采集器
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithClock 替换时钟源（测试窗口滑动用）
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
