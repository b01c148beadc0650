package breaker

import (
	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/metrics"
)

// StateChangeFunc 状态变更回调，用于对接健康监控等外部订阅者
type StateChangeFunc func(key Key, from, to State)

// Option 组件初始化选项函数
type Option func(*options)

// options 组件初始化选项配置（内部使用）
type options struct {
	logger        clog.Logger
	meter         metrics.Meter
	onStateChange StateChangeFunc
	critical      []string
}

// WithLogger 设置 Logger
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMeter 设置 Meter
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithStateChange 设置状态变更回调
func WithStateChange(fn StateChangeFunc) Option {
	return func(o *options) {
		o.onStateChange = fn
	}
}

// WithCriticalServices 设置关键服务列表，用于 Registry.CriticalStatus 聚合
func WithCriticalServices(services ...string) Option {
	return func(o *options) {
		o.critical = services
	}
}
