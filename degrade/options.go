package degrade

import (
	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/metrics"
	"github.com/ceyewan/lexigate/xerrors"
)

// 错误定义
var (
	// ErrMonitorNil 健康监控实例为空
	ErrMonitorNil = xerrors.New("degrade: health monitor is nil")
)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger          clog.Logger
	meter           metrics.Meter
	learnerMessages map[string]string
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

// WithLearnerMessage 为指定服务设置面向学习者的降级措辞
func WithLearnerMessage(service, message string) Option {
	return func(o *options) {
		if o.learnerMessages == nil {
			o.learnerMessages = make(map[string]string)
		}
		o.learnerMessages[service] = message
	}
}
