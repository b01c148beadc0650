package health

import (
	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/metrics"
)

// RecoveryHook 服务从不健康恢复时触发，参数为服务名。
// 典型用法是接入 breaker.Registry.ResetService。
type RecoveryHook func(service string)

// Option 组件初始化选项函数
type Option func(*options)

type options struct {
	logger       clog.Logger
	meter        metrics.Meter
	recoveryHook RecoveryHook
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

// WithRecoveryHook 设置恢复钩子
func WithRecoveryHook(hook RecoveryHook) Option {
	return func(o *options) {
		o.recoveryHook = hook
	}
}

// RegisterOption 服务注册选项
type RegisterOption func(*registerOptions)

type registerOptions struct {
	probe ProbeFunc
}

// WithProbe 为服务设置主动探测函数
func WithProbe(probe ProbeFunc) RegisterOption {
	return func(o *registerOptions) {
		o.probe = probe
	}
}
