package speech

import (
	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/metrics"
)

// Option 配置客户端的可选依赖
type Option func(*client)

// WithLogger 设置日志器
func WithLogger(logger clog.Logger) Option {
	return func(c *client) {
		c.logger = logger
	}
}

// WithMeter 设置指标采集器
func WithMeter(meter metrics.Meter) Option {
	return func(c *client) {
		c.meter = meter
	}
}
