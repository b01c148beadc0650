package contentcache

import (
	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/metrics"
)

// Option 配置缓存的可选依赖
type Option func(*cache)

// WithLogger 设置日志器
func WithLogger(logger clog.Logger) Option {
	return func(c *cache) {
		c.logger = logger
	}
}

// WithMeter 设置指标采集器
func WithMeter(meter metrics.Meter) Option {
	return func(c *cache) {
		c.meter = meter
	}
}

// WithBlobStore 替换默认的文件系统 Blob 存储
func WithBlobStore(blobs BlobStore) Option {
	return func(c *cache) {
		c.blobs = blobs
	}
}
