// Package metrics 为 lexigate 提供统一的指标收集能力。
// 基于 OpenTelemetry 标准构建，提供 Counter、Gauge、Histogram 三类指标接口，
// 并通过内置的 Prometheus HTTP 端点暴露数据。
//
// 快速开始：
//
//	meter, _ := metrics.New(&metrics.Config{
//	    Enabled:     true,
//	    ServiceName: "lexigate",
//	    Port:        9090,
//	    Path:        "/metrics",
//	})
//	defer meter.Shutdown(ctx)
//
//	hits, _ := meter.Counter("contentcache_hits_total", "缓存命中总数")
//	hits.Inc(ctx, metrics.L("type", "audio"))
package metrics

import "context"

// Meter 指标工厂接口。
type Meter interface {
	// Counter 创建只增计数器。
	Counter(name, desc string) (Counter, error)

	// Gauge 创建可增减的瞬时值指标。
	Gauge(name, desc string) (Gauge, error)

	// Histogram 创建直方图，用于耗时、大小等分布统计。
	Histogram(name, desc string) (Histogram, error)

	// Shutdown 关闭 Meter 并刷新未导出的指标。
	Shutdown(ctx context.Context) error
}

// Counter 只增计数器。
type Counter interface {
	Inc(ctx context.Context, labels ...Label)
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 可增减的瞬时值。
type Gauge interface {
	Set(ctx context.Context, val float64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 分布统计。
type Histogram interface {
	Record(ctx context.Context, val float64, labels ...Label)
}

// Label 指标标签。标签值应保持低基数，避免使用请求 ID 等高基数值。
type Label struct {
	Key   string
	Value string
}

// L 便捷构造一个 Label。
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

// Config 指标系统配置。
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter，所有操作都是空操作。
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ServiceName 作为 OTel Resource 的 service.name 属性。
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`

	// Version 作为 OTel Resource 的 service.version 属性。
	Version string `mapstructure:"version" yaml:"version"`

	// Port 大于 0 时启动 Prometheus HTTP 服务器暴露指标。
	Port int `mapstructure:"port" yaml:"port"`

	// Path Prometheus 指标路径，默认 "/metrics"。
	Path string `mapstructure:"path" yaml:"path"`
}

// NewDevDefaultConfig 返回适合测试/开发的默认配置（不监听端口）。
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Version:     "dev",
	}
}
