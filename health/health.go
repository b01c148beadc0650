// Package health 提供服务健康监控组件。
//
// health 跟踪每个命名服务的连续失败次数，是比熔断器更粗粒度的信号，
// 专门用于降级路由决策：熔断器在调用路径内快速失败，健康监控决定
// 是否值得发起调用。
//
// 特性：
//   - 按服务名跟踪连续失败，任意一次成功即清零
//   - 未注册的服务默认健康（fail open）
//   - 后台探测按固定间隔运行，与真实流量共用同一套计数
//   - 上下线转换通过发布/订阅通道推送，订阅者无需轮询
//   - 服务恢复时通过注入的钩子重置该服务的熔断器
//
// 基本使用：
//
//	mon, _ := health.NewMonitor(nil,
//	    health.WithLogger(logger),
//	    health.WithRecoveryHook(registry.ResetService),
//	)
//	defer mon.Close()
//
//	mon.Register("tts", health.WithProbe(func(ctx context.Context) error {
//	    return ttsClient.Ping(ctx)
//	}))
//
//	mon.RecordFailure("tts", err)
//	if !mon.IsHealthy("tts") {
//	    // 走降级路径
//	}
package health

import (
	"context"
	"time"
)

// Status 单个服务的健康快照
type Status struct {
	Service             string    `json:"service"`
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
	LastChecked         time.Time `json:"last_checked"`
}

// Event 健康状态转换事件
type Event struct {
	Service   string    `json:"service"`
	Healthy   bool      `json:"healthy"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ProbeFunc 主动探测函数，返回 nil 表示服务可用
type ProbeFunc func(ctx context.Context) error

// Monitor 服务健康监控接口
type Monitor interface {
	// Register 注册服务。probe 选项可选，注册后纳入后台探测。
	Register(service string, opts ...RegisterOption)

	// RecordSuccess 记录一次成功，清零连续失败计数。
	// 若服务此前不健康，发出恢复事件并触发恢复钩子。
	RecordSuccess(service string)

	// RecordFailure 记录一次失败。连续失败达到阈值时标记为不健康并发出事件。
	RecordFailure(service string, err error)

	// IsHealthy 返回服务健康状态。未注册的服务默认健康。
	IsHealthy(service string) bool

	// Unhealthy 返回当前所有不健康的服务名，已排序。
	Unhealthy() []string

	// StatusAll 返回全部已注册服务的快照，按服务名排序。
	StatusAll() []Status

	// Subscribe 订阅健康转换事件。返回的取消函数用于退订并关闭通道。
	// 通道带 16 槽缓冲；订阅者消费过慢导致缓冲写满时，后续事件被丢弃而不阻塞监控器。
	Subscribe() (<-chan Event, func())

	// Close 停止后台探测并关闭所有订阅通道。
	Close() error
}

// Config 健康监控配置
type Config struct {
	// FailureThreshold 连续失败多少次标记为不健康（默认：3）。
	// 与任何熔断器的阈值相互独立。
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`

	// ProbeInterval 后台探测间隔（默认：30s）
	ProbeInterval time.Duration `json:"probe_interval" yaml:"probe_interval" mapstructure:"probe_interval"`

	// ProbeTimeout 单次探测超时（默认：5s）
	ProbeTimeout time.Duration `json:"probe_timeout" yaml:"probe_timeout" mapstructure:"probe_timeout"`
}

func (c *Config) setDefaults() {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 3
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = 30 * time.Second
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 5 * time.Second
	}
}

// NewMonitor 创建健康监控实例并启动后台探测循环。
func NewMonitor(cfg *Config, opts ...Option) (Monitor, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	return newMonitor(cfg, &opt), nil
}
