// Package breaker 提供熔断器组件，按 (服务, 操作) 粒度隔离故障依赖。
//
// breaker 是 lexigate 治理层的核心组件，它提供了：
//   - 基于 gobreaker 的两步式熔断器实现（先准入，后上报结果）
//   - (服务, 操作) 级粒度的熔断管理，阈值按调用点独立配置
//   - 自动故障隔离和自动恢复（通过半开状态探测）
//   - Registry 统一管理所有熔断器并聚合健康状态
//
// 基本使用：
//
//	reg, _ := breaker.NewRegistry(nil, breaker.WithLogger(logger))
//	brk := reg.Get("tts", "synthesize", &breaker.Config{
//	    FailureThreshold: 5,
//	    ResetTimeout:     30 * time.Second,
//	})
//
//	done, err := brk.AllowRequest()
//	if err != nil {
//	    return err // 熔断中，快速失败
//	}
//	result, err := callProvider(ctx)
//	done(err == nil)
//
// 或使用闭包形式：
//
//	err := brk.Execute(ctx, func() error { return callProvider(ctx) })
package breaker

import (
	"context"
	"time"
)

// State 熔断器状态
type State int

const (
	// StateClosed 闭合状态（正常）
	StateClosed State = iota
	// StateHalfOpen 半开状态（探测恢复）
	StateHalfOpen
	// StateOpen 打开状态（熔断中）
	StateOpen
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Key 唯一标识一个熔断器
type Key struct {
	Service   string
	Operation string
}

// String 返回 "service/operation" 形式的键
func (k Key) String() string {
	return k.Service + "/" + k.Operation
}

// Done 上报一次受熔断保护调用的结果
type Done func(success bool)

// Breaker 熔断器核心接口
type Breaker interface {
	// AllowRequest 询问是否允许发起请求。
	// 允许时返回用于上报结果的 Done 回调；
	// 熔断中返回 ErrOpenState，该错误不计入失败阈值。
	AllowRequest() (Done, error)

	// Execute 执行受熔断保护的函数，自动上报结果。
	Execute(ctx context.Context, fn func() error) error

	// Status 返回当前状态快照
	Status() Status

	// Reset 将熔断器重置为初始闭合状态
	Reset()
}

// Status 熔断器状态快照
type Status struct {
	Key                 Key       `json:"key"`
	State               State     `json:"state"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	NextAttempt         time.Time `json:"next_attempt,omitzero"` // 仅打开状态有意义
}

// Config 熔断器配置。阈值按调用点配置：数据库类依赖容忍的失败次数
// 应低于生成式内容调用。
type Config struct {
	// FailureThreshold 连续失败多少次后熔断（默认：5）
	FailureThreshold uint32 `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`

	// SuccessThreshold 半开状态下连续成功多少次后闭合（默认：1）。
	// 同时也是半开状态允许的最大并发探测数。
	SuccessThreshold uint32 `json:"success_threshold" yaml:"success_threshold" mapstructure:"success_threshold"`

	// ResetTimeout 打开状态持续时间，超时后进入半开探测（默认：30s）
	ResetTimeout time.Duration `json:"reset_timeout" yaml:"reset_timeout" mapstructure:"reset_timeout"`

	// Interval 闭合状态下的计数清空周期（默认：0，不清空）
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
}

// setDefaults 填充默认值
func (c *Config) setDefaults() {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = 1
	}
	if c.ResetTimeout == 0 {
		c.ResetTimeout = 30 * time.Second
	}
}

// New 创建独立的熔断器实例。
// 一般情况下应通过 Registry.Get 获取，确保同一 (服务, 操作) 只有一个实例。
func New(key Key, cfg *Config, opts ...Option) (Breaker, error) {
	if key.Service == "" || key.Operation == "" {
		return nil, ErrKeyEmpty
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	return newBreaker(key, cfg, &opt), nil
}
