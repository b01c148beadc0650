// Package ratelimit 提供滑动窗口限流器，守住登录等敏感入口。
//
// 每个身份维护一个时间戳窗口：丢弃 now-window 之前的记录，追加本次时间戳，
// 计数不超过上限才放行。被拒绝的尝试同样进入窗口，持续撞限的调用方
// 会一直被拒绝，直到停止尝试满一个窗口。
// 首选 Redis 共享存储（多实例观察到同一份计数，Lua 脚本保证读改写原子），
// 共享存储不可达时透明退化为本地计数，恢复后自动切回，退化只记一条日志。
//
// 基本使用：
//
//	limiter := ratelimit.NewFailover(cfg, shared, local, opts...)
//	decision, _ := limiter.Check(ctx, clientIP)
//	if !decision.Allowed {
//	    // 返回 429，附 decision.RetryAfter
//	}
package ratelimit

import (
	"context"
	"time"
)

// Decision 一次限流判定的完整结果
type Decision struct {
	// Allowed 是否放行
	Allowed bool

	// Limit 窗口内最大尝试数
	Limit int64

	// Count 当前窗口内的尝试数（含本次，无论是否放行）
	Count int64

	// Remaining 窗口内剩余可用次数
	Remaining int64

	// ResetAt 窗口内最早一次尝试滑出窗口的绝对时间
	ResetAt time.Time

	// RetryAfter 被拒绝时建议的等待时长，放行时为 0
	RetryAfter time.Duration
}

// Limiter 滑动窗口限流器
type Limiter interface {
	// Check 判定 identity 的本次尝试是否放行。
	// 同一 identity 的并发判定是线性化的：只剩一个名额时不会放行两个。
	Check(ctx context.Context, identity string) (*Decision, error)
}

// Config 限流配置
type Config struct {
	// MaxAttempts 窗口内最大尝试数（默认：5）
	MaxAttempts int64 `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// Window 窗口时长（默认：15m）
	Window time.Duration `json:"window" yaml:"window" mapstructure:"window"`

	// Prefix 共享存储键前缀（默认："ratelimit"）
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
}

func (c *Config) setDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	if c.Prefix == "" {
		c.Prefix = "ratelimit"
	}
}

// NewDefaultConfig 返回默认配置
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}
