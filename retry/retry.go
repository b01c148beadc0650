// Package retry 提供统一的重试策略，供所有外部调用共享。
//
// 策略对象把 (最大尝试次数, 基础延迟, 最大延迟, 可重试判定) 集中到一处，
// 避免各调用点各自散落一份退避逻辑。退避为指数增长并带随机抖动，
// 防止多个等待者同时苏醒再次压垮提供方。
//
// 基本使用：
//
//	policy := retry.Policy{
//	    MaxAttempts: 3,
//	    BaseDelay:   500 * time.Millisecond,
//	    MaxDelay:    10 * time.Second,
//	    Retryable:   provider.IsTransient,
//	}
//	artifact, err := retry.DoWithResult(ctx, policy, func() ([]byte, error) {
//	    return client.Invoke(ctx, payload)
//	})
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy 重试策略。零值字段使用默认值。
type Policy struct {
	// MaxAttempts 总尝试次数，含首次调用（默认：3）
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`

	// BaseDelay 首次重试前的基础延迟（默认：500ms）
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay" mapstructure:"base_delay"`

	// MaxDelay 单次退避的延迟上限（默认：10s）
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay" mapstructure:"max_delay"`

	// Retryable 判定一个错误是否值得重试。nil 表示全部重试。
	// 返回 false 的错误立即向上传播，不消耗剩余尝试次数。
	Retryable func(error) bool `json:"-" yaml:"-" mapstructure:"-"`
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 10 * time.Second
	}
	return p
}

// newBackOff 构建带抖动的指数退避
func (p Policy) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = 2
	// RandomizationFactor 保持库默认（0.5），即 ±50% 抖动
	b.MaxElapsedTime = 0

	var bo backoff.BackOff = b
	bo = backoff.WithMaxRetries(bo, uint64(p.MaxAttempts-1))
	return backoff.WithContext(bo, ctx)
}

// Do 按策略执行 fn，直到成功、错误不可重试或尝试耗尽。
// 尝试耗尽时返回最后一次的错误。
func Do(ctx context.Context, p Policy, fn func() error) error {
	_, err := DoWithResult(ctx, p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult 同 Do，但带返回值。
func DoWithResult[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	p = p.withDefaults()

	return backoff.RetryWithData(func() (T, error) {
		result, err := fn()
		if err != nil && p.Retryable != nil && !p.Retryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}, p.newBackOff(ctx))
}
