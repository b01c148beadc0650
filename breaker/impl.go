package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/metrics"
	"github.com/ceyewan/lexigate/xerrors"
)

// circuitBreaker 熔断器实现（非导出）
type circuitBreaker struct {
	key    Key
	cfg    *Config
	logger clog.Logger

	rejectsCounter metrics.Counter
	changesCounter metrics.Counter
	onStateChange  StateChangeFunc

	mu       sync.RWMutex
	cb       *gobreaker.TwoStepCircuitBreaker[any]
	openedAt time.Time
}

// newBreaker 创建熔断器实例（内部函数）
func newBreaker(key Key, cfg *Config, opt *options) *circuitBreaker {
	logger := opt.logger
	if logger == nil {
		logger = clog.Discard()
	}

	b := &circuitBreaker{
		key:           key,
		cfg:           cfg,
		logger:        logger.With(clog.String("component", "breaker"), clog.String("key", key.String())),
		onStateChange: opt.onStateChange,
	}

	if opt.meter != nil {
		b.rejectsCounter, _ = opt.meter.Counter(MetricRejectsTotal, "Requests rejected by an open breaker")
		b.changesCounter, _ = opt.meter.Counter(MetricStateChanges, "Breaker state transitions")
	}

	b.cb = b.newGobreaker()
	return b
}

// newGobreaker 构建底层 gobreaker 实例。
// Reset 通过换入全新实例实现，因为 gobreaker 不暴露重置入口。
func (b *circuitBreaker) newGobreaker() *gobreaker.TwoStepCircuitBreaker[any] {
	return gobreaker.NewTwoStepCircuitBreaker[any](gobreaker.Settings{
		Name:        b.key.String(),
		MaxRequests: b.cfg.SuccessThreshold,
		Interval:    b.cfg.Interval,
		Timeout:     b.cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= b.cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.handleStateChange(fromGobreakerState(from), fromGobreakerState(to))
		},
	})
}

// handleStateChange 记录状态迁移并通知订阅者
func (b *circuitBreaker) handleStateChange(from, to State) {
	if to == StateOpen {
		b.mu.Lock()
		b.openedAt = time.Now()
		b.mu.Unlock()
	}

	b.logger.Warn("circuit breaker state changed",
		clog.String("from", from.String()),
		clog.String("to", to.String()))

	if b.changesCounter != nil {
		b.changesCounter.Inc(context.Background(),
			metrics.L(LabelService, b.key.Service),
			metrics.L(LabelOperation, b.key.Operation),
			metrics.L(LabelFromState, from.String()),
			metrics.L(LabelToState, to.String()))
	}

	if b.onStateChange != nil {
		b.onStateChange(b.key, from, to)
	}
}

// AllowRequest 询问是否允许发起请求
func (b *circuitBreaker) AllowRequest() (Done, error) {
	b.mu.RLock()
	cb := b.cb
	b.mu.RUnlock()

	done, err := cb.Allow()
	if err != nil {
		if b.rejectsCounter != nil {
			b.rejectsCounter.Inc(context.Background(),
				metrics.L(LabelService, b.key.Service),
				metrics.L(LabelOperation, b.key.Operation))
		}
		// gobreaker 的 ErrOpenState/ErrTooManyRequests 统一映射为 ErrOpenState，
		// 调用方据此快速失败，且不会把它当成提供方错误上报。
		return nil, ErrOpenState
	}

	return Done(done), nil
}

// Execute 执行受熔断保护的函数
func (b *circuitBreaker) Execute(ctx context.Context, fn func() error) error {
	done, err := b.AllowRequest()
	if err != nil {
		return err
	}

	err = fn()
	done(err == nil)
	return err
}

// Status 返回当前状态快照
func (b *circuitBreaker) Status() Status {
	b.mu.RLock()
	cb := b.cb
	openedAt := b.openedAt
	b.mu.RUnlock()

	state := fromGobreakerState(cb.State())
	st := Status{
		Key:                 b.key,
		State:               state,
		ConsecutiveFailures: cb.Counts().ConsecutiveFailures,
	}
	if state == StateOpen && !openedAt.IsZero() {
		st.NextAttempt = openedAt.Add(b.cfg.ResetTimeout)
	}
	return st
}

// Reset 将熔断器重置为初始闭合状态
func (b *circuitBreaker) Reset() {
	b.mu.Lock()
	old := fromGobreakerState(b.cb.State())
	b.cb = b.newGobreaker()
	b.openedAt = time.Time{}
	b.mu.Unlock()

	if old != StateClosed {
		b.logger.Info("circuit breaker manually reset", clog.String("from", old.String()))
	}
}

// fromGobreakerState 映射 gobreaker 状态
func fromGobreakerState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// IsOpenError 判断错误是否为熔断快速失败信号
func IsOpenError(err error) bool {
	return xerrors.Is(err, ErrOpenState)
}
