// Package degrade 提供优雅降级协调器。
//
// 协调器根据健康监控的粗粒度信号决定一次调用走真实实现还是本地降级：
//   - 服务不健康时直接跳过主调用，省掉注定失败的等待
//   - 主调用失败时转入降级，并把结果上报给健康监控
//   - 主调用的错误从不直接向上传播，只有降级本身失败才是致命的
//
// 基本使用：
//
//	coord, _ := degrade.NewCoordinator(monitor, degrade.WithLogger(logger))
//
//	sentence, err := degrade.WithFallback(ctx, coord, "genai",
//	    func(ctx context.Context) (string, error) { return genai.Example(ctx, word) },
//	    func(ctx context.Context) (string, error) { return templates.Example(word), nil },
//	)
package degrade

import (
	"context"
	"fmt"

	"github.com/ceyewan/lexigate/breaker"
	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/health"
	"github.com/ceyewan/lexigate/metrics"
)

// 指标常量定义
const (
	MetricFallbacksTotal = "degrade_fallbacks_total"

	LabelService = "service"
	LabelReason  = "reason" // "unhealthy" | "primary_failed"
)

// DegradedError 主调用与降级均失败时返回的终极错误。
// Error() 面向运维，LearnerMessage() 面向学习者。
type DegradedError struct {
	Service     string
	PrimaryErr  error
	FallbackErr error
	learnerMsg  string
}

func (e *DegradedError) Error() string {
	if e.PrimaryErr != nil {
		return fmt.Sprintf("degrade: service %q primary failed (%v) and fallback failed (%v)",
			e.Service, e.PrimaryErr, e.FallbackErr)
	}
	return fmt.Sprintf("degrade: service %q unhealthy and fallback failed (%v)",
		e.Service, e.FallbackErr)
}

func (e *DegradedError) Unwrap() error {
	return e.FallbackErr
}

// LearnerMessage 返回适合展示给学习者的措辞，不含内部细节。
func (e *DegradedError) LearnerMessage() string {
	if e.learnerMsg != "" {
		return e.learnerMsg
	}
	return "This feature is taking a break. Please try again in a moment."
}

// Coordinator 降级协调器
type Coordinator struct {
	monitor  health.Monitor
	logger   clog.Logger
	learner  map[string]string
	fallback metrics.Counter
}

// NewCoordinator 创建降级协调器。
func NewCoordinator(monitor health.Monitor, opts ...Option) (*Coordinator, error) {
	if monitor == nil {
		return nil, ErrMonitorNil
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	logger := opt.logger
	if logger == nil {
		logger = clog.Discard()
	}

	c := &Coordinator{
		monitor: monitor,
		logger:  logger.With(clog.String("component", "degrade")),
		learner: opt.learnerMessages,
	}
	if opt.meter != nil {
		c.fallback, _ = opt.meter.Counter(MetricFallbacksTotal, "Calls routed to a fallback")
	}
	return c, nil
}

// WithFallback 执行一次可降级调用。
//
// 服务不健康时跳过 primary；primary 失败时转入 fallback 并上报失败；
// primary 成功时上报成功。只有 fallback 也失败才返回错误，
// 且错误为 *DegradedError。
func WithFallback[T any](ctx context.Context, c *Coordinator, service string,
	primary func(ctx context.Context) (T, error),
	fallback func(ctx context.Context) (T, error),
) (T, error) {
	if !c.monitor.IsHealthy(service) {
		c.logger.DebugContext(ctx, "service unhealthy, skipping primary",
			clog.String("service", service))
		return runFallback(ctx, c, service, nil, fallback, "unhealthy")
	}

	result, err := primary(ctx)
	if err == nil {
		c.monitor.RecordSuccess(service)
		return result, nil
	}

	// 熔断快速失败不是新的提供方故障，不再额外计入健康统计
	if !breaker.IsOpenError(err) {
		c.monitor.RecordFailure(service, err)
	}

	c.logger.WarnContext(ctx, "primary failed, degrading",
		clog.String("service", service), clog.Error(err))
	return runFallback(ctx, c, service, err, fallback, "primary_failed")
}

// runFallback 执行降级函数并在失败时构造 DegradedError
func runFallback[T any](ctx context.Context, c *Coordinator, service string, primaryErr error,
	fallback func(ctx context.Context) (T, error), reason string,
) (T, error) {
	if c.fallback != nil {
		c.fallback.Inc(ctx, metrics.L(LabelService, service), metrics.L(LabelReason, reason))
	}

	result, err := fallback(ctx)
	if err == nil {
		return result, nil
	}

	c.logger.ErrorContext(ctx, "fallback failed, request is terminal",
		clog.String("service", service),
		clog.String("reason", reason),
		clog.Error(err))

	var zero T
	return zero, &DegradedError{
		Service:     service,
		PrimaryErr:  primaryErr,
		FallbackErr: err,
		learnerMsg:  c.learner[service],
	}
}
