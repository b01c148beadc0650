package speech

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/metrics"
	"github.com/ceyewan/lexigate/provider"
	"github.com/ceyewan/lexigate/retry"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// client 基于加权信号量的准入控制实现。
// semaphore.Weighted 按 FIFO 唤醒等待者，满足严格到达顺序的要求。
type client struct {
	config  *Config
	invoker provider.Invoker

	sem      *semaphore.Weighted
	pacer    *rate.Limiter
	inFlight atomic.Int64

	logger clog.Logger
	meter  metrics.Meter

	callsCounter  metrics.Counter
	queueWaitHist metrics.Histogram
	callHist      metrics.Histogram
	inFlightGauge metrics.Gauge
}

func newClient(config *Config, invoker provider.Invoker, opts ...Option) *client {
	c := &client{
		config:  config,
		invoker: invoker,
		sem:     semaphore.NewWeighted(config.MaxConcurrency),
		logger:  clog.Discard(),
	}
	if config.PaceRPS > 0 {
		c.pacer = rate.NewLimiter(rate.Limit(config.PaceRPS), config.PaceBurst)
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(
		clog.String("component", "speech"),
		clog.String("provider", invoker.Name()))

	if c.meter != nil {
		c.callsCounter, _ = c.meter.Counter(MetricCallsTotal, "Provider calls by result")
		c.queueWaitHist, _ = c.meter.Histogram(MetricQueueWaitSeconds, "Time spent waiting for a concurrency slot")
		c.callHist, _ = c.meter.Histogram(MetricCallSeconds, "Provider call latency")
		c.inFlightGauge, _ = c.meter.Gauge(MetricInFlight, "Calls currently in flight")
	}
	return c
}

func (c *client) InFlight() int64 {
	return c.inFlight.Load()
}

func (c *client) Generate(ctx context.Context, req *Request) (*Artifact, error) {
	payload, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	// 排队取槽。ctx 取消即放弃排队，不占用容量。
	queuedAt := time.Now()
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	queueWait := time.Since(queuedAt)
	if c.queueWaitHist != nil {
		c.queueWaitHist.Record(ctx, queueWait.Seconds(), metrics.L(LabelProvider, c.invoker.Name()))
	}
	if queueWait > time.Second {
		c.logger.WarnContext(ctx, "slot acquisition slow",
			clog.Duration("queue_wait", queueWait),
			clog.Int64("max_concurrency", c.config.MaxConcurrency))
	}

	c.inFlight.Add(1)
	if c.inFlightGauge != nil {
		c.inFlightGauge.Inc(ctx, metrics.L(LabelProvider, c.invoker.Name()))
	}
	defer func() {
		c.inFlight.Add(-1)
		if c.inFlightGauge != nil {
			c.inFlightGauge.Dec(ctx, metrics.L(LabelProvider, c.invoker.Name()))
		}
	}()

	data, err := retry.DoWithResult(ctx, c.config.Retry, func() ([]byte, error) {
		return c.invokeOnce(ctx, payload)
	})
	if err != nil {
		c.logger.WarnContext(ctx, "generation failed",
			clog.Error(err),
			clog.String("subtype", req.Subtype))
		return nil, err
	}

	return &Artifact{
		Data:      data,
		Size:      int64(len(data)),
		CreatedAt: time.Now(),
	}, nil
}

// invokeOnce 执行单次提供方调用，带独立的调用超时
func (c *client) invokeOnce(ctx context.Context, payload []byte) ([]byte, error) {
	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	start := time.Now()
	data, err := c.invoker.Invoke(callCtx, payload)
	elapsed := time.Since(start)

	result := "success"
	if err != nil {
		result = "permanent"
		if provider.IsTransient(err) {
			result = "transient"
		}
	}
	if c.callsCounter != nil {
		c.callsCounter.Inc(ctx,
			metrics.L(LabelProvider, c.invoker.Name()),
			metrics.L(LabelResult, result))
	}
	if c.callHist != nil {
		c.callHist.Record(ctx, elapsed.Seconds(), metrics.L(LabelProvider, c.invoker.Name()))
	}
	return data, err
}
