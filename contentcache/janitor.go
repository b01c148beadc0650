package contentcache

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/metrics"
)

// JanitorConfig 清理器配置
type JanitorConfig struct {
	// MaxBytes 缓存总字节上限，超出后按 LRU 驱逐
	MaxBytes int64 `json:"max_bytes" yaml:"max_bytes" mapstructure:"max_bytes"`

	// Interval 巡检间隔（默认：5m）
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`

	// Batch 单轮最多驱逐条数（默认：64）
	Batch int `json:"batch" yaml:"batch" mapstructure:"batch"`
}

func (c *JanitorConfig) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.Batch <= 0 {
		c.Batch = 64
	}
}

// Janitor 按 lastAccessedAt 做 LRU 驱逐，把缓存总量压回字节上限之内。
// 驱逐在缓存主路径之外独立运行，Get/Put 不感知它的存在。
type Janitor struct {
	config JanitorConfig
	cache  Cache
	meta   MetaStore

	logger clog.Logger
	meter  metrics.Meter

	evictionsCounter metrics.Counter

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// JanitorOption 配置清理器的可选依赖
type JanitorOption func(*Janitor)

// WithJanitorLogger 设置日志器
func WithJanitorLogger(logger clog.Logger) JanitorOption {
	return func(j *Janitor) {
		j.logger = logger
	}
}

// WithJanitorMeter 设置指标采集器
func WithJanitorMeter(meter metrics.Meter) JanitorOption {
	return func(j *Janitor) {
		j.meter = meter
	}
}

// NewJanitor 创建清理器。MaxBytes 必须大于 0。
func NewJanitor(cfg *JanitorConfig, cache Cache, meta MetaStore, opts ...JanitorOption) (*Janitor, error) {
	if cfg == nil || cfg.MaxBytes <= 0 {
		return nil, ErrJanitorMaxBytes
	}
	if cache == nil || meta == nil {
		return nil, ErrMetaStoreNil
	}
	config := *cfg
	config.setDefaults()

	j := &Janitor{
		config: config,
		cache:  cache,
		meta:   meta,
		logger: clog.Discard(),
	}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = j.logger.With(clog.String("component", "contentcache.janitor"))
	if j.meter != nil {
		j.evictionsCounter, _ = j.meter.Counter(MetricEvictionsTotal, "Entries evicted by the janitor")
	}
	return j, nil
}

// Start 启动后台巡检。重复调用为空操作。
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})

	go func() {
		defer close(j.done)
		ticker := time.NewTicker(j.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if _, err := j.RunOnce(loopCtx); err != nil {
					j.logger.WarnContext(loopCtx, "sweep failed", clog.Error(err))
				}
			}
		}
	}()
}

// Stop 停止后台巡检并等待当前一轮结束
func (j *Janitor) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce 执行一轮清理，返回驱逐条数。
// 总量未超限时直接返回；超限时从最久未访问的条目开始删，
// 直到压回上限或达到单轮批量上限。
func (j *Janitor) RunOnce(ctx context.Context) (int, error) {
	_, bytes, err := j.cache.Stats(ctx)
	if err != nil {
		return 0, err
	}
	if bytes <= j.config.MaxBytes {
		return 0, nil
	}

	candidates, err := j.meta.OldestFirst(ctx, j.config.Batch)
	if err != nil {
		return 0, err
	}

	evicted := 0
	for _, meta := range candidates {
		if bytes <= j.config.MaxBytes {
			break
		}
		key := Key{ID: meta.Key, Digest: meta.Digest}
		if err := j.cache.Delete(ctx, key); err != nil {
			j.logger.WarnContext(ctx, "evict failed",
				clog.String("key", meta.Key), clog.Error(err))
			continue
		}
		bytes -= meta.Size
		evicted++
		if j.evictionsCounter != nil {
			j.evictionsCounter.Inc(ctx, metrics.L(LabelType, meta.Type))
		}
	}

	if evicted > 0 {
		j.logger.Info("cache swept",
			clog.Int("evicted", evicted),
			clog.Int64("bytes_after", bytes),
			clog.Int64("max_bytes", j.config.MaxBytes))
	}
	return evicted, nil
}
