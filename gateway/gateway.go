// Package gateway 把熔断、健康监控、降级、准入控制、内容缓存与限流
// 组装成面向词汇教学应用的单一门面。
//
// 产物请求的路径：降级协调器检查服务健康 → 内容缓存（命中即返回）→
// 未命中时经熔断器调用语音客户端 → 成功产物写回缓存；任何一环失败都
// 路由到纯文本兜底，学习者看到的是一句友好的提示而不是错误堆栈。
// 登录尝试则在进入处理器之前先过限流网关。
package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/lexigate/breaker"
	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/contentcache"
	"github.com/ceyewan/lexigate/degrade"
	"github.com/ceyewan/lexigate/health"
	"github.com/ceyewan/lexigate/metrics"
	"github.com/ceyewan/lexigate/ratelimit"
	"github.com/ceyewan/lexigate/speech"
	"github.com/ceyewan/lexigate/xerrors"
)

// Request 一次产物请求。Model/Voice 留空时使用网关默认值。
type Request struct {
	// Text 待合成文本
	Text string `json:"text"`

	// Subtype 操作子类型（默认 "word"）
	Subtype string `json:"subtype,omitempty"`

	// Model 模型标识
	Model string `json:"model,omitempty"`

	// Voice 音色标识
	Voice string `json:"voice,omitempty"`
}

// Result 产物请求的结果。Degraded 为 true 时 Artifact 为空，
// Message 携带面向学习者的提示。
type Result struct {
	// RequestID 本次请求的追踪标识
	RequestID string `json:"request_id"`

	// Source 产物来源：cache / generated / fallback
	Source string `json:"source"`

	// Artifact 缓存产物，降级时为 nil
	Artifact *contentcache.Artifact `json:"-"`

	// Degraded 是否走了兜底路径
	Degraded bool `json:"degraded"`

	// Message 降级时面向学习者的提示
	Message string `json:"message,omitempty"`
}

// StatusReport 运维状态总览
type StatusReport struct {
	// Services 各服务的健康快照
	Services []health.Status `json:"services"`

	// Breakers 各熔断器的状态快照
	Breakers []breaker.Status `json:"breakers"`

	// Critical 关键服务聚合
	Critical breaker.CriticalStatus `json:"critical"`

	// CacheEntries 缓存条目数
	CacheEntries int64 `json:"cache_entries"`

	// CacheBytes 缓存总字节数
	CacheBytes int64 `json:"cache_bytes"`

	// GeneratedAt 快照时间
	GeneratedAt time.Time `json:"generated_at"`
}

// Config 网关配置
type Config struct {
	// ProviderName 提供方标识，参与内容指纹
	ProviderName string `json:"provider_name" yaml:"provider_name" mapstructure:"provider_name"`

	// DefaultModel 请求未指定时的模型
	DefaultModel string `json:"default_model" yaml:"default_model" mapstructure:"default_model"`

	// DefaultVoice 请求未指定时的音色
	DefaultVoice string `json:"default_voice" yaml:"default_voice" mapstructure:"default_voice"`

	// ServiceName 语音服务在健康监控与熔断器里的名字（默认："tts"）
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`

	// DegradedMessage 降级时面向学习者的提示，留空使用内置文案
	DegradedMessage string `json:"degraded_message" yaml:"degraded_message" mapstructure:"degraded_message"`
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "tts"
	}
}

// Deps 网关的全部外部依赖
type Deps struct {
	Registry *breaker.Registry
	Monitor  health.Monitor
	Speech   speech.Client
	Cache    contentcache.Cache
	Limiter  ratelimit.Limiter
}

func (d *Deps) validate() error {
	if d.Registry == nil || d.Monitor == nil || d.Speech == nil || d.Cache == nil || d.Limiter == nil {
		return ErrDepsIncomplete
	}
	return nil
}

// Gateway 容错网关门面
type Gateway struct {
	config Config
	deps   Deps
	coord  *degrade.Coordinator

	logger clog.Logger
	meter  metrics.Meter

	requestsCounter metrics.Counter
}

// Option 配置网关的可选依赖
type Option func(*Gateway)

// WithLogger 设置日志器
func WithLogger(logger clog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithMeter 设置指标采集器
func WithMeter(meter metrics.Meter) Option {
	return func(g *Gateway) {
		g.meter = meter
	}
}

// New 创建网关。所有依赖都是必填。
func New(cfg *Config, deps Deps, opts ...Option) (*Gateway, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{}
	}
	config := *cfg
	config.setDefaults()

	g := &Gateway{
		config: config,
		deps:   deps,
		logger: clog.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(clog.String("component", "gateway"))

	coordOpts := []degrade.Option{degrade.WithLogger(g.logger)}
	if g.meter != nil {
		coordOpts = append(coordOpts, degrade.WithMeter(g.meter))
	}
	if config.DegradedMessage != "" {
		coordOpts = append(coordOpts,
			degrade.WithLearnerMessage(config.ServiceName, config.DegradedMessage))
	}
	coord, err := degrade.NewCoordinator(deps.Monitor, coordOpts...)
	if err != nil {
		return nil, err
	}
	g.coord = coord

	if g.meter != nil {
		g.requestsCounter, _ = g.meter.Counter(MetricRequestsTotal, "Artifact requests by source")
	}
	return g, nil
}

// GenerateOrFetchArtifact 取回或生成一份产物。
// 服务不健康、生成失败、熔断打开都落到纯文本兜底，错误不会抛给学习者。
func (g *Gateway) GenerateOrFetchArtifact(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || req.Text == "" {
		return nil, ErrTextEmpty
	}
	requestID := uuid.New().String()
	logger := g.logger.With(clog.String("request_id", requestID))

	subtype := req.Subtype
	if subtype == "" {
		subtype = "word"
	}
	model, voice := req.Model, req.Voice
	if model == "" {
		model = g.config.DefaultModel
	}
	if voice == "" {
		voice = g.config.DefaultVoice
	}

	key := contentcache.Fingerprint(contentcache.Source{
		Provider: g.config.ProviderName,
		Model:    model,
		Voice:    voice,
		Subtype:  subtype,
		Text:     req.Text,
	})

	primary := func(ctx context.Context) (*Result, error) {
		return g.fetchOrGenerate(ctx, logger, requestID, key, subtype, req.Text, model, voice)
	}
	fallback := func(ctx context.Context) (*Result, error) {
		return &Result{
			RequestID: requestID,
			Source:    "fallback",
			Degraded:  true,
			Message:   g.learnerMessage(),
		}, nil
	}

	result, err := degrade.WithFallback(ctx, g.coord, g.config.ServiceName, primary, fallback)
	if err != nil {
		return nil, err
	}
	g.countRequest(ctx, result.Source)
	return result, nil
}

func (g *Gateway) fetchOrGenerate(ctx context.Context, logger clog.Logger, requestID string,
	key contentcache.Key, subtype, text, model, voice string) (*Result, error) {

	if artifact, err := g.deps.Cache.Get(ctx, key); err == nil {
		logger.DebugContext(ctx, "cache hit",
			clog.String("key", key.ID), clog.String("subtype", subtype))
		return &Result{RequestID: requestID, Source: "cache", Artifact: artifact}, nil
	} else if !xerrors.Is(err, contentcache.ErrMiss) {
		return nil, err
	}

	br := g.deps.Registry.Get(g.config.ServiceName, subtype, nil)

	var generated *speech.Artifact
	err := br.Execute(ctx, func() error {
		a, gerr := g.deps.Speech.Generate(ctx, &speech.Request{
			Text:    text,
			Model:   model,
			Voice:   voice,
			Subtype: subtype,
		})
		generated = a
		return gerr
	})
	if err != nil {
		return nil, err
	}

	// 写回失败只损失下次命中，产物本身照常返回
	if err := g.deps.Cache.Put(ctx, key, subtype, generated.Data); err != nil {
		logger.WarnContext(ctx, "cache put failed",
			clog.String("key", key.ID), clog.Error(err))
	}

	logger.InfoContext(ctx, "artifact generated",
		clog.String("key", key.ID),
		clog.String("subtype", subtype),
		clog.Int64("bytes", generated.Size))

	return &Result{
		RequestID: requestID,
		Source:    "generated",
		Artifact: &contentcache.Artifact{
			Key:       key,
			Type:      subtype,
			Data:      generated.Data,
			Size:      generated.Size,
			CreatedAt: generated.CreatedAt,
		},
	}, nil
}

// CheckRateLimit 判定一次登录尝试是否放行
func (g *Gateway) CheckRateLimit(ctx context.Context, identity string) (*ratelimit.Decision, error) {
	return g.deps.Limiter.Check(ctx, identity)
}

// Status 汇总健康监控、熔断器与缓存的运维视图
func (g *Gateway) Status(ctx context.Context) *StatusReport {
	report := &StatusReport{
		Services:    g.deps.Monitor.StatusAll(),
		Breakers:    g.deps.Registry.HealthStatus(),
		Critical:    g.deps.Registry.CriticalStatus(),
		GeneratedAt: time.Now(),
	}
	count, bytes, err := g.deps.Cache.Stats(ctx)
	if err != nil {
		g.logger.WarnContext(ctx, "cache stats unavailable", clog.Error(err))
	} else {
		report.CacheEntries = count
		report.CacheBytes = bytes
	}
	return report
}

func (g *Gateway) learnerMessage() string {
	if g.config.DegradedMessage != "" {
		return g.config.DegradedMessage
	}
	return "Audio is taking a break. Read along with the text for now."
}

func (g *Gateway) countRequest(ctx context.Context, source string) {
	if g.requestsCounter != nil {
		g.requestsCounter.Inc(ctx, metrics.L(LabelSource, source))
	}
}
