// Package provider 定义对远端生成服务的最小调用契约与错误分类。
//
// 上层（speech、gateway）只依赖 Invoker 接口，不关心传输细节；
// 错误被归为瞬时（超时、限流、5xx）与永久（参数错误、凭证无效）两类，
// 重试层据此决定是否值得再次尝试。
package provider

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/xerrors"
)

// Invoker 一次远端生成调用：payload 进，字节流出。
// 失败时返回 *TransientError 或 *PermanentError。
type Invoker interface {
	// Invoke 执行调用。ctx 取消或超时会中断底层请求。
	Invoke(ctx context.Context, payload []byte) ([]byte, error)

	// Name 返回提供方标识，用于日志与指标标签
	Name() string
}

// Config HTTP 提供方配置
type Config struct {
	// Name 提供方标识（如 "elevenlabs"）
	Name string `json:"name" yaml:"name" mapstructure:"name"`

	// Endpoint 调用地址
	Endpoint string `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"`

	// APIKey 凭证，置于 Authorization 头
	APIKey string `json:"api_key" yaml:"api_key" mapstructure:"api_key"`

	// Timeout 单次 HTTP 请求超时（默认：30s）
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "provider"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Option 配置可选依赖
type Option func(*httpInvoker)

// WithLogger 设置日志器
func WithLogger(logger clog.Logger) Option {
	return func(inv *httpInvoker) {
		inv.logger = logger
	}
}

// WithHTTPClient 替换底层 HTTP 客户端（测试用）
func WithHTTPClient(client *http.Client) Option {
	return func(inv *httpInvoker) {
		inv.client = client
	}
}

// NewHTTP 创建基于 HTTP 的 Invoker。
func NewHTTP(cfg *Config, opts ...Option) (Invoker, error) {
	if cfg == nil {
		return nil, xerrors.New("provider: config nil")
	}
	config := *cfg
	config.setDefaults()
	if config.Endpoint == "" {
		return nil, xerrors.New("provider: endpoint required")
	}

	inv := &httpInvoker{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		logger: clog.Discard(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	inv.logger = inv.logger.With(clog.String("component", "provider"), clog.String("provider", config.Name))
	return inv, nil
}

type httpInvoker struct {
	config Config
	client *http.Client
	logger clog.Logger
}

func (inv *httpInvoker) Name() string {
	return inv.config.Name
}

func (inv *httpInvoker) Invoke(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, inv.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, NewPermanentError(inv.config.Name, 0, xerrors.Wrap(err, "build request"))
	}
	req.Header.Set("Content-Type", "application/json")
	if inv.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+inv.config.APIKey)
	}

	start := time.Now()
	resp, err := inv.client.Do(req)
	if err != nil {
		// 网络层失败：超时归为瞬时，其余连接错误同样值得重试
		inv.logger.WarnContext(ctx, "provider call failed",
			clog.Error(err),
			clog.Duration("elapsed", time.Since(start)))
		return nil, classifyNetError(inv.config.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewTransientError(inv.config.Name, resp.StatusCode, false, xerrors.Wrap(err, "read response"))
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		inv.logger.DebugContext(ctx, "provider call succeeded",
			clog.Int("status", resp.StatusCode),
			clog.Int("bytes", len(body)),
			clog.Duration("elapsed", time.Since(start)))
		return body, nil
	}

	return nil, ClassifyStatus(inv.config.Name, resp.StatusCode)
}

func classifyNetError(provider string, err error) error {
	var netErr net.Error
	if xerrors.As(err, &netErr) && netErr.Timeout() {
		return NewTransientError(provider, 0, false, xerrors.Wrap(err, "timeout"))
	}
	if xerrors.Is(err, context.DeadlineExceeded) {
		return NewTransientError(provider, 0, false, err)
	}
	if xerrors.Is(err, context.Canceled) {
		return NewPermanentError(provider, 0, err)
	}
	return NewTransientError(provider, 0, false, err)
}
