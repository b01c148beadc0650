// Package speech 提供受准入控制的语音合成客户端。
//
// 远端提供方超过自身并发上限时直接报错而非排队，因此门禁必须在本进程完成：
// 一个计数信号量限制在途调用数（默认 6），超出的调用方按到达顺序排队等待。
// 限流类瞬时失败按指数退避重试，其余失败立即上抛。
// 槽位在所有退出路径上都会释放，失败不泄漏容量。
//
// 基本使用：
//
//	client, _ := speech.New(&speech.Config{MaxConcurrency: 6}, invoker)
//	artifact, err := client.Generate(ctx, &speech.Request{
//	    Text:  "butterfly",
//	    Model: "eleven_turbo_v2",
//	    Voice: "rachel",
//	})
package speech

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ceyewan/lexigate/provider"
	"github.com/ceyewan/lexigate/retry"
	"github.com/ceyewan/lexigate/xerrors"
)

// Request 一次合成请求。字段参与缓存指纹，不含任何调用方身份。
type Request struct {
	// Text 待合成文本
	Text string `json:"text"`

	// Model 模型标识
	Model string `json:"model"`

	// Voice 音色标识
	Voice string `json:"voice"`

	// Subtype 操作子类型（如 "word"、"sentence"），默认 "word"
	Subtype string `json:"subtype,omitempty"`
}

// Artifact 合成产物
type Artifact struct {
	// Data 音频字节
	Data []byte

	// Size 字节数
	Size int64

	// CreatedAt 生成时间
	CreatedAt time.Time
}

// Client 语音合成客户端
type Client interface {
	// Generate 合成音频。相同的规范化输入与配置产出相同内容。
	// 并发超限时调用方按 FIFO 排队；ctx 取消会放弃排队。
	Generate(ctx context.Context, req *Request) (*Artifact, error)

	// InFlight 返回当前在途调用数（监控用）
	InFlight() int64
}

// Config 客户端配置
type Config struct {
	// MaxConcurrency 在途调用上限（默认：6）
	MaxConcurrency int64 `json:"max_concurrency" yaml:"max_concurrency" mapstructure:"max_concurrency"`

	// CallTimeout 单次提供方调用超时，独立于排队与重试（默认：30s）
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout" mapstructure:"call_timeout"`

	// Retry 重试策略。Retryable 留空时只重试提供方限流错误。
	Retry retry.Policy `json:"retry" yaml:"retry" mapstructure:"retry"`

	// PaceRPS 发起调用的平滑速率上限，0 表示不限速
	PaceRPS float64 `json:"pace_rps" yaml:"pace_rps" mapstructure:"pace_rps"`

	// PaceBurst 速率限制的突发额度（默认：MaxConcurrency）
	PaceBurst int `json:"pace_burst" yaml:"pace_burst" mapstructure:"pace_burst"`
}

func (c *Config) setDefaults() {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 6
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.Retry.Retryable == nil {
		c.Retry.Retryable = provider.IsRateLimited
	}
	if c.PaceBurst <= 0 {
		c.PaceBurst = int(c.MaxConcurrency)
	}
}

// NewDefaultConfig 返回默认配置
func NewDefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// New 创建客户端。invoker 不可为 nil。
func New(cfg *Config, invoker provider.Invoker, opts ...Option) (Client, error) {
	if invoker == nil {
		return nil, ErrInvokerNil
	}
	if cfg == nil {
		cfg = &Config{}
	}
	config := *cfg
	config.setDefaults()
	return newClient(&config, invoker, opts...), nil
}

func encodeRequest(req *Request) ([]byte, error) {
	if req == nil || req.Text == "" {
		return nil, ErrTextEmpty
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, xerrors.Wrap(err, "encode request")
	}
	return payload, nil
}
