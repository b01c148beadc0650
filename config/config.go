// Package config 为 lexigate 提供统一的配置管理能力。
// 基于 Viper 实现，支持多源配置加载、热更新和配置验证。
//
// 配置优先级：环境变量 > .env 文件 > 配置文件。
//
// 基本使用：
//
//	loader, _ := config.New(&config.Config{
//	    Name:      "lexigate",
//	    Paths:     []string{".", "./config"},
//	    EnvPrefix: "LEXIGATE",
//	})
//	if err := loader.Load(ctx); err != nil {
//	    panic(err)
//	}
//
//	var cfg AppConfig
//	_ = loader.Unmarshal(&cfg)
//
//	// 监听配置变化
//	ch, _ := loader.Watch(ctx, "ratelimit.max_attempts")
//	for event := range ch {
//	    fmt.Printf("config changed: %s = %v\n", event.Key, event.Value)
//	}
package config

import (
	"context"
	"strings"
	"time"
)

// Loader 定义配置加载器的核心行为。
type Loader interface {
	// Load 加载配置并初始化内部状态，同时启动文件监听。
	Load(ctx context.Context) error

	// Get 获取原始配置值。
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体。
	Unmarshal(v any) error

	// UnmarshalKey 将指定 Key 的配置反序列化到结构体。
	UnmarshalKey(key string, v any) error

	// Watch 监听配置变化，通过 context 取消监听。
	Watch(ctx context.Context, key string) (<-chan Event, error)
}

// Event 配置变更事件
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // "file" | "env"
	Timestamp time.Time
}

// Config 配置加载器自身的配置。
type Config struct {
	Name      string   // 配置文件名称（不含扩展名），默认 "lexigate"
	Paths     []string // 搜索路径，默认 ["./", "./config"]
	FileType  string   // 配置文件类型，默认 "yaml"
	EnvPrefix string   // 环境变量前缀，默认 "LEXIGATE"
}

// validate 设置默认值
func (c *Config) validate() error {
	if c.Name == "" {
		c.Name = "lexigate"
	}
	if c.Paths == nil {
		c.Paths = []string{".", "./config"}
	}
	if c.FileType == "" {
		c.FileType = "yaml"
	}
	if c.EnvPrefix == "" {
		c.EnvPrefix = "LEXIGATE"
	}
	c.EnvPrefix = strings.ToUpper(c.EnvPrefix)
	return nil
}

// New 创建配置加载器。cfg 为 nil 时使用默认配置。
func New(cfg *Config) (Loader, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return newLoader(cfg)
}
