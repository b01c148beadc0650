// Package contentcache 提供按内容寻址的产物缓存。
//
// 指纹由规范化文本加上 provider/model/voice 参数派生，调用方身份永不进入
// 摘要：不同学生请求同一个单词的音频时命中同一份产物。二进制负载存放在
// 主记录库之外的 Blob 存储（按类型与键前缀分片），旁路一条元数据记录
// （键、大小、位置、时间戳、命中计数）。元数据缺文件、或文件缺元数据，
// 都按未命中处理，绝不崩溃。
//
// 基本使用：
//
//	key := contentcache.Fingerprint(contentcache.Source{
//	    Provider: "elevenlabs",
//	    Model:    "eleven_turbo_v2",
//	    Voice:    "rachel",
//	    Subtype:  "word",
//	    Text:     "Butterfly",
//	})
//	artifact, err := cache.Get(ctx, key)
//	if xerrors.Is(err, contentcache.ErrMiss) {
//	    // 生成后写回
//	    _ = cache.Put(ctx, key, "word", data)
//	}
package contentcache

import (
	"context"
	"time"
)

// Artifact 缓存产物及其元数据
type Artifact struct {
	// Key 内容指纹
	Key Key

	// Type 操作子类型（如 "word"、"sentence"），决定分片目录
	Type string

	// Data 二进制负载
	Data []byte

	// Size 字节数
	Size int64

	// Hits 命中次数
	Hits int64

	// CreatedAt 写入时间
	CreatedAt time.Time

	// LastAccessedAt 最近访问时间，LRU 清理据此排序
	LastAccessedAt time.Time
}

// Cache 内容寻址缓存
type Cache interface {
	// Get 按指纹取产物。未命中（含存储不一致、存储不可达）返回 ErrMiss。
	// 命中会更新命中计数与最近访问时间。
	Get(ctx context.Context, key Key) (*Artifact, error)

	// Put 持久化产物：负载写入 Blob 存储，元数据入库。
	// 同键重复写入为幂等覆盖。
	Put(ctx context.Context, key Key, typ string, data []byte) error

	// Delete 删除产物的负载与元数据。键不存在时为空操作。
	Delete(ctx context.Context, key Key) error

	// Stats 返回当前条目数与总字节数（清理与监控用）
	Stats(ctx context.Context) (count int64, bytes int64, err error)

	// Close 释放热层资源
	Close() error
}

// Config 缓存配置
type Config struct {
	// BlobRoot Blob 存储根目录
	BlobRoot string `json:"blob_root" yaml:"blob_root" mapstructure:"blob_root"`

	// HotCapacity 进程内热层最大条目数，0 使用默认值 512
	HotCapacity int `json:"hot_capacity" yaml:"hot_capacity" mapstructure:"hot_capacity"`
}

func (c *Config) setDefaults() {
	if c.HotCapacity <= 0 {
		c.HotCapacity = 512
	}
}

// New 创建缓存。meta 不可为 nil；Blob 存储默认为 BlobRoot 下的文件系统实现，
// 可用 WithBlobStore 替换。
func New(cfg *Config, meta MetaStore, opts ...Option) (Cache, error) {
	if meta == nil {
		return nil, ErrMetaStoreNil
	}
	if cfg == nil {
		cfg = &Config{}
	}
	config := *cfg
	config.setDefaults()
	return newCache(&config, meta, opts...)
}
