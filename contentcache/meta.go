package contentcache

import (
	"context"
	"time"
)

// Meta 产物元数据记录，与 Blob 负载一一对应
type Meta struct {
	// Key 对外可见的短键（主键）
	Key string `gorm:"primaryKey;size:16" msgpack:"key"`

	// Digest 完整摘要，精确去重用
	Digest string `gorm:"size:64;index" msgpack:"digest"`

	// Type 操作子类型
	Type string `gorm:"size:32" msgpack:"type"`

	// Size 负载字节数
	Size int64 `msgpack:"size"`

	// Location Blob 存储内的相对路径
	Location string `gorm:"size:255" msgpack:"location"`

	// Hits 命中次数
	Hits int64 `msgpack:"hits"`

	// CreatedAt 写入时间
	CreatedAt time.Time `msgpack:"created_at"`

	// LastAccessedAt 最近访问时间，LRU 排序键
	LastAccessedAt time.Time `gorm:"index" msgpack:"last_accessed_at"`
}

// TableName 指定 gorm 表名
func (Meta) TableName() string {
	return "cache_entries"
}

// MetaStore 元数据存储。实现须容忍多个进程实例并发读写。
type MetaStore interface {
	// Get 按键取记录。不存在返回 ErrMetaNotFound。
	Get(ctx context.Context, key string) (*Meta, error)

	// Put 写入或覆盖记录
	Put(ctx context.Context, meta *Meta) error

	// Touch 命中计数加一并刷新最近访问时间
	Touch(ctx context.Context, key string, at time.Time) error

	// Delete 删除记录。不存在为空操作。
	Delete(ctx context.Context, key string) error

	// OldestFirst 按最近访问时间升序返回至多 limit 条记录（LRU 清理用）
	OldestFirst(ctx context.Context, limit int) ([]*Meta, error)

	// Stats 返回条目数与总字节数
	Stats(ctx context.Context) (count int64, bytes int64, err error)
}
