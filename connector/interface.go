// Package connector 为 lexigate 提供统一的连接管理能力。
//
// 设计理念沿用组件库惯例：
//   - 接口优先：通过 Connector 接口提供一致的连接管理 API
//   - 显式依赖注入：通过构造函数注入依赖，避免全局状态
//   - 延迟连接：NewXXX() 创建连接器但不建立连接，Connect() 时才连接
//   - 幂等连接：Connect()/Close() 可安全重复调用
//
// 资源所有权：Connector 拥有底层连接的生命周期；组件（contentcache、
// ratelimit 等）仅借用 Connector，不应调用 Close()。
//
// 基本使用：
//
//	conn, _ := connector.NewRedis(&connector.RedisConfig{Addr: "127.0.0.1:6379"})
//	defer conn.Close()
//	_ = conn.Connect(ctx)
//	client := conn.GetClient()
package connector

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Connector 定义所有连接器的通用行为。所有方法并发安全。
type Connector interface {
	// Connect 建立连接，幂等。
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源，幂等。
	Close() error

	// HealthCheck 主动探测连接可用性，并更新内部健康状态缓存。
	HealthCheck(ctx context.Context) error

	// IsHealthy 返回最近一次 HealthCheck 的缓存结果，不阻塞。
	IsHealthy() bool

	// Name 返回连接实例名称。
	Name() string
}

// RedisConnector 暴露类型安全的 Redis 客户端。
type RedisConnector interface {
	Connector
	GetClient() *redis.Client
}

// SQLiteConnector 暴露 GORM 数据库句柄。
type SQLiteConnector interface {
	Connector
	GetDB() *gorm.DB
}
