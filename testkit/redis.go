package testkit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/ceyewan/lexigate/connector"
)

// NewRedis 启动一个进程内 miniredis 实例，生命周期随测试结束。
func NewRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	return miniredis.RunT(t)
}

// NewRedisConnector 返回已连接的 Redis 连接器，底层使用 miniredis，
// 测试无需依赖外部 Redis 服务。
func NewRedisConnector(t *testing.T) (connector.RedisConnector, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	conn, err := connector.NewRedis(&connector.RedisConfig{
		Name: "test-redis",
		Addr: srv.Addr(),
	}, connector.WithLogger(NewLogger()))
	if err != nil {
		t.Fatalf("failed to create redis connector: %v", err)
	}

	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn, srv
}
