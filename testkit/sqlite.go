package testkit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ceyewan/lexigate/connector"
)

// NewSQLiteConnector 返回已连接的 SQLite 连接器，数据库文件位于测试临时目录。
func NewSQLiteConnector(t *testing.T) connector.SQLiteConnector {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test-"+NewID()+".db")
	conn, err := connector.NewSQLite(&connector.SQLiteConfig{
		Name: "test-sqlite",
		Path: path,
	}, connector.WithLogger(NewLogger()))
	if err != nil {
		t.Fatalf("failed to create sqlite connector: %v", err)
	}

	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}
