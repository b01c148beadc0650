// Package testkit 提供测试辅助工具，避免各包重复搭建依赖。
package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/metrics"
)

// NewLogger 返回一个用于测试的 logger，输出为开发环境格式。
func NewLogger() clog.Logger {
	logger, err := clog.New(&clog.Config{Level: "error"})
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewMeter 返回一个用于测试的 meter，不实际导出指标。
func NewMeter() metrics.Meter {
	return metrics.Discard()
}

// NewContext 返回一个带有超时的测试上下文。
func NewContext(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), timeout)
}

// NewID 返回一个唯一的测试 ID（UUID v4 前 8 位），
// 用于生成唯一的 Key 或路径后缀，避免测试间数据冲突。
func NewID() string {
	return uuid.New().String()[0:8]
}
