package degrade

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/lexigate/breaker"
	"github.com/ceyewan/lexigate/health"
	"github.com/ceyewan/lexigate/xerrors"
)

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, health.Monitor) {
	t.Helper()
	monitor, err := health.NewMonitor(&health.Config{
		FailureThreshold: 3,
		ProbeInterval:    time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = monitor.Close() })

	coord, err := NewCoordinator(monitor, opts...)
	require.NoError(t, err)
	return coord, monitor
}

func TestNewCoordinator_NilMonitor(t *testing.T) {
	_, err := NewCoordinator(nil)
	assert.ErrorIs(t, err, ErrMonitorNil)
}

func TestWithFallback_PrimarySucceeds(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	ctx := context.Background()

	result, err := WithFallback(ctx, coord, "genai",
		func(ctx context.Context) (string, error) { return "primary", nil },
		func(ctx context.Context) (string, error) { return "fallback", nil },
	)
	require.NoError(t, err)
	assert.Equal(t, "primary", result)
}

func TestWithFallback_PrimaryFailureRoutesToFallback(t *testing.T) {
	coord, _ := newTestCoordinator(t)
	ctx := context.Background()

	result, err := WithFallback(ctx, coord, "genai",
		func(ctx context.Context) (string, error) { return "", xerrors.New("quota exceeded") },
		func(ctx context.Context) (string, error) { return "fallback", nil },
	)
	require.NoError(t, err, "主调用的错误不应向上传播")
	assert.Equal(t, "fallback", result)
}

func TestWithFallback_UnhealthySkipsPrimary(t *testing.T) {
	coord, monitor := newTestCoordinator(t)
	ctx := context.Background()

	monitor.Register("tts")
	for i := 0; i < 3; i++ {
		monitor.RecordFailure("tts", xerrors.New("down"))
	}
	require.False(t, monitor.IsHealthy("tts"))

	primaryCalled := false
	result, err := WithFallback(ctx, coord, "tts",
		func(ctx context.Context) (string, error) { primaryCalled = true; return "primary", nil },
		func(ctx context.Context) (string, error) { return "fallback", nil },
	)
	require.NoError(t, err)
	assert.Equal(t, "fallback", result)
	assert.False(t, primaryCalled, "不健康时不应浪费延迟调用主实现")
}

func TestWithFallback_FailuresFeedHealthMonitor(t *testing.T) {
	coord, monitor := newTestCoordinator(t)
	ctx := context.Background()

	failing := func(ctx context.Context) (int, error) { return 0, xerrors.New("boom") }
	fb := func(ctx context.Context) (int, error) { return -1, nil }

	// 连续 3 次失败后，健康监控接管路由
	for i := 0; i < 3; i++ {
		_, err := WithFallback(ctx, coord, "genai", failing, fb)
		require.NoError(t, err)
	}
	assert.False(t, monitor.IsHealthy("genai"))

	// 此后一次成功（例如探测）恢复路由
	monitor.RecordSuccess("genai")
	called := false
	_, _ = WithFallback(ctx, coord, "genai",
		func(ctx context.Context) (int, error) { called = true; return 1, nil }, fb)
	assert.True(t, called)
}

func TestWithFallback_BreakerOpenNotDoubleCounted(t *testing.T) {
	coord, monitor := newTestCoordinator(t)
	ctx := context.Background()

	fb := func(ctx context.Context) (int, error) { return -1, nil }
	open := func(ctx context.Context) (int, error) { return 0, breaker.ErrOpenState }

	// 熔断快速失败不应累积健康失败计数
	for i := 0; i < 5; i++ {
		_, err := WithFallback(ctx, coord, "tts", open, fb)
		require.NoError(t, err)
	}
	assert.True(t, monitor.IsHealthy("tts"), "熔断信号不应计入健康阈值")
}

func TestWithFallback_TerminalFallbackFailure(t *testing.T) {
	coord, _ := newTestCoordinator(t,
		WithLearnerMessage("tts", "Audio is resting. Read along with the text for now."))
	ctx := context.Background()

	primaryErr := xerrors.New("rate limited")
	fallbackErr := xerrors.New("no cached audio")

	_, err := WithFallback(ctx, coord, "tts",
		func(ctx context.Context) (string, error) { return "", primaryErr },
		func(ctx context.Context) (string, error) { return "", fallbackErr },
	)
	require.Error(t, err)

	var degraded *DegradedError
	require.ErrorAs(t, err, &degraded)
	assert.Equal(t, "tts", degraded.Service)
	assert.ErrorIs(t, degraded.FallbackErr, fallbackErr)
	// 运维视角包含两个错误，学习者视角只有友好措辞
	assert.Contains(t, degraded.Error(), "rate limited")
	assert.Contains(t, degraded.Error(), "no cached audio")
	assert.Equal(t, "Audio is resting. Read along with the text for now.", degraded.LearnerMessage())
}

func TestDegradedError_DefaultLearnerMessage(t *testing.T) {
	e := &DegradedError{Service: "genai", FallbackErr: xerrors.New("x")}
	assert.NotContains(t, e.LearnerMessage(), "genai", "默认措辞不应泄露内部服务名")
}
