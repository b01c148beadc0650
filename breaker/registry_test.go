package breaker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetIdempotent(t *testing.T) {
	reg, err := NewRegistry(nil)
	require.NoError(t, err)

	b1 := reg.Get("tts", "synthesize", nil)
	b2 := reg.Get("tts", "synthesize", &Config{FailureThreshold: 99})
	assert.Same(t, b1, b2, "同一个键应返回同一个熔断器，后续配置被忽略")

	b3 := reg.Get("tts", "voices", nil)
	assert.NotSame(t, b1, b3, "不同操作应是独立熔断器")
}

func TestRegistry_ConcurrentFirstUse(t *testing.T) {
	reg, err := NewRegistry(nil)
	require.NoError(t, err)

	const goroutines = 32
	results := make([]Breaker, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = reg.Get("genai", "generate", nil)
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, results[0], results[i], "并发首次获取应只创建一个实例")
	}
}

func TestRegistry_HealthStatus(t *testing.T) {
	reg, err := NewRegistry(&Config{FailureThreshold: 1, ResetTimeout: time.Minute})
	require.NoError(t, err)

	reg.Get("db", "query", nil)
	brk := reg.Get("tts", "synthesize", nil)
	recordFailures(t, brk, 1)

	statuses := reg.HealthStatus()
	require.Len(t, statuses, 2)
	// 按键排序
	assert.Equal(t, "db/query", statuses[0].Key.String())
	assert.Equal(t, StateClosed, statuses[0].State)
	assert.Equal(t, "tts/synthesize", statuses[1].Key.String())
	assert.Equal(t, StateOpen, statuses[1].State)
}

func TestRegistry_ResetService(t *testing.T) {
	reg, err := NewRegistry(&Config{FailureThreshold: 1, ResetTimeout: time.Minute})
	require.NoError(t, err)

	ttsA := reg.Get("tts", "synthesize", nil)
	ttsB := reg.Get("tts", "voices", nil)
	genai := reg.Get("genai", "generate", nil)
	recordFailures(t, ttsA, 1)
	recordFailures(t, ttsB, 1)
	recordFailures(t, genai, 1)

	reg.ResetService("tts")

	assert.Equal(t, StateClosed, ttsA.Status().State)
	assert.Equal(t, StateClosed, ttsB.Status().State)
	assert.Equal(t, StateOpen, genai.Status().State, "其他服务的熔断器不受影响")

	reg.ResetAll()
	assert.Equal(t, StateClosed, genai.Status().State)
}

func TestRegistry_CriticalStatus(t *testing.T) {
	reg, err := NewRegistry(
		&Config{FailureThreshold: 1, ResetTimeout: time.Minute},
		WithCriticalServices("tts", "genai"))
	require.NoError(t, err)

	assert.True(t, reg.CriticalStatus().AllHealthy)

	recordFailures(t, reg.Get("tts", "synthesize", nil), 1)
	// 非关键服务的熔断不影响聚合结果
	recordFailures(t, reg.Get("analytics", "ingest", nil), 1)

	status := reg.CriticalStatus()
	assert.False(t, status.AllHealthy)
	assert.Equal(t, []string{"tts"}, status.DownServices)
}
