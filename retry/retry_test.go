package retry_test

import (
	"context"
	"testing"
	"time"

	"github.com/ceyewan/lexigate/retry"
	"github.com/ceyewan/lexigate/xerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastPolicy 返回一个延迟极短的策略，避免测试变慢
func fastPolicy(maxAttempts int, retryable func(error) bool) retry.Policy {
	return retry.Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Retryable:   retryable,
	}
}

func TestRetrySuccess(t *testing.T) {
	t.Run("首次成功不重试", func(t *testing.T) {
		calls := 0
		err := retry.Do(context.Background(), fastPolicy(3, nil), func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("瞬时失败后成功", func(t *testing.T) {
		calls := 0
		result, err := retry.DoWithResult(context.Background(), fastPolicy(3, nil), func() (string, error) {
			calls++
			if calls < 3 {
				return "", xerrors.New("transient")
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 3, calls)
	})
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	lastErr := xerrors.New("still failing")
	err := retry.Do(context.Background(), fastPolicy(3, nil), func() error {
		calls++
		return lastErr
	})
	// 尝试耗尽时返回最后一次的错误
	require.Error(t, err)
	assert.ErrorIs(t, err, lastErr)
	assert.Equal(t, 3, calls)
}

func TestRetryPermanentError(t *testing.T) {
	permanent := xerrors.New("bad request")
	calls := 0
	err := retry.Do(context.Background(), fastPolicy(5, func(err error) bool {
		return !xerrors.Is(err, permanent)
	}), func() error {
		calls++
		return permanent
	})
	// 不可重试的错误立即传播，不消耗剩余尝试
	require.Error(t, err)
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry.Do(ctx, retry.Policy{
		MaxAttempts: 10,
		BaseDelay:   time.Hour, // 退避足够长，取消一定发生在等待期间
	}, func() error {
		calls++
		cancel()
		return xerrors.New("transient")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryDefaults(t *testing.T) {
	// 零值策略可直接使用，默认尝试 3 次
	calls := 0
	_ = retry.Do(context.Background(), retry.Policy{BaseDelay: time.Millisecond}, func() error {
		calls++
		return xerrors.New("fail")
	})
	assert.Equal(t, 3, calls)
}
