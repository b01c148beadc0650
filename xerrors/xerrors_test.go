package xerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Run("nil 错误应返回 nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, "context"))
	})

	t.Run("包装后应保留错误链", func(t *testing.T) {
		base := errors.New("base error")
		wrapped := Wrap(base, "context")
		require.Error(t, wrapped)
		assert.Equal(t, "context: base error", wrapped.Error())
		assert.True(t, errors.Is(wrapped, base))
	})
}

func TestWrapf(t *testing.T) {
	base := errors.New("not found")
	wrapped := Wrapf(base, "student %d", 42)
	require.Error(t, wrapped)
	assert.Equal(t, "student 42: not found", wrapped.Error())
	assert.NoError(t, Wrapf(nil, "student %d", 42))
}

func TestWithCode(t *testing.T) {
	t.Run("nil 错误应返回 nil", func(t *testing.T) {
		assert.NoError(t, WithCode(nil, "CODE"))
	})

	t.Run("GetCode 应能提取错误码", func(t *testing.T) {
		base := errors.New("cache miss")
		coded := WithCode(base, "CACHE_MISS")
		assert.Equal(t, "[CACHE_MISS] cache miss", coded.Error())
		assert.Equal(t, "CACHE_MISS", GetCode(coded))
		assert.True(t, errors.Is(coded, base))
	})

	t.Run("多层包装后仍可提取", func(t *testing.T) {
		err := Wrap(WithCode(errors.New("boom"), "PROVIDER_DOWN"), "generate")
		assert.Equal(t, "PROVIDER_DOWN", GetCode(err))
	})

	t.Run("没有错误码应返回空串", func(t *testing.T) {
		assert.Equal(t, "", GetCode(errors.New("plain")))
	})
}

func TestCombine(t *testing.T) {
	e1 := errors.New("first")
	e2 := errors.New("second")

	assert.NoError(t, Combine(nil, nil))
	assert.Equal(t, e1, Combine(nil, e1))

	combined := Combine(e1, nil, e2)
	require.Error(t, combined)
	assert.True(t, errors.Is(combined, e1))
	assert.True(t, errors.Is(combined, e2))
	assert.Contains(t, combined.Error(), "1 more errors")
}
