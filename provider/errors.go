package provider

import (
	"fmt"
	"net/http"

	"github.com/ceyewan/lexigate/xerrors"
)

// TransientError 瞬时失败：限流、超时、5xx。值得重试。
type TransientError struct {
	// Provider 提供方标识
	Provider string
	// Status HTTP 状态码，网络层失败时为 0
	Status int
	// RateLimited 是否由提供方限流触发（429）
	RateLimited bool

	cause error
}

// NewTransientError 创建瞬时错误
func NewTransientError(provider string, status int, rateLimited bool, cause error) *TransientError {
	return &TransientError{Provider: provider, Status: status, RateLimited: rateLimited, cause: cause}
}

func (e *TransientError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("provider %s: transient (status=%d): %v", e.Provider, e.Status, e.cause)
	}
	return fmt.Sprintf("provider %s: transient (status=%d)", e.Provider, e.Status)
}

func (e *TransientError) Unwrap() error {
	return e.cause
}

// PermanentError 永久失败：参数错误、凭证无效。重试无意义。
type PermanentError struct {
	// Provider 提供方标识
	Provider string
	// Status HTTP 状态码，非 HTTP 失败时为 0
	Status int

	cause error
}

// NewPermanentError 创建永久错误
func NewPermanentError(provider string, status int, cause error) *PermanentError {
	return &PermanentError{Provider: provider, Status: status, cause: cause}
}

func (e *PermanentError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("provider %s: permanent (status=%d): %v", e.Provider, e.Status, e.cause)
	}
	return fmt.Sprintf("provider %s: permanent (status=%d)", e.Provider, e.Status)
}

func (e *PermanentError) Unwrap() error {
	return e.cause
}

// ClassifyStatus 把非 2xx 状态码归类为瞬时或永久错误。
// 429 与 5xx 为瞬时，其余 4xx 为永久。
func ClassifyStatus(provider string, status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return NewTransientError(provider, status, true, nil)
	case status >= 500:
		return NewTransientError(provider, status, false, nil)
	default:
		return NewPermanentError(provider, status, nil)
	}
}

// IsTransient 判断错误是否可重试
func IsTransient(err error) bool {
	var te *TransientError
	return xerrors.As(err, &te)
}

// IsRateLimited 判断错误是否由提供方限流触发
func IsRateLimited(err error) bool {
	var te *TransientError
	return xerrors.As(err, &te) && te.RateLimited
}
