package breaker

import "github.com/ceyewan/lexigate/xerrors"

// 错误定义
var (
	// ErrKeyEmpty 熔断键为空
	ErrKeyEmpty = xerrors.New("breaker: service or operation is empty")

	// ErrOpenState 熔断器处于打开（或半开已满）状态，请求被快速拒绝。
	// 该错误是快速失败信号，不是真正的提供方错误，绝不计入失败阈值。
	ErrOpenState = xerrors.New("breaker: circuit breaker is open")
)
