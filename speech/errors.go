package speech

import "github.com/ceyewan/lexigate/xerrors"

var (
	// ErrInvokerNil invoker 未提供
	ErrInvokerNil = xerrors.New("speech: invoker nil")

	// ErrTextEmpty 请求文本为空
	ErrTextEmpty = xerrors.New("speech: text empty")
)
