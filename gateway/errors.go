package gateway

import "github.com/ceyewan/lexigate/xerrors"

var (
	// ErrDepsIncomplete 缺少必填依赖
	ErrDepsIncomplete = xerrors.New("gateway: deps incomplete")

	// ErrTextEmpty 请求文本为空
	ErrTextEmpty = xerrors.New("gateway: text empty")
)
