package ratelimit

import "github.com/ceyewan/lexigate/xerrors"

var (
	// ErrIdentityEmpty 身份为空
	ErrIdentityEmpty = xerrors.New("ratelimit: identity empty")

	// ErrStoreUnreachable 共享存储不可达。Failover 捕获此类错误并切换本地计数。
	ErrStoreUnreachable = xerrors.New("ratelimit: store unreachable")
)
