package contentcache

import "github.com/ceyewan/lexigate/xerrors"

var (
	// ErrMiss 未命中。指纹无记录、存储不一致、存储不可达都归于此。
	ErrMiss = xerrors.New("contentcache: miss")

	// ErrMetaStoreNil 元数据存储未提供
	ErrMetaStoreNil = xerrors.New("contentcache: meta store nil")

	// ErrKeyZero 零值指纹
	ErrKeyZero = xerrors.New("contentcache: key zero")

	// ErrMetaNotFound 元数据记录不存在（MetaStore 层错误，Cache 层转为 ErrMiss）
	ErrMetaNotFound = xerrors.New("contentcache: meta not found")

	// ErrBlobNotFound Blob 文件不存在（BlobStore 层错误，Cache 层转为 ErrMiss）
	ErrBlobNotFound = xerrors.New("contentcache: blob not found")

	// ErrJanitorMaxBytes 清理器未配置字节上限
	ErrJanitorMaxBytes = xerrors.New("contentcache: janitor max bytes required")
)
