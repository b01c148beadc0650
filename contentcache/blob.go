package contentcache

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ceyewan/lexigate/xerrors"
)

// BlobStore 二进制负载存储，按路径读写。
// 负载有意存放在主记录库之外，元数据里只记 location。
type BlobStore interface {
	// Write 写入负载，返回相对于存储根的 location
	Write(ctx context.Context, typ string, key Key, data []byte) (location string, err error)

	// Read 按 location 读负载。不存在返回 ErrBlobNotFound。
	Read(ctx context.Context, location string) ([]byte, error)

	// Delete 删除负载。不存在为空操作。
	Delete(ctx context.Context, location string) error

	// Stat 返回负载字节数。不存在返回 ErrBlobNotFound。
	Stat(ctx context.Context, location string) (int64, error)
}

// NewFSBlobStore 创建文件系统 Blob 存储。
// 路径按 <type>/<key 前两位>/<key>.bin 分片，限制单目录扇出。
func NewFSBlobStore(root string) (BlobStore, error) {
	if root == "" {
		return nil, xerrors.New("contentcache: blob root empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, xerrors.Wrap(err, "create blob root")
	}
	return &fsBlobStore{root: root}, nil
}

type fsBlobStore struct {
	root string
}

func (s *fsBlobStore) Write(ctx context.Context, typ string, key Key, data []byte) (string, error) {
	if typ == "" {
		typ = "misc"
	}
	location := filepath.Join(typ, key.ID[:2], key.ID+".bin")
	full := filepath.Join(s.root, location)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", xerrors.Wrap(err, "create shard dir")
	}

	// 先写临时文件再改名，避免读到半截负载
	tmp, err := os.CreateTemp(filepath.Dir(full), "."+key.ID+".*")
	if err != nil {
		return "", xerrors.Wrap(err, "create temp blob")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", xerrors.Wrap(err, "write blob")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", xerrors.Wrap(err, "close blob")
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return "", xerrors.Wrap(err, "rename blob")
	}
	return location, nil
}

func (s *fsBlobStore) Read(ctx context.Context, location string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, location))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, xerrors.Wrap(err, "read blob")
	}
	return data, nil
}

func (s *fsBlobStore) Delete(ctx context.Context, location string) error {
	err := os.Remove(filepath.Join(s.root, location))
	if err != nil && !os.IsNotExist(err) {
		return xerrors.Wrap(err, "delete blob")
	}
	return nil
}

func (s *fsBlobStore) Stat(ctx context.Context, location string) (int64, error) {
	info, err := os.Stat(filepath.Join(s.root, location))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrBlobNotFound
		}
		return 0, xerrors.Wrap(err, "stat blob")
	}
	return info.Size(), nil
}
