package contentcache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/lexigate/connector"
	"github.com/ceyewan/lexigate/xerrors"
)

// Redis 元数据存储的键布局。LRU 序独立放一个 ZSET，
// score 为最近访问时间，多实例共享同一份访问序。
const (
	redisMetaPrefix = "contentcache:meta:"
	redisLRUKey     = "contentcache:lru"
	redisBytesKey   = "contentcache:bytes"
)

// NewRedisMetaStore 创建基于 Redis 的元数据存储，记录以 msgpack 序列化。
// 适合多个网关实例共享一份缓存元数据的部署。
func NewRedisMetaStore(conn connector.RedisConnector) (MetaStore, error) {
	if conn == nil {
		return nil, xerrors.New("contentcache: redis connector nil")
	}
	client := conn.GetClient()
	if client == nil {
		return nil, connector.ErrClientNil
	}
	return &redisMetaStore{client: client}, nil
}

type redisMetaStore struct {
	client *redis.Client
}

func (s *redisMetaStore) Get(ctx context.Context, key string) (*Meta, error) {
	raw, err := s.client.Get(ctx, redisMetaPrefix+key).Bytes()
	if err != nil {
		if xerrors.Is(err, redis.Nil) {
			return nil, ErrMetaNotFound
		}
		return nil, xerrors.Wrap(err, "get meta")
	}
	var meta Meta
	if err := msgpack.Unmarshal(raw, &meta); err != nil {
		return nil, xerrors.Wrap(err, "decode meta")
	}
	return &meta, nil
}

func (s *redisMetaStore) Put(ctx context.Context, meta *Meta) error {
	raw, err := msgpack.Marshal(meta)
	if err != nil {
		return xerrors.Wrap(err, "encode meta")
	}

	// 覆盖写时按新旧大小差调整总字节计数
	var delta = meta.Size
	if old, err := s.Get(ctx, meta.Key); err == nil {
		delta -= old.Size
	} else if !xerrors.Is(err, ErrMetaNotFound) {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisMetaPrefix+meta.Key, raw, 0)
	pipe.ZAdd(ctx, redisLRUKey, redis.Z{
		Score:  float64(meta.LastAccessedAt.UnixMilli()),
		Member: meta.Key,
	})
	if delta != 0 {
		pipe.IncrBy(ctx, redisBytesKey, delta)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return xerrors.Wrap(err, "put meta")
	}
	return nil
}

func (s *redisMetaStore) Touch(ctx context.Context, key string, at time.Time) error {
	meta, err := s.Get(ctx, key)
	if err != nil {
		if xerrors.Is(err, ErrMetaNotFound) {
			return nil
		}
		return err
	}
	meta.Hits++
	meta.LastAccessedAt = at

	raw, err := msgpack.Marshal(meta)
	if err != nil {
		return xerrors.Wrap(err, "encode meta")
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisMetaPrefix+key, raw, 0)
	pipe.ZAdd(ctx, redisLRUKey, redis.Z{Score: float64(at.UnixMilli()), Member: key})
	if _, err := pipe.Exec(ctx); err != nil {
		return xerrors.Wrap(err, "touch meta")
	}
	return nil
}

func (s *redisMetaStore) Delete(ctx context.Context, key string) error {
	meta, err := s.Get(ctx, key)
	if err != nil {
		if xerrors.Is(err, ErrMetaNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisMetaPrefix+key)
	pipe.ZRem(ctx, redisLRUKey, key)
	pipe.DecrBy(ctx, redisBytesKey, meta.Size)
	if _, err := pipe.Exec(ctx); err != nil {
		return xerrors.Wrap(err, "delete meta")
	}
	return nil
}

func (s *redisMetaStore) OldestFirst(ctx context.Context, limit int) ([]*Meta, error) {
	keys, err := s.client.ZRange(ctx, redisLRUKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, xerrors.Wrap(err, "list oldest")
	}
	metas := make([]*Meta, 0, len(keys))
	for _, key := range keys {
		meta, err := s.Get(ctx, key)
		if err != nil {
			if xerrors.Is(err, ErrMetaNotFound) {
				// ZSET 与记录不同步，跳过悬空成员
				continue
			}
			return nil, err
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

func (s *redisMetaStore) Stats(ctx context.Context) (int64, int64, error) {
	count, err := s.client.ZCard(ctx, redisLRUKey).Result()
	if err != nil {
		return 0, 0, xerrors.Wrap(err, "stats count")
	}
	bytes, err := s.client.Get(ctx, redisBytesKey).Int64()
	if err != nil && !xerrors.Is(err, redis.Nil) {
		return 0, 0, xerrors.Wrap(err, "stats bytes")
	}
	return count, bytes, nil
}
