package contentcache

import (
	"context"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/ceyewan/lexigate/clog"
	"github.com/ceyewan/lexigate/metrics"
	"github.com/ceyewan/lexigate/xerrors"
)

// cache 两层实现：otter 热层挡住进程内的重复读，
// MetaStore + BlobStore 为持久层。持久层任何故障都降级为未命中。
type cache struct {
	config *Config
	meta   MetaStore
	blobs  BlobStore
	hot    *otter.Cache[string, *Artifact]

	logger clog.Logger
	meter  metrics.Meter

	hitsCounter   metrics.Counter
	missesCounter metrics.Counter
	bytesGauge    metrics.Gauge
}

func newCache(config *Config, meta MetaStore, opts ...Option) (*cache, error) {
	c := &cache{
		config: config,
		meta:   meta,
		logger: clog.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(clog.String("component", "contentcache"))

	if c.blobs == nil {
		blobs, err := NewFSBlobStore(config.BlobRoot)
		if err != nil {
			return nil, err
		}
		c.blobs = blobs
	}

	hot, err := otter.New(&otter.Options[string, *Artifact]{
		MaximumSize: c.config.HotCapacity,
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "build hot layer")
	}
	c.hot = hot

	if c.meter != nil {
		c.hitsCounter, _ = c.meter.Counter(MetricHitsTotal, "Cache hits by layer")
		c.missesCounter, _ = c.meter.Counter(MetricMissesTotal, "Cache misses by reason")
		c.bytesGauge, _ = c.meter.Gauge(MetricBytes, "Total cached payload bytes")
	}
	return c, nil
}

func (c *cache) Get(ctx context.Context, key Key) (*Artifact, error) {
	if key.IsZero() {
		return nil, ErrKeyZero
	}

	if artifact, ok := c.hot.GetIfPresent(key.ID); ok {
		c.recordHit(ctx, "hot", artifact.Type)
		// 持久层命中计数尽力而为，失败不影响返回
		if err := c.meta.Touch(ctx, key.ID, time.Now()); err != nil {
			c.logger.DebugContext(ctx, "touch after hot hit failed", clog.Error(err))
		}
		return artifact, nil
	}

	meta, err := c.meta.Get(ctx, key.ID)
	if err != nil {
		if xerrors.Is(err, ErrMetaNotFound) {
			c.recordMiss(ctx, "absent")
			return nil, ErrMiss
		}
		// 元数据存储不可达按未命中处理，绝不向上抛存储故障
		c.logger.WarnContext(ctx, "meta store unreachable, treating as miss",
			clog.String("key", key.ID), clog.Error(err))
		c.recordMiss(ctx, "unreachable")
		return nil, ErrMiss
	}

	data, err := c.blobs.Read(ctx, meta.Location)
	if err != nil {
		if xerrors.Is(err, ErrBlobNotFound) {
			// 有元数据没文件：清掉悬空记录，按未命中处理
			c.logger.WarnContext(ctx, "dangling meta without blob",
				clog.String("key", key.ID), clog.String("location", meta.Location))
			if derr := c.meta.Delete(ctx, key.ID); derr != nil {
				c.logger.WarnContext(ctx, "dangling meta cleanup failed", clog.Error(derr))
			}
			c.recordMiss(ctx, "inconsistent")
			return nil, ErrMiss
		}
		c.logger.WarnContext(ctx, "blob store unreachable, treating as miss",
			clog.String("key", key.ID), clog.Error(err))
		c.recordMiss(ctx, "unreachable")
		return nil, ErrMiss
	}

	now := time.Now()
	if err := c.meta.Touch(ctx, key.ID, now); err != nil {
		c.logger.DebugContext(ctx, "touch failed", clog.Error(err))
	}

	artifact := &Artifact{
		Key:            Key{ID: meta.Key, Digest: meta.Digest},
		Type:           meta.Type,
		Data:           data,
		Size:           meta.Size,
		Hits:           meta.Hits + 1,
		CreatedAt:      meta.CreatedAt,
		LastAccessedAt: now,
	}
	c.hot.Set(key.ID, artifact)
	c.recordHit(ctx, "store", meta.Type)
	return artifact, nil
}

func (c *cache) Put(ctx context.Context, key Key, typ string, data []byte) error {
	if key.IsZero() {
		return ErrKeyZero
	}

	location, err := c.blobs.Write(ctx, typ, key, data)
	if err != nil {
		return xerrors.Wrap(err, "write blob")
	}

	now := time.Now()
	meta := &Meta{
		Key:            key.ID,
		Digest:         key.Digest,
		Type:           typ,
		Size:           int64(len(data)),
		Location:       location,
		Hits:           0,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	if err := c.meta.Put(ctx, meta); err != nil {
		// 负载已落盘但元数据失败：留下的孤儿文件读不到，只占空间
		c.logger.WarnContext(ctx, "meta put failed, blob orphaned",
			clog.String("key", key.ID), clog.String("location", location), clog.Error(err))
		return xerrors.Wrap(err, "put meta")
	}

	c.hot.Set(key.ID, &Artifact{
		Key:            key,
		Type:           typ,
		Data:           data,
		Size:           meta.Size,
		CreatedAt:      now,
		LastAccessedAt: now,
	})

	c.logger.DebugContext(ctx, "artifact cached",
		clog.String("key", key.ID),
		clog.String("type", typ),
		clog.Int("bytes", len(data)))
	return nil
}

func (c *cache) Delete(ctx context.Context, key Key) error {
	if key.IsZero() {
		return ErrKeyZero
	}
	c.hot.Invalidate(key.ID)

	meta, err := c.meta.Get(ctx, key.ID)
	if err != nil {
		if xerrors.Is(err, ErrMetaNotFound) {
			return nil
		}
		return err
	}
	if err := c.blobs.Delete(ctx, meta.Location); err != nil {
		return err
	}
	return c.meta.Delete(ctx, key.ID)
}

func (c *cache) Stats(ctx context.Context) (int64, int64, error) {
	count, bytes, err := c.meta.Stats(ctx)
	if err != nil {
		return 0, 0, err
	}
	if c.bytesGauge != nil {
		c.bytesGauge.Set(ctx, float64(bytes))
	}
	return count, bytes, nil
}

func (c *cache) Close() error {
	c.hot.StopAllGoroutines()
	return nil
}

func (c *cache) recordHit(ctx context.Context, layer, typ string) {
	if c.hitsCounter != nil {
		c.hitsCounter.Inc(ctx, metrics.L(LabelLayer, layer), metrics.L(LabelType, typ))
	}
}

func (c *cache) recordMiss(ctx context.Context, reason string) {
	if c.missesCounter != nil {
		c.missesCounter.Inc(ctx, metrics.L(LabelReason, reason))
	}
}
