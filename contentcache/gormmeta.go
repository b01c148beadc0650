package contentcache

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ceyewan/lexigate/connector"
	"github.com/ceyewan/lexigate/xerrors"
)

// NewGormMetaStore 创建基于 SQLite 的元数据存储，自动建表。
func NewGormMetaStore(conn connector.SQLiteConnector) (MetaStore, error) {
	if conn == nil {
		return nil, xerrors.New("contentcache: sqlite connector nil")
	}
	db := conn.GetDB()
	if db == nil {
		return nil, connector.ErrClientNil
	}
	if err := db.AutoMigrate(&Meta{}); err != nil {
		return nil, xerrors.Wrap(err, "migrate cache_entries")
	}
	return &gormMetaStore{db: db}, nil
}

type gormMetaStore struct {
	db *gorm.DB
}

func (s *gormMetaStore) Get(ctx context.Context, key string) (*Meta, error) {
	var meta Meta
	err := s.db.WithContext(ctx).First(&meta, "key = ?", key).Error
	if err != nil {
		if xerrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMetaNotFound
		}
		return nil, xerrors.Wrap(err, "get meta")
	}
	return &meta, nil
}

func (s *gormMetaStore) Put(ctx context.Context, meta *Meta) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			UpdateAll: true,
		}).
		Create(meta).Error
	if err != nil {
		return xerrors.Wrap(err, "put meta")
	}
	return nil
}

func (s *gormMetaStore) Touch(ctx context.Context, key string, at time.Time) error {
	err := s.db.WithContext(ctx).
		Model(&Meta{}).
		Where("key = ?", key).
		Updates(map[string]any{
			"hits":             gorm.Expr("hits + 1"),
			"last_accessed_at": at,
		}).Error
	if err != nil {
		return xerrors.Wrap(err, "touch meta")
	}
	return nil
}

func (s *gormMetaStore) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Delete(&Meta{}, "key = ?", key).Error
	if err != nil {
		return xerrors.Wrap(err, "delete meta")
	}
	return nil
}

func (s *gormMetaStore) OldestFirst(ctx context.Context, limit int) ([]*Meta, error) {
	var metas []*Meta
	err := s.db.WithContext(ctx).
		Order("last_accessed_at ASC").
		Limit(limit).
		Find(&metas).Error
	if err != nil {
		return nil, xerrors.Wrap(err, "list oldest")
	}
	return metas, nil
}

func (s *gormMetaStore) Stats(ctx context.Context) (int64, int64, error) {
	var result struct {
		Count int64
		Bytes int64
	}
	err := s.db.WithContext(ctx).
		Model(&Meta{}).
		Select("COUNT(*) AS count, COALESCE(SUM(size), 0) AS bytes").
		Scan(&result).Error
	if err != nil {
		return 0, 0, xerrors.Wrap(err, "stats")
	}
	return result.Count, result.Bytes, nil
}
