package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chxlky/trello-citydash/internal/cache"
	"github.com/chxlky/trello-citydash/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SnapshotStore persists cache entries and tag invalidations in sqlite so the
// stale fallback and pending refreshes survive restarts.
type SnapshotStore struct {
	DB *gorm.DB
}

func (s *SnapshotStore) Get(ctx context.Context, key string) (cache.Entry, error) {
	var row models.CachedSnapshot
	err := s.DB.WithContext(ctx).First(&row, "cache_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cache.Entry{}, cache.ErrMiss
	}
	if err != nil {
		return cache.Entry{}, fmt.Errorf("loading cached snapshot %s: %w", key, err)
	}
	return cache.Entry{Value: row.Value, Tags: row.Tags, StoredAt: row.StoredAt}, nil
}

func (s *SnapshotStore) Set(ctx context.Context, key string, e cache.Entry) error {
	row := models.CachedSnapshot{CacheKey: key, Value: e.Value, Tags: e.Tags, StoredAt: e.StoredAt}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("saving cached snapshot %s: %w", key, err)
	}
	return nil
}

func (s *SnapshotStore) SetTagInvalidation(ctx context.Context, tag string, at time.Time) error {
	row := models.CacheTag{Tag: tag, InvalidatedAt: at}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("saving invalidation of tag %s: %w", tag, err)
	}
	return nil
}

func (s *SnapshotStore) TagInvalidations(ctx context.Context, tags []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(tags))
	if len(tags) == 0 {
		return out, nil
	}
	var rows []models.CacheTag
	if err := s.DB.WithContext(ctx).Where("tag IN ?", tags).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading tag invalidations: %w", err)
	}
	for _, row := range rows {
		out[row.Tag] = row.InvalidatedAt
	}
	return out, nil
}
