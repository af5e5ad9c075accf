// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the ClusterCache
// model used by the cache-aside layer around the clustering engine.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/seismolab/go-quake-backend/internal/domain"
)

// GetFreshCacheEntry returns the cache row for cacheKey if it was created
// after notBefore, or ErrNotFound. Stale rows are treated as absent; they
// are overwritten by the next PutCacheEntry rather than deleted.
func GetFreshCacheEntry(ctx context.Context, db *gorm.DB, cacheKey string, notBefore time.Time) (*domain.ClusterCache, error) {
	var row domain.ClusterCache
	err := db.WithContext(ctx).
		Where("cache_key = ? AND created_at > ?", cacheKey, notBefore).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// PutCacheEntry upserts a cache row under cacheKey with INSERT OR REPLACE
// semantics: an existing row for the same key is superseded wholesale, not
// versioned.
func PutCacheEntry(ctx context.Context, db *gorm.DB, cacheKey, payload, requestParams string, now time.Time) error {
	row := domain.ClusterCache{
		CacheKey:      cacheKey,
		Payload:       payload,
		RequestParams: requestParams,
		CreatedAt:     now.UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			UpdateAll: true,
		}).
		Create(&row).Error
}
