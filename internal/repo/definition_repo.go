// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ClusterDefinition model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a definition is not found, functions return
//     gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seismolab/go-quake-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist. It aliases
// gorm.ErrRecordNotFound for convenience and consistency across the service
// layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetDefinitionByStableKey fetches the definition persisted under the given
// stable key, or ErrNotFound.
func GetDefinitionByStableKey(ctx context.Context, db *gorm.DB, stableKey string) (*domain.ClusterDefinition, error) {
	var def domain.ClusterDefinition
	err := db.WithContext(ctx).
		Where("stable_key = ?", stableKey).
		First(&def).Error
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// GetDefinitionBySlug fetches a definition by its public slug, or ErrNotFound.
func GetDefinitionBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.ClusterDefinition, error) {
	var def domain.ClusterDefinition
	err := db.WithContext(ctx).
		Where("slug = ?", slug).
		First(&def).Error
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// CreateDefinition inserts a new definition with a fresh UUID primary key,
// Version 1, and UTC timestamps. The caller provides all derived fields
// (stable key, slug, summary values); this function only persists them.
func CreateDefinition(ctx context.Context, db *gorm.DB, def *domain.ClusterDefinition) (*domain.ClusterDefinition, error) {
	now := time.Now().UTC()
	def.ID = uuid.NewString()
	def.Version = 1
	def.CreatedAt = now
	def.UpdatedAt = now
	if err := db.WithContext(ctx).Create(def).Error; err != nil {
		return nil, err
	}
	return def, nil
}

// UpdateDefinition rewrites the mutable fields of the row identified by
// def.ID in place and increments its version. The slug is deliberately not
// part of the update set: it is fixed at creation so public URLs stay
// stable. Returns ErrNotFound when no row was affected.
func UpdateDefinition(ctx context.Context, db *gorm.DB, def *domain.ClusterDefinition) error {
	res := db.WithContext(ctx).
		Model(&domain.ClusterDefinition{}).
		Where("id = ?", def.ID).
		Updates(map[string]any{
			"title":              def.Title,
			"description":        def.Description,
			"strongest_event_id": def.StrongestEventID,
			"event_ids":          def.EventIDs,
			"event_count":        def.EventCount,
			"max_magnitude":      def.MaxMagnitude,
			"min_magnitude":      def.MinMagnitude,
			"mean_magnitude":     def.MeanMagnitude,
			"start_time":         def.StartTime,
			"end_time":           def.EndTime,
			"duration_hours":     def.DurationHours,
			"location_name":      def.LocationName,
			"centroid_lat":       def.CentroidLat,
			"centroid_lon":       def.CentroidLon,
			"depth_range":        def.DepthRange,
			"significance":       def.Significance,
			"version":            gorm.Expr("version + 1"),
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountDefinitions returns the total number of persisted definitions.
func CountDefinitions(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ClusterDefinition{}).
		Count(&total).Error
	return total, err
}

// ListDefinitionsPage returns a page of definitions ordered by significance
// descending (ties broken by most recent update). The caller computes
// offset and limit.
func ListDefinitionsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.ClusterDefinition, error) {
	var out []domain.ClusterDefinition
	err := db.WithContext(ctx).
		Order("significance desc, updated_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
