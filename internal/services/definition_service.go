// Package services – DefinitionService
//
// This file implements the DefinitionService, which turns significant
// clusters into durable, versioned ClusterDefinition rows and serves them
// back out for listings. Persistence is per-cluster fault-isolated: one
// failing cluster is logged and counted but never aborts the batch, because
// callers run persistence detached from the request that produced the
// clusters.
package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/seismolab/go-quake-backend/internal/cluster"
	"github.com/seismolab/go-quake-backend/internal/domain"
	"github.com/seismolab/go-quake-backend/internal/observability"
	"github.com/seismolab/go-quake-backend/internal/repo"
)

// DefinitionService persists and serves cluster definitions.
type DefinitionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Metrics receives created/updated/error counters. May be nil in tests.
	Metrics *observability.Metrics

	// MinMembers is the smallest member count persisted as significant.
	MinMembers int
	// MinMagnitude is the smallest peak magnitude persisted as significant.
	MinMagnitude float64
}

// NewDefinitionService constructs a DefinitionService with the given
// significance thresholds.
func NewDefinitionService(db *gorm.DB, m *observability.Metrics, minMembers int, minMagnitude float64) *DefinitionService {
	return &DefinitionService{
		DB:           db,
		Metrics:      m,
		MinMembers:   minMembers,
		MinMagnitude: minMagnitude,
	}
}

// PersistSignificant upserts one definition per significant cluster and
// reports how many rows were created and updated. Insignificant clusters are
// skipped. A per-cluster failure is logged, counted, and does not stop the
// remaining clusters from being persisted.
//
// New stable keys insert a row at version 1 with a freshly derived slug.
// Known stable keys update the summary fields in place and bump the version;
// the slug is left untouched so public URLs survive re-clustering.
func (s *DefinitionService) PersistSignificant(ctx context.Context, clusters []cluster.Cluster) (created, updated int) {
	tr := otel.Tracer("services/DefinitionService")
	ctx, span := tr.Start(ctx, "PersistSignificant",
		trace.WithAttributes(attribute.Int("clusters", len(clusters))),
	)
	defer span.End()

	for _, c := range clusters {
		sum := cluster.Summarize(c)
		if !sum.IsSignificant(s.MinMembers, s.MinMagnitude) {
			continue
		}
		wasCreated, err := s.upsert(ctx, sum)
		if err != nil {
			if s.Metrics != nil {
				s.Metrics.PersistErrors.Inc()
			}
			log.Error().Err(err).Str("stable_key", sum.StableKey()).Msg("cluster definition upsert failed")
			continue
		}
		if wasCreated {
			created++
			if s.Metrics != nil {
				s.Metrics.DefinitionsCreated.Inc()
			}
		} else {
			updated++
			if s.Metrics != nil {
				s.Metrics.DefinitionsUpdated.Inc()
			}
		}
	}

	span.SetAttributes(attribute.Int("created", created), attribute.Int("updated", updated))
	return created, updated
}

// upsert writes one summary, reporting whether it inserted a new row.
func (s *DefinitionService) upsert(ctx context.Context, sum cluster.Summary) (bool, error) {
	def, err := definitionFromSummary(sum)
	if err != nil {
		return false, err
	}

	existing, err := repo.GetDefinitionByStableKey(ctx, s.DB, def.StableKey)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return false, err
		}
		_, err := repo.CreateDefinition(ctx, s.DB, def)
		return true, err
	}

	def.ID = existing.ID
	return false, repo.UpdateDefinition(ctx, s.DB, def)
}

// ListPage returns paginated definitions ordered by significance.
func (s *DefinitionService) ListPage(ctx context.Context, page, pageSize int) ([]domain.ClusterDefinition, int64, error) {
	tr := otel.Tracer("services/DefinitionService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountDefinitions(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ClusterDefinition{}, 0, nil
	}

	items, err := repo.ListDefinitionsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// GetBySlug fetches one definition by its public slug.
func (s *DefinitionService) GetBySlug(ctx context.Context, slug string) (*domain.ClusterDefinition, error) {
	def, err := repo.GetDefinitionBySlug(ctx, s.DB, slug)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrDefinitionNotFound
		}
		return nil, err
	}
	return def, nil
}

// definitionFromSummary maps a cluster summary onto the persisted row shape.
func definitionFromSummary(sum cluster.Summary) (*domain.ClusterDefinition, error) {
	ids, err := json.Marshal(sum.MemberIDs)
	if err != nil {
		return nil, err
	}
	return &domain.ClusterDefinition{
		StableKey:        sum.StableKey(),
		Slug:             sum.Slug(),
		Title:            sum.Title(),
		Description:      sum.Description(),
		StrongestEventID: sum.Strongest.ID,
		EventIDs:         string(ids),
		EventCount:       sum.Count,
		MaxMagnitude:     sum.MaxMagnitude,
		MinMagnitude:     sum.MinMagnitude,
		MeanMagnitude:    sum.MeanMagnitude,
		StartTime:        sum.Start,
		EndTime:          sum.End,
		DurationHours:    sum.DurationHours,
		LocationName:     sum.LocationName(),
		CentroidLat:      sum.CentroidLat,
		CentroidLon:      sum.CentroidLon,
		DepthRange:       sum.DepthRange,
		Significance:     sum.Score,
	}, nil
}
