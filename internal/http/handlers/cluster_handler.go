// Cluster HTTP handlers.
//
// This file exposes the clustering endpoint:
//   - POST /clusters  (cluster a batch of events, cached)
//
// Handlers are transport-thin: they validate input, call application
// services, and translate results into HTTP responses. Persistence of
// significant clusters runs detached from the request so a slow database
// never delays the clustering response.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seismolab/go-quake-backend/internal/cluster"
	"github.com/seismolab/go-quake-backend/internal/domain"
	"github.com/seismolab/go-quake-backend/internal/http/middleware"
	"github.com/seismolab/go-quake-backend/internal/services"
)

// persistTimeout bounds the detached persistence pass behind each clustering
// request.
const persistTimeout = 30 * time.Second

//
// Service contracts (context-aware)
//

// ClusterService defines the clustering operation consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ClusterService interface {
	// GetOrCompute serves a clustering result from cache or computes it. The
	// bool reports whether the response came from cache.
	GetOrCompute(ctx context.Context, raw []cluster.RawEvent, maxDistanceKm float64, minMembers int) (*services.ClusterRun, bool, error)
}

// DefinitionService defines persistence and retrieval of durable cluster
// definitions.
type DefinitionService interface {
	// PersistSignificant upserts definitions for the significant clusters.
	PersistSignificant(ctx context.Context, clusters []cluster.Cluster) (created, updated int)
	// ListPage returns a page of definitions and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.ClusterDefinition, int64, error)
	// GetBySlug fetches one definition by its public slug.
	GetBySlug(ctx context.Context, slug string) (*domain.ClusterDefinition, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for clustering and definitions.
type Handlers struct {
	clusterSvc ClusterService
	defSvc     DefinitionService
}

// New constructs a Handlers instance bound to the given services.
func New(clusterSvc ClusterService, defSvc DefinitionService) *Handlers {
	return &Handlers{clusterSvc: clusterSvc, defSvc: defSvc}
}

//
// DTOs
//

// ComputeClustersRequest is the JSON payload for a clustering run.
type ComputeClustersRequest struct {
	// Events is the batch of raw events to cluster. Malformed elements are
	// skipped, not fatal.
	Events []cluster.RawEvent `json:"events" binding:"required"`
	// MaxDistanceKm is the neighbor radius in kilometers (must be > 0).
	MaxDistanceKm float64 `json:"max_distance_km" binding:"required" example:"100"`
	// MinMembers is the smallest group size kept as a cluster (must be >= 1).
	MinMembers int `json:"min_members" binding:"required" example:"3"`
}

// ComputeClustersResponse wraps one clustering result.
type ComputeClustersResponse struct {
	Clusters      []cluster.Cluster `json:"clusters"`
	Strategy      string            `json:"strategy" example:"indexed"`
	IndexFallback bool              `json:"index_fallback"`
	SkippedEvents int               `json:"skipped_events"`
	Cached        bool              `json:"cached"`
}

//
// Handlers
//

// ComputeClusters godoc
// @ID          computeClusters
// @Summary     Cluster a batch of earthquake events
// @Description Groups the posted events by spatial proximity. Results are cached per request shape; the X-Cache response header reports hit or miss. Significant clusters are persisted asynchronously.
// @Tags        Clusters
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ComputeClustersRequest  true  "Events and clustering parameters"
//
// @Success     200  {object}  handlers.ComputeClustersResponse
// @Header      200  {string}  X-Cache  "hit or miss"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /clusters [post]
func (h *Handlers) ComputeClusters(c *gin.Context) {
	var req ComputeClustersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	run, cached, err := h.clusterSvc.GetOrCompute(c.Request.Context(), req.Events, req.MaxDistanceKm, req.MinMembers)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidThresholds):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrNoEvents):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeClusterFailed, err.Error())
		}
		return
	}

	if cached {
		c.Header("X-Cache", "hit")
	} else {
		c.Header("X-Cache", "miss")
		// Persist on fresh computations only; cached results were already
		// persisted when they were first computed. The request context dies
		// with the response, so the pass runs on its own deadline.
		lg := middleware.LoggerFrom(c)
		clusters := run.Clusters
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			created, updated := h.defSvc.PersistSignificant(ctx, clusters)
			lg.Info().
				Int("created", created).
				Int("updated", updated).
				Msg("cluster definitions persisted")
		}()
	}

	ok(c, http.StatusOK, ComputeClustersResponse{
		Clusters:      run.Clusters,
		Strategy:      run.Strategy,
		IndexFallback: run.IndexFallback,
		SkippedEvents: run.SkippedEvents,
		Cached:        cached,
	})
}
