// Definition HTTP handlers.
//
// This file exposes REST endpoints for persisted cluster definitions:
//   - GET /definitions          (list, paginated, significance-ordered)
//   - GET /definitions/{slug}   (fetch one by public slug)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/seismolab/go-quake-backend/internal/domain"
	"github.com/seismolab/go-quake-backend/internal/services"
	"github.com/seismolab/go-quake-backend/internal/utils"
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListDefinitionsResponse wraps a page of definitions and pagination
// information.
type ListDefinitionsResponse struct {
	Definitions []domain.ClusterDefinition `json:"definitions"`
	Pagination  Pagination                 `json:"pagination"`
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.ClampPage(utils.AtoiDefault(c.Query("page"), defaultPage))
	pageSize = utils.ClampPageSize(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), defaultPageSize, maxPageSize)
	return
}

// ListDefinitions godoc
// @ID          listDefinitions
// @Summary     List cluster definitions (paginated)
// @Description Returns a page of persisted cluster definitions ordered by significance descending.
// @Tags        Definitions
// @Produce     json
//
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListDefinitionsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /definitions [get]
func (h *Handlers) ListDefinitions(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.defSvc.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListDefinitionsResponse{
		Definitions: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetDefinition godoc
// @ID          getDefinition
// @Summary     Fetch a cluster definition by slug
// @Description Returns one persisted cluster definition identified by its public URL slug.
// @Tags        Definitions
// @Produce     json
//
// @Param       slug  path  string  true  "Definition slug"  example(3-quakes-near-ridgecrest-ca-m4.7-81000-35.6--117.6)
//
// @Success     200  {object}  domain.ClusterDefinition
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Definition not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /definitions/{slug} [get]
func (h *Handlers) GetDefinition(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "slug required")
		return
	}

	def, err := h.defSvc.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, services.ErrDefinitionNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "cluster definition not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, def)
}
