package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"docquery-service/internal/domain"
	"docquery-service/internal/transport/httpserver/dto"
)

// Catalog lists the configured entities.
type Catalog interface {
	Entities() []*domain.Descriptor
}

// CollectionCounter reports the number of stored documents per collection.
// Implementations: internal/infra/postgres, internal/infra/memstore
type CollectionCounter interface {
	Collections(ctx context.Context) (map[string]int, error)
}

// DashboardHandler handles dashboard-related HTTP requests.
type DashboardHandler struct {
	catalog Catalog
	counter CollectionCounter
	logger  *zap.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(catalog Catalog, counter CollectionCounter, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		catalog: catalog,
		counter: counter,
		logger:  logger,
	}
}

// Render handles GET /dashboard
func (h *DashboardHandler) Render(c *fiber.Ctx) error {
	stats, total := h.Stats(c.UserContext())

	return c.Render("pages/dashboard", fiber.Map{
		"Title":          "Document Query Dashboard",
		"Entities":       stats,
		"TotalDocuments": total,
	}, "layouts/base")
}

// Stats returns one row per entity. Counts are zero when the store cannot
// be reached.
func (h *DashboardHandler) Stats(ctx context.Context) ([]dto.EntityStats, int) {
	counts, err := h.counter.Collections(ctx)
	if err != nil {
		h.logger.Warn("failed to count documents", zap.Error(err))
	}

	descriptors := h.catalog.Entities()
	stats := make([]dto.EntityStats, 0, len(descriptors))
	total := 0
	seen := make(map[string]bool, len(descriptors))
	for _, d := range descriptors {
		n := counts[d.Collection]
		if !seen[d.Collection] {
			seen[d.Collection] = true
			total += n
		}
		stats = append(stats, dto.EntityStats{
			Entity:     d.Entity,
			Collection: d.Collection,
			Documents:  n,
			Filters:    len(d.FilterFields),
			Sorts:      len(d.SortFields),
		})
	}
	return stats, total
}
