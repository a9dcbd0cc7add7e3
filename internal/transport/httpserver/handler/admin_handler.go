package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"docquery-service/internal/app/service"
	"docquery-service/internal/transport/httpserver/dto"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	ingestService *service.IngestService
	logger        *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(ingestSvc *service.IngestService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		ingestService: ingestSvc,
		logger:        logger,
	}
}

// IngestAll handles POST /api/v1/admin/ingest
func (h *AdminHandler) IngestAll(c *fiber.Ctx) error {
	h.logger.Info("manual ingest triggered")

	results := h.ingestService.IngestAll(c.UserContext())

	return c.JSON(dto.FromIngestResults(results))
}

// IngestFeed handles POST /api/v1/admin/ingest/:feed
func (h *AdminHandler) IngestFeed(c *fiber.Ctx) error {
	name := c.Params("feed")

	h.logger.Info("manual feed ingest triggered", zap.String("feed", name))

	result, err := h.ingestService.IngestFeed(c.UserContext(), name)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INGEST_FAILED",
		})
	}

	if result == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: "feed not found",
			Code:  "FEED_NOT_FOUND",
		})
	}

	return c.JSON(dto.FromIngestResult(*result))
}

// GetFeeds handles GET /api/v1/admin/feeds
func (h *AdminHandler) GetFeeds(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"feeds": h.ingestService.FeedNames(),
	})
}
