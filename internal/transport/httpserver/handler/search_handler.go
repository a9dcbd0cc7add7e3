// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"docquery-service/internal/app/service"
	"docquery-service/internal/domain"
	"docquery-service/internal/transport/httpserver/dto"
	"docquery-service/internal/validator"
)

// Parcel endpoints search this entity.
const (
	ParcelEntity    = "parcels"
	ParcelStatusKey = "parcelStatus"
	OpenParcelState = "booked"
)

// SearchHandler handles search-related HTTP requests.
type SearchHandler struct {
	service         *service.SearchService
	validator       *validator.Validator
	defaultRadiusKm float64
	timeout         time.Duration
	logger          *zap.Logger
}

// NewSearchHandler creates a new SearchHandler. defaultRadiusKm applies to
// near searches that give no radius. Searches running longer than timeout
// are cancelled; zero leaves them unbounded.
func NewSearchHandler(svc *service.SearchService, v *validator.Validator, defaultRadiusKm float64, timeout time.Duration, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{
		service:         svc,
		validator:       v,
		defaultRadiusKm: defaultRadiusKm,
		timeout:         timeout,
		logger:          logger,
	}
}

// context bounds a search by the handler timeout. fasthttp does not cancel
// the request context when the client goes away.
func (h *SearchHandler) context(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), h.timeout)
}

// Search handles GET /api/v1/entities/:entity/search
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	desc, err := h.service.Descriptor(c.Params("entity"))
	if err != nil {
		return respondError(c, err)
	}

	ctx, cancel := h.context(c)
	defer cancel()

	page, err := h.service.Search(ctx, desc, queryParams(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.FromResultPage(page))
}

// MapSearch handles GET /api/v1/entities/:entity/map
func (h *SearchHandler) MapSearch(c *fiber.Ctx) error {
	desc, err := h.service.Descriptor(c.Params("entity"))
	if err != nil {
		return respondError(c, err)
	}

	ctx, cancel := h.context(c)
	defer cancel()

	page, err := h.service.MapSearch(ctx, desc, queryParams(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.FromResultPage(page))
}

// Near handles GET /api/v1/entities/:entity/near
func (h *SearchHandler) Near(c *fiber.Ctx) error {
	page, err := h.near(c, c.Params("entity"), queryParams(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.FromResultPage(page))
}

// Jobs handles GET /api/v1/jobs: booked parcels around the caller.
func (h *SearchHandler) Jobs(c *fiber.Ctx) error {
	params := queryParams(c)
	params.Set(ParcelStatusKey, OpenParcelState)

	page, err := h.near(c, ParcelEntity, params)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.JobsResponse{
		Message: "ok",
		Jobs:    dto.FromResultPage(page),
	})
}

// Parcels handles GET /api/v1/parcels
func (h *SearchHandler) Parcels(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()

	page, err := h.service.SearchEntity(ctx, ParcelEntity, queryParams(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.FromResultPage(page))
}

func (h *SearchHandler) near(c *fiber.Ctx, entity string, params domain.Params) (*domain.ResultPage, error) {
	desc, err := h.service.Descriptor(entity)
	if err != nil {
		return nil, err
	}

	var req dto.NearRequest
	if err := c.QueryParser(&req); err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")
	}
	if err := h.validator.Validate(&req); err != nil {
		return nil, err
	}

	radius := req.RadiusOr(h.defaultRadiusKm)
	h.logger.Debug("near search",
		zap.String("entity", entity),
		zap.Float64("lat", *req.Lat),
		zap.Float64("lon", *req.Lon),
		zap.Float64("radius_km", radius),
	)

	ctx, cancel := h.context(c)
	defer cancel()

	return h.service.MapSearchStart(ctx, desc, params, req.Center(), radius)
}
