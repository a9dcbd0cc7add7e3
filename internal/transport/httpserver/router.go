// Package httpserver provides HTTP server and routing.
package httpserver

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/template/html/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"docquery-service/internal/app/service"
	"docquery-service/internal/metrics"
	"docquery-service/internal/transport/httpserver/dto"
	"docquery-service/internal/transport/httpserver/handler"
	"docquery-service/internal/transport/httpserver/middleware"
	"docquery-service/internal/validator"
)

//go:embed web/templates
var templates embed.FS

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port            int
	BodyLimit       int
	DefaultRadiusKm float64
	SearchTimeout   time.Duration
	MetricsEnabled  bool
	MetricsPath     string
}

// Dependencies are the services the routes are served by.
type Dependencies struct {
	Search    *service.SearchService
	Ingest    *service.IngestService
	Catalog   handler.Catalog
	Counter   handler.CollectionCounter
	Validator *validator.Validator
	Readiness []middleware.ReadinessCheck
}

// Server wraps Fiber app with handlers.
type Server struct {
	App    *fiber.App
	Logger *zap.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(cfg ServerConfig, deps Dependencies, logger *zap.Logger) (*Server, error) {
	views, err := fs.Sub(templates, "web/templates")
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "docquery-service",
		BodyLimit:    cfg.BodyLimit,
		ErrorHandler: errorHandler(logger),
		Views:        html.NewFileSystem(http.FS(views), ".html"),
	})

	// Health checks go first so probes bypass the rest of the chain.
	app.Use(middleware.NewHealthCheck(deps.Readiness...))

	app.Use(requestid.New())
	app.Use(middleware.Recover(logger))
	app.Use(middleware.Logger(logger))
	if cfg.MetricsEnabled {
		app.Use(metrics.Middleware())
		app.Get(cfg.MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))
	}
	app.Use(cors.New())
	app.Use(compress.New())

	searchHandler := handler.NewSearchHandler(deps.Search, deps.Validator, cfg.DefaultRadiusKm, cfg.SearchTimeout, logger)
	adminHandler := handler.NewAdminHandler(deps.Ingest, logger)
	dashboardHandler := handler.NewDashboardHandler(deps.Catalog, deps.Counter, logger)

	registerRoutes(app, searchHandler, adminHandler, dashboardHandler)

	return &Server{
		App:    app,
		Logger: logger,
	}, nil
}

// registerRoutes sets up all API routes.
func registerRoutes(
	app *fiber.App,
	searchHandler *handler.SearchHandler,
	adminHandler *handler.AdminHandler,
	dashboardHandler *handler.DashboardHandler,
) {
	app.Get("/dashboard", dashboardHandler.Render)
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/dashboard")
	})

	v1 := app.Group("/api/v1")

	entities := v1.Group("/entities/:entity")
	entities.Get("/search", searchHandler.Search)
	entities.Get("/map", searchHandler.MapSearch)
	entities.Get("/near", searchHandler.Near)

	v1.Get("/jobs", searchHandler.Jobs)
	v1.Get("/parcels", searchHandler.Parcels)

	admin := v1.Group("/admin")
	admin.Post("/ingest", adminHandler.IngestAll)
	admin.Post("/ingest/:feed", adminHandler.IngestFeed)
	admin.Get("/feeds", adminHandler.GetFeeds)
}

// errorHandler logs unhandled errors by status: 404 at Debug, other 4xx at
// Warn and 5xx at Error.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		switch {
		case code == fiber.StatusNotFound:
			logger.Debug("resource not found",
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
			)
		case code >= 500:
			logger.Error("server error",
				zap.Error(err),
				zap.Int("status", code),
				zap.String("path", c.Path()),
			)
		default:
			logger.Warn("client error",
				zap.Error(err),
				zap.Int("status", code),
				zap.String("path", c.Path()),
			)
		}

		errCode := "UNHANDLED_ERROR"
		if code == fiber.StatusNotFound {
			errCode = "NOT_FOUND"
		}

		return c.Status(code).JSON(dto.ErrorResponse{
			Error: err.Error(),
			Code:  errCode,
		})
	}
}

// Start starts the HTTP server.
func (s *Server) Start(port int) error {
	s.Logger.Info("starting HTTP server", zap.Int("port", port))

	return s.App.Listen(fmt.Sprintf(":%d", port))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.Logger.Info("shutting down HTTP server")

	return s.App.Shutdown()
}
