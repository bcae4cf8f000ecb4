// Package server exposes the ops HTTP surface: health, metrics, the feeds
// kept current by the engagement jobs, and admin job triggers.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"pulse/internal/config"
	"pulse/internal/middleware"
	"pulse/internal/models"
	"pulse/internal/observability"
	"pulse/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const defaultPageSize = 20

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// httpMetrics returns the process-wide HTTP metrics middleware. Its
// collectors live in the default registry and may only be created once.
func httpMetrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New("pulse")
	})
	return prom
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server holds the HTTP app and the services behind it.
type Server struct {
	config *config.Config
	app    *fiber.App
	feed   *service.FeedService
	jobs   *service.EngagementService
	checks map[string]HealthCheck
}

// NewServer builds the app with all middleware and routes installed.
func NewServer(cfg *config.Config, feed *service.FeedService, jobs *service.EngagementService, checks map[string]HealthCheck) *Server {
	s := &Server{
		config: cfg,
		feed:   feed,
		jobs:   jobs,
		checks: checks,
	}

	app := fiber.New(fiber.Config{
		AppName:               "pulse",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return models.RespondWithError(c, fe.Code, models.NewValidationError(fe.Message))
			}
			observability.GlobalLogger.ErrorContext(c.UserContext(), "unhandled request error", "error", err.Error())
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return s
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	p := httpMetrics()
	p.RegisterAt(app, "/metrics")
	app.Use(p.Middleware)

	app.Use(middleware.StructuredLogger())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)

	api := app.Group("/api")
	api.Get("/posts/hot", s.GetHotPosts)
	api.Get("/users/leaderboard", s.GetLeaderboard)

	jobs := api.Group("/jobs", middleware.AuthRequired(s.config.JWTSecret), middleware.AdminRequired())
	jobs.Post("/hourly", s.TriggerHourly)
	jobs.Post("/daily", s.TriggerDaily)
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	observability.GlobalLogger.Info("ops server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// HealthCheck reports the reachability of every registered dependency.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	status := fiber.StatusOK
	overall := "healthy"
	checks := fiber.Map{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			checks[name] = "unhealthy"
			status = fiber.StatusServiceUnavailable
			overall = "unhealthy"
			continue
		}
		checks[name] = "healthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}
