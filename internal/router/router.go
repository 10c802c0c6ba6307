package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/artemis-ci-api/internal/config"
	"github.com/noah-isme/artemis-ci-api/internal/handler"
	"github.com/noah-isme/artemis-ci-api/internal/middleware"
	"github.com/noah-isme/artemis-ci-api/internal/observability"
)

const (
	buildPlanRateLimit  = 60
	buildPlanRateWindow = time.Minute
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	BuildResultHandler *handler.BuildResultHandler
	RealtimeHandler    *handler.RealtimeHandler
	BuildPlanHandler   *handler.BuildPlanHandler
	LtiOutcomeHandler  *handler.LtiOutcomeHandler
	HealthProbes       []handler.HealthProbe
	JWTMiddleware      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	v2 := app.Group("/api/v2")

	// CI and VCS notifications
	if deps.BuildResultHandler != nil {
		deps.BuildResultHandler.RegisterWebhooks(v2)
		deps.BuildResultHandler.RegisterQueries(v2.Group("/participations", jwtMiddleware))
	}

	// Realtime topics
	if deps.RealtimeHandler != nil {
		deps.RealtimeHandler.Register(v2.Group("/topic", jwtMiddleware))
	}

	// Instructor build plan management
	if deps.BuildPlanHandler != nil {
		plans := v2.Group("/build-plans",
			jwtMiddleware,
			middleware.RequireRole(middleware.InstructorRoles...),
			middleware.RateLimit("build-plans", buildPlanRateLimit, buildPlanRateWindow),
		)
		deps.BuildPlanHandler.Register(plans)
	}

	if deps.LtiOutcomeHandler != nil {
		deps.LtiOutcomeHandler.Register(v2.Group("/lti", jwtMiddleware, middleware.RequireRole(middleware.InstructorRoles...)))
	}
}
