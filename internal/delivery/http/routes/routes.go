package routes

import (
	"city-pulse/internal/delivery/http/handler"
	"city-pulse/internal/ws"

	"github.com/gofiber/fiber/v3"
)

type Registry struct {
	Health          *handler.HealthHandler
	Auth            *handler.AuthHandler
	Orchestrator    *handler.OrchestratorHandler
	IngestCompleted *handler.IngestCompletedHandler
	PassFeed        *ws.Handler

	AuthMiddleware fiber.Handler
}

func (r *Registry) Register(app *fiber.App) {
	if r == nil || app == nil {
		return
	}

	if r.Health != nil {
		r.Health.RegisterRoutes(app)
	}

	api := app.Group("/api")
	v1 := api.Group("/v1")

	if r.Auth != nil {
		r.Auth.RegisterRoutes(v1)
	}
	if r.Orchestrator != nil {
		r.Orchestrator.RegisterRoutes(v1, r.AuthMiddleware)
	}
	if r.IngestCompleted != nil {
		r.IngestCompleted.RegisterRoutes(v1)
	}
	if r.PassFeed != nil {
		v1.Get("/orchestrator/feed", r.PassFeed.HandlePassFeed)
	}
}
