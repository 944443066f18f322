package app

import (
	"fmt"
	"strings"

	"city-pulse/internal/delivery/http/handler"
	"city-pulse/internal/delivery/http/middleware"
	"city-pulse/internal/delivery/http/routes"
	"city-pulse/internal/pkg/jwt"
	"city-pulse/internal/usecase/auth"
	"city-pulse/internal/ws"

	"github.com/gofiber/fiber/v3"
)

type App struct {
	Fiber *fiber.App
	Hub   *ws.Hub
}

// Bootstrap assembles the HTTP app over an initialized container and
// returns it with a cleanup func.
func Bootstrap(c *Container) (*App, func() error, error) {
	if c == nil {
		return nil, nil, fmt.Errorf("nil container")
	}

	f := fiber.New(fiber.Config{AppName: c.Config.App.AppName})

	errMw := middleware.NewErrorMiddleware()
	f.Use(errMw.Middleware())
	accessMw := middleware.NewAccessLogMiddleware(c.Log)
	f.Use(accessMw.Middleware())

	jwtSvc := jwt.NewHMACService(
		c.Config.Auth.JWTAccessSecret,
		c.Config.Auth.JWTRefreshSecret,
		c.Config.Auth.AccessExpiresIn,
		c.Config.Auth.RefreshExpiresIn,
	)
	authSvc := auth.NewService(c.Config.Auth, jwtSvc)
	authMw := middleware.NewAuthMiddleware(jwtSvc)

	hub := ws.NewHub(c.Log)
	go hub.Run()
	c.Orchestrator.SetNotifier(ws.NewPassNotifier(hub))

	reg := &routes.Registry{
		Health:          handler.NewHealthHandler(c.DB, c.Redis),
		Auth:            handler.NewAuthHandler(authSvc),
		Orchestrator:    handler.NewOrchestratorHandler(c.Orchestrator, c.Redis, c.Log),
		IngestCompleted: handler.NewIngestCompletedHandler(c.Config.Collector, c.Registry, c.JobRuns, c.Items, c.Log),
		PassFeed:        ws.NewHandler(hub, c.Log),
		AuthMiddleware:  authMw.Middleware(),
	}
	reg.Register(f)

	app := &App{Fiber: f, Hub: hub}
	return app, func() error { return nil }, nil
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
