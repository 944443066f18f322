package handler

import (
	"context"
	"time"

	"city-pulse/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    pinger
	redis pinger
}

func NewHealthHandler(db, redis pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) RegisterRoutes(app *fiber.App) {
	if app == nil {
		return
	}
	app.Get("/health", h.Handle)
}

func (h *HealthHandler) Handle(c fiber.Ctx) error {
	data := fiber.Map{
		"database": h.ping(c, h.db),
		"redis":    h.ping(c, h.redis),
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, data)
}

func (h *HealthHandler) ping(c fiber.Ctx, p pinger) bool {
	if p == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()
	return p.Ping(ctx) == nil
}
