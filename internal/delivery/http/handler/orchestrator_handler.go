package handler

import (
	"context"
	"errors"
	"log"
	"time"

	"city-pulse/internal/delivery/http/middleware"
	"city-pulse/internal/domain"
	"city-pulse/internal/orchestrator"
	"city-pulse/internal/pkg/response"
	"city-pulse/internal/source"

	"github.com/gofiber/fiber/v3"
)

type orchestratorService interface {
	RunStatus(ctx context.Context) (*domain.ReadinessReport, error)
	RunAutoHeal(ctx context.Context) (*domain.ReadinessReport, error)
	RunForce(ctx context.Context, sourceIDs ...string) (*domain.ReadinessReport, error)
	EnsureReady(ctx context.Context) (*domain.ReadinessReport, error)
}

type snapshotReader interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
}

type OrchestratorHandler struct {
	svc   orchestratorService
	cache snapshotReader
	log   *log.Logger
}

func NewOrchestratorHandler(svc orchestratorService, cache snapshotReader, logger *log.Logger) *OrchestratorHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &OrchestratorHandler{svc: svc, cache: cache, log: logger}
}

// RegisterRoutes wires the operator surface. Reads are open; heal and
// force mutate state and sit behind the auth middleware.
func (h *OrchestratorHandler) RegisterRoutes(r fiber.Router, authMw fiber.Handler) {
	if r == nil {
		return
	}
	r.Get("/orchestrator/status", h.Status)
	r.Get("/digest/ready", h.Ready)
	if authMw != nil {
		r.Post("/orchestrator/heal", h.Heal, authMw)
		r.Post("/orchestrator/force", h.Force, authMw)
	} else {
		r.Post("/orchestrator/heal", h.Heal)
		r.Post("/orchestrator/force", h.Force)
	}
}

// Status serves the latest cached pass report when available, falling back
// to a fresh read-only pass. Either way there are no side effects, so it
// is safe to poll at high frequency.
func (h *OrchestratorHandler) Status(c fiber.Ctx) error {
	if h.cache != nil {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		var cached domain.ReadinessReport
		found, err := h.cache.GetJSON(ctx, orchestrator.SnapshotKey, &cached)
		cancel()
		if err == nil && found {
			return response.Success(c, fiber.StatusOK, response.MessageOK, cached)
		}
	}

	report, err := h.svc.RunStatus(c.Context())
	if err != nil {
		return middleware.NewAppError(fiber.StatusInternalServerError, "", nil, err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, report)
}

func (h *OrchestratorHandler) Heal(c fiber.Ctx) error {
	if authCtx, ok := middleware.AuthContextFrom(c); ok {
		h.log.Printf("orchestrator op=heal operator=%s", authCtx.Operator)
	}

	report, err := h.svc.RunAutoHeal(c.Context())
	if err != nil {
		return middleware.NewAppError(fiber.StatusInternalServerError, "", nil, err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, report)
}

type forceRequest struct {
	Sources []string `json:"sources"`
}

func (h *OrchestratorHandler) Force(c fiber.Ctx) error {
	var req forceRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
		}
	}
	if authCtx, ok := middleware.AuthContextFrom(c); ok {
		h.log.Printf("orchestrator op=force operator=%s sources=%v", authCtx.Operator, req.Sources)
	}

	report, err := h.svc.RunForce(c.Context(), req.Sources...)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return middleware.NewAppError(fiber.StatusNotFound, "Unknown source", nil, err)
		}
		return middleware.NewAppError(fiber.StatusInternalServerError, "", nil, err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, report)
}

// Ready is the digest consumer's gate. Consumers must key off the ready
// boolean and errors list only; a false verdict means do not render at all.
func (h *OrchestratorHandler) Ready(c fiber.Ctx) error {
	report, err := h.svc.EnsureReady(c.Context())
	if err != nil {
		return middleware.NewAppError(fiber.StatusInternalServerError, "", nil, err)
	}
	return response.Success(c, fiber.StatusOK, response.MessageOK, report)
}
