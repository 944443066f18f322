package handler

import (
	"log"
	"strings"
	"time"

	"city-pulse/internal/config"
	"city-pulse/internal/delivery/http/middleware"
	"city-pulse/internal/domain"
	"city-pulse/internal/repository"
	"city-pulse/internal/source"

	"github.com/gofiber/fiber/v3"
)

type IngestItem struct {
	ExternalID  string     `json:"external_id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	URL         string     `json:"url"`
	Signal      float64    `json:"signal"`
	PublishedAt *time.Time `json:"published_at"`
}

type IngestCompletedRequest struct {
	SourceID     string       `json:"source_id"`
	Outcome      string       `json:"outcome"`
	ItemsCreated int          `json:"items_created"`
	ItemsSkipped int          `json:"items_skipped"`
	ItemsFailed  int          `json:"items_failed"`
	Error        string       `json:"error"`
	Items        []IngestItem `json:"items"`
}

// IngestCompletedHandler receives the collector's completion callback for
// scheduled (non-healing) ingestion runs: it persists the reported items
// and records the run in the ledger so freshness stays observable.
type IngestCompletedHandler struct {
	cfg      config.CollectorConfig
	registry *source.Registry
	ledger   repository.JobRunRepository
	items    repository.ContentItemRepository
	logger   *log.Logger
}

func NewIngestCompletedHandler(
	cfg config.CollectorConfig,
	registry *source.Registry,
	ledger repository.JobRunRepository,
	items repository.ContentItemRepository,
	logger *log.Logger,
) *IngestCompletedHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &IngestCompletedHandler{cfg: cfg, registry: registry, ledger: ledger, items: items, logger: logger}
}

func (h *IngestCompletedHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Post("/collector/completed", h.Handle)
}

func (h *IngestCompletedHandler) Handle(c fiber.Ctx) error {
	tok := strings.TrimSpace(c.Get("X-Internal-Token"))
	if tok == "" || tok != h.cfg.InternalToken {
		return middleware.NewAppError(fiber.StatusUnauthorized, "Unauthorized", nil, nil)
	}

	var req IngestCompletedRequest
	if err := c.Bind().Body(&req); err != nil {
		return middleware.NewAppError(fiber.StatusBadRequest, "Bad request", nil, err)
	}

	req.SourceID = strings.TrimSpace(req.SourceID)
	src, err := h.registry.Get(req.SourceID)
	if err != nil {
		return middleware.NewAppError(fiber.StatusNotFound, "Unknown source", nil, err)
	}

	outcome := domain.RunSuccess
	if strings.EqualFold(strings.TrimSpace(req.Outcome), string(domain.RunFailure)) {
		outcome = domain.RunFailure
	}

	if len(req.Items) > 0 {
		items := make([]domain.ContentItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, domain.ContentItem{
				SourceID:    src.ID,
				ExternalID:  strings.TrimSpace(it.ExternalID),
				Title:       strings.TrimSpace(it.Title),
				Body:        it.Body,
				URL:         strings.TrimSpace(it.URL),
				Signal:      it.Signal,
				PublishedAt: it.PublishedAt,
			})
		}
		if err := h.items.UpsertItems(c.Context(), items); err != nil {
			h.logger.Printf("ingest_completed source=%s op=upsert status=error err=%v", src.ID, err)
			return middleware.NewAppError(fiber.StatusInternalServerError, "", nil, err)
		}
	}

	stats := domain.RunStats{
		ItemsProcessed: req.ItemsCreated + req.ItemsSkipped,
		ItemsFailed:    req.ItemsFailed,
	}
	// Ledger write is best-effort: the ingestion already happened.
	if err := h.ledger.Record(c.Context(), src.IngestRef, outcome, stats, strings.TrimSpace(req.Error)); err != nil {
		h.logger.Printf("ingest_completed source=%s op=ledger status=error err=%v", src.ID, err)
	}

	h.logger.Printf("ingest_completed source=%s outcome=%s created=%d skipped=%d failed=%d",
		src.ID, outcome, req.ItemsCreated, req.ItemsSkipped, req.ItemsFailed)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "recorded",
		"source": src.ID,
	})
}
