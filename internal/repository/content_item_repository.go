package repository

import (
	"context"
	"errors"

	"city-pulse/internal/database"
	"city-pulse/internal/domain"
)

type ContentItemRepository interface {
	CountBySource(ctx context.Context, sourceID string) (int, error)
	ListRecentBySource(ctx context.Context, sourceID string, limit int) ([]domain.ContentItem, error)
	UpsertItems(ctx context.Context, items []domain.ContentItem) error
}

type PostgresContentItemRepository struct {
	db database.DB
}

func NewPostgresContentItemRepository(db database.DB) *PostgresContentItemRepository {
	return &PostgresContentItemRepository{db: db}
}

func (r *PostgresContentItemRepository) CountBySource(ctx context.Context, sourceID string) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("nil db")
	}
	row := r.db.QueryRow(ctx,
		`SELECT COALESCE(COUNT(1), 0) FROM content_items WHERE source_id = $1`,
		sourceID,
	)
	var c int
	if err := row.Scan(&c); err != nil {
		return 0, err
	}
	return c, nil
}

func (r *PostgresContentItemRepository) ListRecentBySource(ctx context.Context, sourceID string, limit int) ([]domain.ContentItem, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("nil db")
	}
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := r.db.Query(ctx,
		`SELECT source_id, external_id, title, COALESCE(body, ''), COALESCE(url, ''), signal, published_at, ingested_at
		 FROM content_items
		 WHERE source_id = $1
		 ORDER BY ingested_at DESC
		 LIMIT $2`,
		sourceID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ContentItem, 0)
	for rows.Next() {
		var it domain.ContentItem
		if err := rows.Scan(&it.SourceID, &it.ExternalID, &it.Title, &it.Body, &it.URL, &it.Signal, &it.PublishedAt, &it.IngestedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertItems deduplicates by (source_id, external_id); the newest payload
// wins. Collectors may report the same item repeatedly across runs.
func (r *PostgresContentItemRepository) UpsertItems(ctx context.Context, items []domain.ContentItem) error {
	if r == nil || r.db == nil {
		return errors.New("nil db")
	}

	var firstErr error
	for _, it := range items {
		if it.SourceID == "" || it.ExternalID == "" {
			continue
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO content_items (source_id, external_id, title, body, url, signal, published_at)
			 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
			 ON CONFLICT (source_id, external_id) DO UPDATE
			 SET title = EXCLUDED.title,
			     body = EXCLUDED.body,
			     url = EXCLUDED.url,
			     signal = EXCLUDED.signal,
			     published_at = EXCLUDED.published_at,
			     ingested_at = now()`,
			it.SourceID, it.ExternalID, it.Title, it.Body, it.URL, it.Signal, it.PublishedAt,
		)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
