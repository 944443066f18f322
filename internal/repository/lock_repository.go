package repository

import (
	"context"
	"errors"
	"time"

	"city-pulse/internal/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LockRepository is a lease-based mutual-exclusion primitive keyed by job
// name. Acquire returns an empty token when another live lease holds the
// key; it never blocks.
type LockRepository interface {
	Acquire(ctx context.Context, key string, lease time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}

type PostgresLockRepository struct {
	db database.DB
}

func NewPostgresLockRepository(db database.DB) *PostgresLockRepository {
	return &PostgresLockRepository{db: db}
}

// Acquire is a single atomic conditional write: insert the lease, or take
// over the row only when the previous lease has expired. A read-then-write
// sequence would race between two callers.
func (r *PostgresLockRepository) Acquire(ctx context.Context, key string, lease time.Duration) (string, error) {
	if r == nil || r.db == nil {
		return "", errors.New("nil db")
	}
	if lease <= 0 {
		lease = time.Minute
	}

	token := uuid.New()
	row := r.db.QueryRow(ctx,
		`INSERT INTO job_locks (lock_key, holder_token, acquired_at, expires_at)
		 VALUES ($1, $2, now(), now() + $3::bigint * interval '1 second')
		 ON CONFLICT (lock_key) DO UPDATE
		 SET holder_token = EXCLUDED.holder_token,
		     acquired_at = EXCLUDED.acquired_at,
		     expires_at = EXCLUDED.expires_at
		 WHERE job_locks.expires_at <= now()
		 RETURNING holder_token`,
		key, token, int64(lease/time.Second),
	)

	var got uuid.UUID
	if err := row.Scan(&got); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Live lease held elsewhere.
			return "", nil
		}
		return "", err
	}
	return got.String(), nil
}

// Release deletes the lease only when the token still matches, so a caller
// whose lease expired and was re-acquired elsewhere cannot release the new
// holder's lock.
func (r *PostgresLockRepository) Release(ctx context.Context, key, token string) error {
	if r == nil || r.db == nil {
		return errors.New("nil db")
	}
	if token == "" {
		return nil
	}
	tok, err := uuid.Parse(token)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx,
		`DELETE FROM job_locks WHERE lock_key = $1 AND holder_token = $2`,
		key, tok,
	)
	return err
}
