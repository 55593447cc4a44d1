package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// IdempotentResult is the dedupe row for an Idempotency-Key: the id of
// the breadcrumb the first request created and a hash of that request's
// body. A retry is answered by re-reading that breadcrumb, so it carries
// the record's current version; the original response is not stored.
type IdempotentResult struct {
	BreadcrumbID uuid.UUID
	ResponseHash string
}

// GetIdempotent looks up a prior response for (ownerID, key). A miss is
// not an error: the caller proceeds to create a new row.
func (s *Store) GetIdempotent(ctx context.Context, ownerID uuid.UUID, key string) (*IdempotentResult, error) {
	var out IdempotentResult
	err := s.queryRow(ctx, `
		SELECT breadcrumb_id, response_hash FROM idempotency_keys
		WHERE owner_id=$1 AND idempotency_key=$2
	`, []interface{}{ownerID, key}, func(row pgx.Row) error {
		return row.Scan(&out.BreadcrumbID, &out.ResponseHash)
	})
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	return &out, nil
}

// PutIdempotent records the dedupe-table entry described in §4.1: a
// 10-minute-TTL side table keyed by the client-supplied key, swept by
// the hygiene worker.
func (s *Store) PutIdempotent(ctx context.Context, ownerID uuid.UUID, key string, breadcrumbID uuid.UUID, responseHash string) error {
	_, err := s.exec(ctx, `
		INSERT INTO idempotency_keys (owner_id, idempotency_key, breadcrumb_id, response_hash, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, ownerID, key, breadcrumbID, responseHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put idempotency key: %w", err)
	}
	return nil
}

// SweepExpiredIdempotencyKeys deletes dedupe rows older than ttl,
// called from the hygiene worker's periodic loop.
func (s *Store) SweepExpiredIdempotencyKeys(ctx context.Context, ttl time.Duration) (int64, error) {
	n, err := s.exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, time.Now().UTC().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("sweep idempotency keys: %w", err)
	}
	return n, nil
}
