package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/rcrt-io/rcrt/internal/types"
)

const breadcrumbColumns = `
	id, owner_id, schema_name, title, tags, context, llm_hints, ttl, ttl_type,
	ttl_config, read_count, ttl_source, embedding, version, trigger_event_id,
	created_at, updated_at
`

func scanBreadcrumb(row pgx.Row) (*types.Breadcrumb, error) {
	var b types.Breadcrumb
	var schemaName, ttlConfig, llmHints *string
	var context_ []byte
	var ttl *time.Time
	var trigger *uuid.UUID
	var vec *pgvector.Vector

	err := row.Scan(
		&b.ID, &b.OwnerID, &schemaName, &b.Title, &b.Tags, &context_, &llmHints,
		&ttl, &b.TTLType, &ttlConfig, &b.ReadCount, &b.TTLSource, &vec,
		&b.Version, &trigger, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if schemaName != nil {
		b.SchemaName = *schemaName
	}
	b.Context = context_
	if llmHints != nil {
		b.LlmHints = json.RawMessage(*llmHints)
	}
	if ttlConfig != nil {
		b.TTLConfig = json.RawMessage(*ttlConfig)
	}
	b.TTL = ttl
	b.TriggerEventID = trigger
	if vec != nil {
		b.Embedding = vec.Slice()
	}
	return &b, nil
}

// CreateBreadcrumb inserts a new row at version 1. Callers are
// responsible for embedding, TTL resolution, and ACL/edge rows being
// applied in the same logical write (the breadcrumb service composes
// those in Service.Create).
func (s *Store) CreateBreadcrumb(ctx context.Context, b *types.Breadcrumb) error {
	var vec *pgvector.Vector
	if len(b.Embedding) > 0 {
		v := pgvector.NewVector(b.Embedding)
		vec = &v
	}
	_, err := s.exec(ctx, `
		INSERT INTO breadcrumbs (id, owner_id, schema_name, title, tags, context,
			llm_hints, ttl, ttl_type, ttl_config, read_count, ttl_source, embedding,
			version, trigger_event_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, b.ID, b.OwnerID, nullStr(b.SchemaName), b.Title, b.Tags, rawOrEmpty(b.Context),
		rawOrNil(b.LlmHints), b.TTL, string(b.TTLType), rawOrNil(b.TTLConfig), b.ReadCount,
		string(b.TTLSource), vec, b.Version, b.TriggerEventID, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert breadcrumb: %w", err)
	}
	return nil
}

// GetBreadcrumb loads a row scoped to ownerID, per the tenant-isolation
// invariant I5.
func (s *Store) GetBreadcrumb(ctx context.Context, ownerID, id uuid.UUID) (*types.Breadcrumb, error) {
	var out *types.Breadcrumb
	err := s.queryRow(ctx, `SELECT `+breadcrumbColumns+` FROM breadcrumbs WHERE id=$1 AND owner_id=$2`,
		[]interface{}{id, ownerID}, func(row pgx.Row) error {
			b, err := scanBreadcrumb(row)
			if err != nil {
				return err
			}
			out = b
			return nil
		})
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("get breadcrumb: %w", err)
	}
	return out, nil
}

// PatchBreadcrumb applies an optimistic-concurrency update: the row is
// only touched when its current version equals expectedVersion.
// rowsAffected == 0 means a stale If-Match, per invariant I2.
func (s *Store) PatchBreadcrumb(ctx context.Context, b *types.Breadcrumb, expectedVersion int64) (bool, error) {
	var vec *pgvector.Vector
	if len(b.Embedding) > 0 {
		v := pgvector.NewVector(b.Embedding)
		vec = &v
	}
	n, err := s.exec(ctx, `
		UPDATE breadcrumbs SET
			title=$1, tags=$2, context=$3, llm_hints=$4, ttl=$5, ttl_type=$6,
			ttl_config=$7, ttl_source=$8, embedding=$9, version=$10,
			trigger_event_id=$11, updated_at=$12
		WHERE id=$13 AND owner_id=$14 AND version=$15
	`, b.Title, b.Tags, rawOrEmpty(b.Context), rawOrNil(b.LlmHints), b.TTL, string(b.TTLType),
		rawOrNil(b.TTLConfig), string(b.TTLSource), vec, b.Version, b.TriggerEventID,
		b.UpdatedAt, b.ID, b.OwnerID, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("patch breadcrumb: %w", err)
	}
	return n == 1, nil
}

// IncrementReadCount bumps read_count atomically and returns the new
// value, used by the Read-context operation for usage/hybrid TTL
// records.
func (s *Store) IncrementReadCount(ctx context.Context, ownerID, id uuid.UUID) (int64, error) {
	var newCount int64
	err := s.queryRow(ctx, `
		UPDATE breadcrumbs SET read_count = read_count + 1
		WHERE id=$1 AND owner_id=$2
		RETURNING read_count
	`, []interface{}{id, ownerID}, func(row pgx.Row) error {
		return row.Scan(&newCount)
	})
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, types.ErrNotFound
		}
		return 0, fmt.Errorf("increment read_count: %w", err)
	}
	return newCount, nil
}

// DeleteBreadcrumbFull hard-removes a row, its ACLs, and its edges.
func (s *Store) DeleteBreadcrumbFull(ctx context.Context, ownerID, id uuid.UUID) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM breadcrumbs WHERE id=$1 AND owner_id=$2`, id, ownerID)
		if err != nil {
			return fmt.Errorf("delete breadcrumb: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return types.ErrNotFound
		}
		// breadcrumb_acl and breadcrumb_edges cascade via FK ON DELETE CASCADE.
		return nil
	})
}

// ListFilter holds the AND-combined filters for the list endpoint.
type ListFilter struct {
	OwnerID    uuid.UUID
	SchemaName string
	Tag        string
	Limit      int
}

// List returns summaries ordered by updated_at desc, id asc, per §4.5.
func (s *Store) List(ctx context.Context, f ListFilter) ([]types.Summary, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 2000 {
		limit = 2000
	}
	q := `SELECT id, title, tags, schema_name, version, created_at, updated_at
		FROM breadcrumbs WHERE owner_id=$1`
	args := []interface{}{f.OwnerID}
	if f.SchemaName != "" {
		args = append(args, f.SchemaName)
		q += fmt.Sprintf(" AND schema_name=$%d", len(args))
	}
	if f.Tag != "" {
		args = append(args, f.Tag)
		q += fmt.Sprintf(" AND $%d = ANY(tags)", len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(" ORDER BY updated_at DESC, id ASC LIMIT $%d", len(args))

	var out []types.Summary
	err := s.query(ctx, q, args, func(rows pgx.Rows) error {
		for rows.Next() {
			var sum types.Summary
			var schemaName *string
			if err := rows.Scan(&sum.ID, &sum.Title, &sum.Tags, &schemaName, &sum.Version, &sum.CreatedAt, &sum.UpdatedAt); err != nil {
				return err
			}
			if schemaName != nil {
				sum.SchemaName = *schemaName
			}
			out = append(out, sum)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list breadcrumbs: %w", err)
	}
	return out, nil
}

// SearchFilter holds the kNN search parameters from §4.5.
type SearchFilter struct {
	OwnerID    uuid.UUID
	Query      []float32
	NN         int
	SchemaName string
	Tag        string
}

// SearchResult pairs a summary with its cosine distance for ordering
// and client visibility.
type SearchResult struct {
	Summary  types.Summary
	Distance float64
}

// Search runs the kNN cosine-distance query described in §4.5: null or
// zero-vector embeddings are excluded unless no other match exists.
func (s *Store) Search(ctx context.Context, f SearchFilter) ([]SearchResult, error) {
	nn := f.NN
	if nn <= 0 {
		nn = 10
	}
	if nn > 100 {
		nn = 100
	}
	vec := pgvector.NewVector(f.Query)

	run := func(excludeZero bool) ([]SearchResult, error) {
		q := `SELECT id, title, tags, schema_name, version, created_at, updated_at,
			embedding <=> $1 AS distance
			FROM breadcrumbs
			WHERE owner_id=$2 AND embedding IS NOT NULL`
		args := []interface{}{vec, f.OwnerID}
		if excludeZero {
			q += ` AND embedding <> $3`
			zero := pgvector.NewVector(make([]float32, types.EmbeddingDims))
			args = append(args, zero)
		}
		if f.SchemaName != "" {
			args = append(args, f.SchemaName)
			q += fmt.Sprintf(" AND schema_name=$%d", len(args))
		}
		if f.Tag != "" {
			args = append(args, f.Tag)
			q += fmt.Sprintf(" AND $%d = ANY(tags)", len(args))
		}
		args = append(args, nn)
		q += fmt.Sprintf(" ORDER BY distance ASC, updated_at DESC, id ASC LIMIT $%d", len(args))

		var out []SearchResult
		err := s.query(ctx, q, args, func(rows pgx.Rows) error {
			for rows.Next() {
				var r SearchResult
				var schemaName *string
				if err := rows.Scan(&r.Summary.ID, &r.Summary.Title, &r.Summary.Tags, &schemaName,
					&r.Summary.Version, &r.Summary.CreatedAt, &r.Summary.UpdatedAt, &r.Distance); err != nil {
					return err
				}
				if schemaName != nil {
					r.Summary.SchemaName = *schemaName
				}
				out = append(out, r)
			}
			return rows.Err()
		})
		return out, err
	}

	results, err := run(true)
	if err != nil {
		return nil, fmt.Errorf("search breadcrumbs: %w", err)
	}
	if len(results) == 0 {
		// Fall back to zero-vector matches only when nothing else
		// matched, per §4.5's "returned only if no other matches exist".
		results, err = run(false)
		if err != nil {
			return nil, fmt.Errorf("search breadcrumbs fallback: %w", err)
		}
	}
	return results, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func rawOrNil(r json.RawMessage) *string {
	if len(r) == 0 {
		return nil
	}
	s := string(r)
	return &s
}

func rawOrEmpty(r json.RawMessage) string {
	if len(r) == 0 {
		return "{}"
	}
	return string(r)
}
