package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/rcrt-io/rcrt/internal/types"
)

// InsertEdges writes a batch of edges for a breadcrumb write, ignoring
// duplicates (the primary key is (from_id, to_id, edge_type)).
func (s *Store) InsertEdges(ctx context.Context, edges []types.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		for _, e := range edges {
			_, err := tx.Exec(ctx, `
				INSERT INTO breadcrumb_edges (from_id, to_id, edge_type, weight, aux)
				VALUES ($1,$2,$3,$4,$5)
				ON CONFLICT (from_id, to_id, edge_type) DO UPDATE SET weight=EXCLUDED.weight, aux=EXCLUDED.aux
			`, e.FromID, e.ToID, string(e.EdgeType), e.Weight, rawOrNil(e.Aux))
			if err != nil {
				return fmt.Errorf("insert edge %s->%s: %w", e.FromID, e.ToID, err)
			}
		}
		return nil
	})
}

// NearestTemporalNeighbor finds the nearest-in-time breadcrumb sharing
// (owner_id, schema_name) within window, excluding self, per §3's
// temporal edge rule.
func (s *Store) NearestTemporalNeighbor(ctx context.Context, ownerID uuid.UUID, schemaName string, at time.Time, window time.Duration, excludeID uuid.UUID) (uuid.UUID, bool, error) {
	var id uuid.UUID
	var found bool
	err := s.queryRow(ctx, `
		SELECT id FROM breadcrumbs
		WHERE owner_id=$1 AND schema_name=$2 AND id<>$3
			AND created_at BETWEEN $4 AND $5
		ORDER BY abs(extract(epoch FROM created_at - $6))
		LIMIT 1
	`, []interface{}{ownerID, schemaName, excludeID, at.Add(-window), at.Add(window), at},
		func(row pgx.Row) error {
			err := row.Scan(&id)
			if err == nil {
				found = true
			}
			return err
		})
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("nearest temporal neighbor: %w", err)
	}
	return id, found, nil
}

// TagNeighbors returns ids of breadcrumbs in the same owner sharing at
// least minShared tags with tags, excluding excludeID, per §3's tag
// edge rule (K configurable).
func (s *Store) TagNeighbors(ctx context.Context, ownerID, excludeID uuid.UUID, tags []string, minShared int) ([]uuid.UUID, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	var out []uuid.UUID
	err := s.query(ctx, `
		SELECT id FROM breadcrumbs
		WHERE owner_id=$1 AND id<>$2
			AND cardinality(ARRAY(SELECT unnest(tags) INTERSECT SELECT unnest($3::text[]))) >= $4
	`, []interface{}{ownerID, excludeID, tags, minShared}, func(rows pgx.Rows) error {
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			out = append(out, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("tag neighbors: %w", err)
	}
	return out, nil
}

// SemanticNeighbor is a candidate semantic edge target with its cosine
// similarity to the source embedding.
type SemanticNeighbor struct {
	ID         uuid.UUID
	Similarity float64
}

// SemanticNeighbors returns the top-M cosine neighbors of embedding
// above threshold similarity, excluding excludeID, per §3's semantic
// edge rule.
func (s *Store) SemanticNeighbors(ctx context.Context, ownerID, excludeID uuid.UUID, embedding []float32, topM int, threshold float64) ([]SemanticNeighbor, error) {
	vec := pgvector.NewVector(embedding)
	var out []SemanticNeighbor
	err := s.query(ctx, `
		SELECT id, 1 - (embedding <=> $1) AS similarity
		FROM breadcrumbs
		WHERE owner_id=$2 AND id<>$3 AND embedding IS NOT NULL
			AND 1 - (embedding <=> $1) >= $4
		ORDER BY similarity DESC
		LIMIT $5
	`, []interface{}{vec, ownerID, excludeID, threshold, topM}, func(rows pgx.Rows) error {
		for rows.Next() {
			var n SemanticNeighbor
			if err := rows.Scan(&n.ID, &n.Similarity); err != nil {
				return err
			}
			out = append(out, n)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("semantic neighbors: %w", err)
	}
	return out, nil
}
