package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rcrt-io/rcrt/internal/types"
)

// CreateOwner inserts a new tenant.
func (s *Store) CreateOwner(ctx context.Context, o *types.Owner) error {
	_, err := s.exec(ctx, `INSERT INTO owners (id, name, created_at) VALUES ($1,$2,$3)`, o.ID, o.Name, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert owner: %w", err)
	}
	return nil
}

// CreateAgent inserts a new principal; roles are an immutable bag set
// at mint time, per §3.
func (s *Store) CreateAgent(ctx context.Context, a *types.Agent) error {
	roles := make([]string, len(a.Roles))
	for i, r := range a.Roles {
		roles[i] = string(r)
	}
	_, err := s.exec(ctx, `INSERT INTO agents (id, owner_id, name, roles, created_at) VALUES ($1,$2,$3,$4,$5)`,
		a.ID, a.OwnerID, a.Name, roles, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// ListOwnerIDs returns every tenant id in the system. It backs only
// the server's own boot-time schema-hint warm-up
// (breadcrumbsvc.Service.WarmSchemaHints), never an HTTP route, since
// enumerating tenants across owner_id is exactly what every other
// query on this store must not do.
func (s *Store) ListOwnerIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.query(ctx, `SELECT id FROM owners ORDER BY created_at`, nil, func(rows pgx.Rows) error {
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list owner ids: %w", err)
	}
	return ids, nil
}

// GetAgent loads an agent scoped to ownerID, used when minting a token
// to confirm the role bag to embed in the JWT.
func (s *Store) GetAgent(ctx context.Context, ownerID, id uuid.UUID) (*types.Agent, error) {
	var a types.Agent
	var roles []string
	err := s.queryRow(ctx, `SELECT id, owner_id, name, roles, created_at FROM agents WHERE id=$1 AND owner_id=$2`,
		[]interface{}{id, ownerID}, func(row pgx.Row) error {
			return row.Scan(&a.ID, &a.OwnerID, &a.Name, &roles, &a.CreatedAt)
		})
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	a.Roles = make([]types.Role, len(roles))
	for i, r := range roles {
		a.Roles[i] = types.Role(r)
	}
	return &a, nil
}
