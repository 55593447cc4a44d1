package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rcrt-io/rcrt/internal/types"
)

// CreateSecret stores an already-encrypted secret row; plaintext never
// reaches this package.
func (s *Store) CreateSecret(ctx context.Context, sec *types.Secret) error {
	_, err := s.exec(ctx, `
		INSERT INTO secrets (id, owner_id, name, scope_type, scope_ref, ciphertext, nonce, kek_ref, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, sec.ID, sec.OwnerID, sec.Name, string(sec.ScopeType), sec.ScopeRef, sec.Ciphertext, sec.Nonce, sec.KEKRef, sec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert secret: %w", err)
	}
	return nil
}

// ListSecrets returns metadata only (never ciphertext) for an owner,
// per §4.8.
func (s *Store) ListSecrets(ctx context.Context, ownerID uuid.UUID) ([]types.Secret, error) {
	var out []types.Secret
	err := s.query(ctx, `
		SELECT id, owner_id, name, scope_type, scope_ref, kek_ref, created_at
		FROM secrets WHERE owner_id=$1 ORDER BY created_at DESC
	`, []interface{}{ownerID}, func(rows pgx.Rows) error {
		for rows.Next() {
			var sec types.Secret
			if err := rows.Scan(&sec.ID, &sec.OwnerID, &sec.Name, &sec.ScopeType, &sec.ScopeRef, &sec.KEKRef, &sec.CreatedAt); err != nil {
				return err
			}
			out = append(out, sec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	return out, nil
}

// GetSecretForDecrypt loads the full row including ciphertext, scoped
// to owner, for the decrypt endpoint.
func (s *Store) GetSecretForDecrypt(ctx context.Context, ownerID, id uuid.UUID) (*types.Secret, error) {
	var sec types.Secret
	err := s.queryRow(ctx, `
		SELECT id, owner_id, name, scope_type, scope_ref, ciphertext, nonce, kek_ref, created_at
		FROM secrets WHERE id=$1 AND owner_id=$2
	`, []interface{}{id, ownerID}, func(row pgx.Row) error {
		return row.Scan(&sec.ID, &sec.OwnerID, &sec.Name, &sec.ScopeType, &sec.ScopeRef, &sec.Ciphertext, &sec.Nonce, &sec.KEKRef, &sec.CreatedAt)
	})
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("get secret: %w", err)
	}
	return &sec, nil
}

// InsertSecretAudit records a decrypt-path audit row; never fails
// silently since an un-auditable decrypt is a compliance gap, not a
// best-effort log line.
func (s *Store) InsertSecretAudit(ctx context.Context, entry types.SecretAuditEntry) error {
	_, err := s.exec(ctx, `
		INSERT INTO secret_audit (secret_id, reader_agent_id, reason, at)
		VALUES ($1,$2,$3,$4)
	`, entry.SecretID, entry.ReaderAgentID, entry.Reason, entry.At)
	if err != nil {
		return fmt.Errorf("insert secret audit: %w", err)
	}
	return nil
}

// SecretByOwnerAndName looks up a secret's metadata (never ciphertext)
// by its name within an owner. The read-with-secret-injection path
// resolves references by id and does not call it.
func (s *Store) SecretByOwnerAndName(ctx context.Context, ownerID uuid.UUID, name string) (*types.Secret, error) {
	var sec types.Secret
	err := s.queryRow(ctx, `
		SELECT id, owner_id, name, scope_type, scope_ref, kek_ref, created_at
		FROM secrets WHERE owner_id=$1 AND name=$2
	`, []interface{}{ownerID, name}, func(row pgx.Row) error {
		return row.Scan(&sec.ID, &sec.OwnerID, &sec.Name, &sec.ScopeType, &sec.ScopeRef, &sec.KEKRef, &sec.CreatedAt)
	})
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("get secret by name: %w", err)
	}
	return &sec, nil
}
