package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rcrt-io/rcrt/internal/types"
)

// InsertACL grants principalID capability on breadcrumbID. Called for
// the owner's implicit write grant on create, and for any explicit
// sharing operation layered on top later.
func (s *Store) InsertACL(ctx context.Context, acl types.ACL) error {
	_, err := s.exec(ctx, `
		INSERT INTO breadcrumb_acl (breadcrumb_id, principal_id, capability)
		VALUES ($1,$2,$3)
		ON CONFLICT DO NOTHING
	`, acl.BreadcrumbID, acl.PrincipalID, string(acl.Capability))
	if err != nil {
		return fmt.Errorf("insert acl: %w", err)
	}
	return nil
}

// HasCapability implements invariant I5: a principal can access a
// breadcrumb if they own its owner tenant (checked by the caller) or an
// ACL row grants the capability.
func (s *Store) HasCapability(ctx context.Context, breadcrumbID, principalID uuid.UUID, cap types.Capability) (bool, error) {
	var exists bool
	err := s.queryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM breadcrumb_acl
			WHERE breadcrumb_id=$1 AND principal_id=$2 AND capability=$3
		)
	`, []interface{}{breadcrumbID, principalID, string(cap)}, func(row pgx.Row) error {
		return row.Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("check acl: %w", err)
	}
	return exists, nil
}

// DeleteACLsForBreadcrumb removes every ACL row for a breadcrumb. The
// service and the hygiene worker both delete through
// DeleteBreadcrumbFull, whose FK cascade already removes ACL rows; this
// method is not called by either.
func (s *Store) DeleteACLsForBreadcrumb(ctx context.Context, breadcrumbID uuid.UUID) error {
	_, err := s.exec(ctx, `DELETE FROM breadcrumb_acl WHERE breadcrumb_id=$1`, breadcrumbID)
	if err != nil {
		return fmt.Errorf("delete acls: %w", err)
	}
	return nil
}
