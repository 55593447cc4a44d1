package breadcrumbsvc

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rcrt-io/rcrt/internal/storage/postgres"
	"github.com/rcrt-io/rcrt/internal/types"
)

// schemaDefSchema is the reserved schema whose records carry per-schema
// default llm_hints, per §4.3 step 2. A breadcrumb of this schema's
// context is expected to itself be an LlmHints object.
const schemaDefSchema = "schema.def.v1"

// refreshSchemaHints updates the shared cache when a schema.def.v1
// record is created or updated, so subsequent reads of that schema
// pick up the new default without a cache-busting round trip. The
// cache is scoped by owner as well as schema name: two tenants
// defining the same schema name must never see each other's defaults.
func (s *Service) refreshSchemaHints(b *types.Breadcrumb) {
	hints, err := types.ParseLlmHints(b.Context)
	if err != nil || hints == nil {
		return
	}
	s.hints.Set(b.OwnerID, b.Title, hints)
}

// dropSchemaHints removes a schema's cached default on delete.
func (s *Service) dropSchemaHints(b *types.Breadcrumb) {
	if b.SchemaName == schemaDefSchema {
		s.hints.Delete(b.OwnerID, b.Title)
	}
}

// WarmSchemaHints loads every existing schema.def.v1 record for one
// owner into the shared cache, so a read for that tenant right after
// boot doesn't miss a schema default published before this process
// started. The server calls this once per owner it already knows
// about at startup; it is not reachable through any HTTP route.
func (s *Service) WarmSchemaHints(ctx context.Context, ownerID uuid.UUID) error {
	summaries, err := s.store.List(ctx, postgres.ListFilter{OwnerID: ownerID, SchemaName: schemaDefSchema, Limit: 2000})
	if err != nil {
		return fmt.Errorf("list schema.def.v1 records: %w", err)
	}
	for _, sum := range summaries {
		b, err := s.store.GetBreadcrumb(ctx, ownerID, sum.ID)
		if err != nil {
			continue
		}
		s.refreshSchemaHints(b)
	}
	return nil
}
