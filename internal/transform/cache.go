package transform

import (
	"sync"

	"github.com/google/uuid"

	"github.com/rcrt-io/rcrt/internal/types"
)

// schemaKey scopes a cached schema default to its tenant: two owners
// may both define a "user.message.v1" schema with different hints, and
// tenant isolation (§3 invariant I5) must hold for cached defaults the
// same as it does for every other query.
type schemaKey struct {
	ownerID    uuid.UUID
	schemaName string
}

// SchemaHintsCache is the single reader-writer map of per-schema
// default llm_hints described in §5: readers never block, refreshed
// whenever a schema.def.v1 breadcrumb changes. It is populated by the
// breadcrumb service, not by this package.
type SchemaHintsCache struct {
	mu    sync.RWMutex
	byKey map[schemaKey]*types.LlmHints
}

func NewSchemaHintsCache() *SchemaHintsCache {
	return &SchemaHintsCache{byKey: make(map[schemaKey]*types.LlmHints)}
}

// Get returns the cached default hints for (ownerID, schemaName), or
// nil if none has been published.
func (c *SchemaHintsCache) Get(ownerID uuid.UUID, schemaName string) *types.LlmHints {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byKey[schemaKey{ownerID, schemaName}]
}

// Set installs or replaces the cached hints for (ownerID, schemaName),
// called on every schema.def.v1 create/update event.
func (c *SchemaHintsCache) Set(ownerID uuid.UUID, schemaName string, hints *types.LlmHints) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKey[schemaKey{ownerID, schemaName}] = hints
}

// Delete drops a schema's cached default, called on schema.def.v1
// delete events.
func (c *SchemaHintsCache) Delete(ownerID uuid.UUID, schemaName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byKey, schemaKey{ownerID, schemaName})
}
