// Package types holds the domain model shared by every other package in
// the module: breadcrumbs, their ACLs and edges, owners, agents, and
// secrets. Nothing here touches storage, HTTP, or the transform engine.
package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TTLType selects which hygiene policy governs a breadcrumb's lifetime.
type TTLType string

const (
	TTLNever    TTLType = "never"
	TTLDatetime TTLType = "datetime"
	TTLDuration TTLType = "duration"
	TTLUsage    TTLType = "usage"
	TTLHybrid   TTLType = "hybrid"
)

func (t TTLType) valid() bool {
	switch t {
	case TTLNever, TTLDatetime, TTLDuration, TTLUsage, TTLHybrid:
		return true
	}
	return false
}

// TTLSource records how a breadcrumb's TTL policy was assigned.
type TTLSource string

const (
	TTLSourceManual       TTLSource = "manual"
	TTLSourceSchemaDefault TTLSource = "schema-default"
	TTLSourceAutoApplied  TTLSource = "auto-applied"
	TTLSourceExplicit     TTLSource = "explicit"
	TTLSourceMigrated     TTLSource = "migrated"
)

// EdgeType is the kind of relationship an automatically-created edge
// represents between two breadcrumbs.
type EdgeType string

const (
	EdgeCausal   EdgeType = "causal"
	EdgeTemporal EdgeType = "temporal"
	EdgeTag      EdgeType = "tag"
	EdgeSemantic EdgeType = "semantic"
)

// Capability is a grant recorded in breadcrumb_acl.
type Capability string

const (
	CapRead  Capability = "read"
	CapWrite Capability = "write"
)

const EmbeddingDims = 384

// Breadcrumb is the unit of stored context. Context and LlmHints are kept
// as json.RawMessage at this layer; the storage and transform packages
// decode them on demand so a record can round-trip untouched when no
// transform is requested.
type Breadcrumb struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	SchemaName      string
	Title           string
	Tags            []string
	Context         json.RawMessage
	LlmHints        json.RawMessage
	TTL             *time.Time
	TTLType         TTLType
	TTLConfig       json.RawMessage
	ReadCount       int64
	TTLSource       TTLSource
	Embedding       []float32
	Version         int64
	TriggerEventID  *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TagSet returns b.Tags as a lookup set.
func (b *Breadcrumb) TagSet() map[string]struct{} {
	set := make(map[string]struct{}, len(b.Tags))
	for _, t := range b.Tags {
		set[t] = struct{}{}
	}
	return set
}

// HasTag reports whether tag is present.
func (b *Breadcrumb) HasTag(tag string) bool {
	for _, t := range b.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Validate enforces the field-level invariants from the data model.
// Errors are returned field-by-field in the style of a hand-written
// validator: short, specific, no aggregation library involved.
func (b *Breadcrumb) Validate() error {
	if b.ID == uuid.Nil {
		return errors.New("id is required")
	}
	if b.OwnerID == uuid.Nil {
		return errors.New("owner_id is required")
	}
	if b.Title == "" {
		return errors.New("title is required")
	}
	if len(b.Title) > 500 {
		return errors.New("title must be 500 characters or less")
	}
	if b.TTLType != "" && !b.TTLType.valid() {
		return fmt.Errorf("invalid ttl_type: %s", b.TTLType)
	}
	switch b.TTLType {
	case TTLDatetime:
		if b.TTL == nil {
			return errors.New("ttl_type datetime requires ttl")
		}
	case TTLDuration, TTLUsage, TTLHybrid:
		if len(b.TTLConfig) == 0 {
			return fmt.Errorf("ttl_type %s requires ttl_config", b.TTLType)
		}
	case TTLNever, "":
		if b.TTL != nil {
			return errors.New("ttl_type never cannot carry a ttl")
		}
	}
	if len(b.Embedding) != 0 && len(b.Embedding) != EmbeddingDims {
		return fmt.Errorf("embedding must have %d dimensions, got %d", EmbeddingDims, len(b.Embedding))
	}
	if b.Version < 1 {
		return errors.New("version must be >= 1")
	}
	return nil
}

// IsSystemSchema reports whether schema_name marks a record as
// infrastructure (never embedded, per the embedding policy).
func (b *Breadcrumb) IsSystemSchema() bool {
	return len(b.SchemaName) >= len("system.") && b.SchemaName[:len("system.")] == "system."
}

// Summary is the projection returned by list endpoints; it never applies
// llm_hints.
type Summary struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Tags       []string  `json:"tags"`
	SchemaName string    `json:"schema_name,omitempty"`
	Version    int64     `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (b *Breadcrumb) Summary() Summary {
	return Summary{
		ID:         b.ID,
		Title:      b.Title,
		Tags:       b.Tags,
		SchemaName: b.SchemaName,
		Version:    b.Version,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

// ACL is a single grant row; the owner's implicit access is never stored
// as a row.
type ACL struct {
	BreadcrumbID uuid.UUID
	PrincipalID  uuid.UUID
	Capability   Capability
}

// Edge is a directed, typed relationship between two breadcrumbs.
type Edge struct {
	FromID   uuid.UUID
	ToID     uuid.UUID
	EdgeType EdgeType
	Weight   float64
	Aux      json.RawMessage
}

// Owner is a tenant.
type Owner struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// Role is a principal's permission level.
type Role string

const (
	RoleCurator    Role = "curator"
	RoleEmitter    Role = "emitter"
	RoleSubscriber Role = "subscriber"
)

// Agent is a principal within an owner; agents are JWT mint targets.
type Agent struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	Roles     []Role
	CreatedAt time.Time
}

// HasRole reports whether the agent carries role.
func (a *Agent) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SecretScope is the blast radius a secret is bound to.
type SecretScope string

const (
	ScopeGlobal    SecretScope = "global"
	ScopeWorkspace SecretScope = "workspace"
	ScopeAgent     SecretScope = "agent"
)

// Secret is stored AES-GCM-encrypted under the KEK; Ciphertext/Nonce never leave the
// storage and secrets packages unencrypted.
type Secret struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	Name       string
	ScopeType  SecretScope
	ScopeRef   string
	Ciphertext []byte
	Nonce      []byte
	KEKRef     string
	CreatedAt  time.Time
}

// SecretAuditEntry is a single decrypt-path audit row.
type SecretAuditEntry struct {
	SecretID      uuid.UUID
	ReaderAgentID uuid.UUID
	Reason        string
	At            time.Time
}
