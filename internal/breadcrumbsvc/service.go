// Package breadcrumbsvc is the orchestration layer tying storage,
// embedding, transform, and the event bus into the CRUD contract
// described in §4.1. Every mutating operation here follows the same
// shape as the teacher's rpc handlers: validate, do the storage work,
// best-effort publish, return.
package breadcrumbsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rcrt-io/rcrt/internal/embedding"
	"github.com/rcrt-io/rcrt/internal/eventbus"
	"github.com/rcrt-io/rcrt/internal/secrets"
	"github.com/rcrt-io/rcrt/internal/storage/postgres"
	"github.com/rcrt-io/rcrt/internal/transform"
	"github.com/rcrt-io/rcrt/internal/types"
)

// EdgePolicy holds the configurable thresholds for automatic edge
// computation (§3): the temporal neighbor window, the minimum shared
// tag count, and the semantic top-M/threshold.
type EdgePolicy struct {
	TemporalWindow        time.Duration
	TagEdgeMinShared       int
	SemanticEdgeTopM       int
	SemanticEdgeThreshold float64
}

func DefaultEdgePolicy() EdgePolicy {
	return EdgePolicy{
		TemporalWindow:        10 * time.Minute,
		TagEdgeMinShared:       2,
		SemanticEdgeTopM:       5,
		SemanticEdgeThreshold: 0.8,
	}
}

// Service composes the storage, embedding, transform, and event-bus
// packages into the breadcrumb lifecycle operations. One Service is
// shared by every request in the process.
type Service struct {
	store       *postgres.Store
	bus         *eventbus.Bus
	embedder    *embedding.Model
	embedPolicy *embedding.Policy
	engine      *transform.Engine
	hints       *transform.SchemaHintsCache
	kek         *secrets.KEK
	edgePolicy  EdgePolicy

	// idLocks serializes version bumps per breadcrumb id, the short
	// advisory lock described in §5 (Patch/Approve/Context-merge/Delete
	// take it; reads never do).
	idLocksMu sync.Mutex
	idLocks   map[uuid.UUID]*sync.Mutex
}

func New(store *postgres.Store, bus *eventbus.Bus, embedder *embedding.Model, embedPolicy *embedding.Policy, engine *transform.Engine, hints *transform.SchemaHintsCache, kek *secrets.KEK, edgePolicy EdgePolicy) *Service {
	return &Service{
		store:       store,
		bus:         bus,
		embedder:    embedder,
		embedPolicy: embedPolicy,
		engine:      engine,
		hints:       hints,
		kek:         kek,
		edgePolicy:  edgePolicy,
		idLocks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Service) lockFor(id uuid.UUID) func() {
	s.idLocksMu.Lock()
	l, ok := s.idLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.idLocks[id] = l
	}
	s.idLocksMu.Unlock()
	l.Lock()
	return l.Unlock
}

// CreateInput is the decoded POST /breadcrumbs body.
type CreateInput struct {
	SchemaName     string
	Title          string
	Tags           []string
	Context        json.RawMessage
	LlmHints       json.RawMessage
	TTL            *time.Time
	TTLType        types.TTLType
	TTLConfig      json.RawMessage
	TriggerEventID *uuid.UUID
}

// Create implements the write path from §4.1: embed per policy,
// resolve TTL, insert, grant the owner's implicit ACL, compute edges,
// publish.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, in CreateInput) (*types.Breadcrumb, error) {
	now := time.Now().UTC()
	b := &types.Breadcrumb{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		SchemaName:     in.SchemaName,
		Title:          in.Title,
		Tags:           in.Tags,
		Context:        in.Context,
		LlmHints:       in.LlmHints,
		TTL:            in.TTL,
		TTLType:        in.TTLType,
		TTLConfig:      in.TTLConfig,
		TTLSource:      resolveTTLSource(in.TTLType),
		Version:        1,
		TriggerEventID: in.TriggerEventID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if b.TTLType == "" {
		b.TTLType = types.TTLNever
	}
	if s.embedPolicy.ShouldEmbed(in.SchemaName) {
		b.Embedding = s.embedder.EmbedBreadcrumb(b.Title, b.Tags, b.Context)
	}
	if err := b.Validate(); err != nil {
		return nil, types.NewKindError(types.KindValidation, err.Error(), err)
	}

	if err := s.store.CreateBreadcrumb(ctx, b); err != nil {
		return nil, fmt.Errorf("create breadcrumb: %w", err)
	}
	if err := s.store.InsertACL(ctx, types.ACL{BreadcrumbID: b.ID, PrincipalID: ownerID, Capability: types.CapWrite}); err != nil {
		return nil, fmt.Errorf("grant owner acl: %w", err)
	}

	if err := s.computeEdges(ctx, b); err != nil {
		return nil, fmt.Errorf("compute edges: %w", err)
	}

	s.publish(ctx, types.EventCreated, b)

	if b.SchemaName == schemaDefSchema {
		s.refreshSchemaHints(b)
	}
	return b, nil
}

func resolveTTLSource(t types.TTLType) types.TTLSource {
	if t == "" || t == types.TTLNever {
		return types.TTLSourceManual
	}
	return types.TTLSourceExplicit
}

// computeEdges inserts the causal, temporal, tag, and semantic edges
// for a newly-written breadcrumb, in that order (insertion order only;
// each edge type is computed independently with no cross-type weight
// combination).
func (s *Service) computeEdges(ctx context.Context, b *types.Breadcrumb) error {
	var edges []types.Edge

	if b.TriggerEventID != nil && *b.TriggerEventID != uuid.Nil {
		edges = append(edges, types.Edge{FromID: *b.TriggerEventID, ToID: b.ID, EdgeType: types.EdgeCausal, Weight: 1})
	}

	if b.SchemaName != "" {
		if neighborID, found, err := s.store.NearestTemporalNeighbor(ctx, b.OwnerID, b.SchemaName, b.CreatedAt, s.edgePolicy.TemporalWindow, b.ID); err != nil {
			return err
		} else if found {
			edges = append(edges, types.Edge{FromID: neighborID, ToID: b.ID, EdgeType: types.EdgeTemporal, Weight: 1})
		}
	}

	if len(b.Tags) > 0 {
		neighbors, err := s.store.TagNeighbors(ctx, b.OwnerID, b.ID, b.Tags, s.edgePolicy.TagEdgeMinShared)
		if err != nil {
			return err
		}
		for _, n := range neighbors {
			edges = append(edges, types.Edge{FromID: n, ToID: b.ID, EdgeType: types.EdgeTag, Weight: 1})
		}
	}

	if len(b.Embedding) > 0 {
		neighbors, err := s.store.SemanticNeighbors(ctx, b.OwnerID, b.ID, b.Embedding, s.edgePolicy.SemanticEdgeTopM, s.edgePolicy.SemanticEdgeThreshold)
		if err != nil {
			return err
		}
		for _, n := range neighbors {
			edges = append(edges, types.Edge{FromID: n.ID, ToID: b.ID, EdgeType: types.EdgeSemantic, Weight: n.Similarity})
		}
	}

	return s.store.InsertEdges(ctx, edges)
}

func (s *Service) publish(ctx context.Context, t types.EventType, b *types.Breadcrumb) {
	ev := types.Event{
		Type:       t,
		ID:         b.ID.String(),
		OwnerID:    b.OwnerID.String(),
		SchemaName: b.SchemaName,
		Tags:       b.Tags,
		Version:    b.Version,
	}
	if b.TriggerEventID != nil {
		ev.TriggerEventID = b.TriggerEventID.String()
	}
	if err := s.bus.Publish(ctx, ev); err != nil {
		payload, _ := json.Marshal(ev)
		if qerr := s.store.EnqueuePublish(ctx, b.ID, t, payload); qerr != nil {
			// Both the live publish and the outbox enqueue failed; the row
			// itself is already committed, so this is logged as a warning
			// rather than failing the request.
			slog.Warn("enqueue event for repair failed", "id", b.ID, "type", t, "error", qerr)
		}
	}
}
