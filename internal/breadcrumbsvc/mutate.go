package breadcrumbsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rcrt-io/rcrt/internal/types"
)

// PatchInput is the decoded PATCH /breadcrumbs/{id} body. Only
// non-nil/non-empty fields are applied.
type PatchInput struct {
	Title     *string
	Tags      []string
	Context   json.RawMessage
	LlmHints  json.RawMessage
	TTL       *time.Time
	TTLType   *types.TTLType
	TTLConfig json.RawMessage
}

// Patch applies an optimistic-concurrency update: deep-merges context
// recursively (unless llm_hints.mode forbids merging for this
// projection — mutation always merges regardless of projection mode,
// since mode only governs read-time projection), replaces provided
// scalar fields, bumps version, and republishes edges and the update
// event. A stale If-Match fails with precondition_failed.
func (s *Service) Patch(ctx context.Context, ownerID, id uuid.UUID, expectedVersion int64, in PatchInput) (*types.Breadcrumb, error) {
	unlock := s.lockFor(id)
	defer unlock()

	b, err := s.store.GetBreadcrumb(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if b.Version != expectedVersion {
		return nil, types.ErrPreconditionFailed
	}

	textChanged := false
	if in.Title != nil && *in.Title != b.Title {
		b.Title = *in.Title
		textChanged = true
	}
	if in.Tags != nil {
		b.Tags = in.Tags
		textChanged = true
	}
	if len(in.Context) > 0 {
		merged, err := mergeTopLevel(b.Context, in.Context)
		if err != nil {
			return nil, types.NewKindError(types.KindValidation, "invalid context", err)
		}
		b.Context = merged
		textChanged = true
	}
	if len(in.LlmHints) > 0 {
		b.LlmHints = in.LlmHints
	}
	if in.TTLType != nil {
		b.TTLType = *in.TTLType
		b.TTLSource = types.TTLSourceExplicit
	}
	if in.TTL != nil {
		b.TTL = in.TTL
	}
	if len(in.TTLConfig) > 0 {
		b.TTLConfig = in.TTLConfig
	}

	if textChanged && s.embedPolicy.ShouldEmbed(b.SchemaName) {
		b.Embedding = s.embedder.EmbedBreadcrumb(b.Title, b.Tags, b.Context)
	}

	b.Version = expectedVersion + 1
	b.UpdatedAt = time.Now().UTC()
	if err := b.Validate(); err != nil {
		return nil, types.NewKindError(types.KindValidation, err.Error(), err)
	}

	ok, err := s.store.PatchBreadcrumb(ctx, b, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("patch breadcrumb: %w", err)
	}
	if !ok {
		return nil, types.ErrPreconditionFailed
	}

	if err := s.computeEdges(ctx, b); err != nil {
		return nil, fmt.Errorf("recompute edges: %w", err)
	}
	s.publish(ctx, types.EventUpdated, b)
	if b.SchemaName == schemaDefSchema {
		s.refreshSchemaHints(b)
	}
	return b, nil
}

// mergeTopLevel deep-merges patch into base: keys in patch overwrite
// matching keys in base, other base keys are kept. Where both base and
// patch hold a JSON object at the same key, the objects are merged
// recursively rather than one replacing the other whole, so patching
// one nested field never clobbers its unrelated siblings. Arrays and
// scalars are replaced outright, matching the object-merge contract
// §4.1 describes for context-merge.
func mergeTopLevel(base, patch json.RawMessage) (json.RawMessage, error) {
	var baseMap map[string]interface{}
	if len(base) > 0 {
		if err := json.Unmarshal(base, &baseMap); err != nil {
			return nil, err
		}
	}
	if baseMap == nil {
		baseMap = map[string]interface{}{}
	}
	var patchMap map[string]interface{}
	if err := json.Unmarshal(patch, &patchMap); err != nil {
		return nil, err
	}
	return json.Marshal(deepMergeMaps(baseMap, patchMap))
}

// deepMergeMaps merges patch into base recursively: a key present in
// both as a nested object is merged rather than replaced; any other
// key in patch overwrites base outright.
func deepMergeMaps(base, patch map[string]interface{}) map[string]interface{} {
	for k, pv := range patch {
		if bv, ok := base[k]; ok {
			bvMap, bIsMap := bv.(map[string]interface{})
			pvMap, pIsMap := pv.(map[string]interface{})
			if bIsMap && pIsMap {
				base[k] = deepMergeMaps(bvMap, pvMap)
				continue
			}
		}
		base[k] = pv
	}
	return base
}

// Approve adds the approved/validated tags atomically, preserving the
// existing tag set, and bumps version without requiring the caller to
// know the current tags (avoiding the read-modify-write race a regular
// Patch would need for this one case).
func (s *Service) Approve(ctx context.Context, ownerID, id uuid.UUID) (*types.Breadcrumb, error) {
	unlock := s.lockFor(id)
	defer unlock()

	b, err := s.store.GetBreadcrumb(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	tags := b.TagSet()
	for _, t := range []string{"approved", "validated"} {
		if _, ok := tags[t]; !ok {
			b.Tags = append(b.Tags, t)
		}
	}
	expected := b.Version
	b.Version = expected + 1
	b.UpdatedAt = time.Now().UTC()

	ok, err := s.store.PatchBreadcrumb(ctx, b, expected)
	if err != nil {
		return nil, fmt.Errorf("approve breadcrumb: %w", err)
	}
	if !ok {
		return nil, types.ErrPreconditionFailed
	}
	s.publish(ctx, types.EventUpdated, b)
	return b, nil
}

// ContextMerge deep-merges a partial context into the current record
// without requiring the caller to supply the full body or an If-Match
// header, used by repair agents patching one nested field.
func (s *Service) ContextMerge(ctx context.Context, ownerID, id uuid.UUID, partial json.RawMessage) (*types.Breadcrumb, error) {
	unlock := s.lockFor(id)
	defer unlock()

	b, err := s.store.GetBreadcrumb(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	merged, err := mergeTopLevel(b.Context, partial)
	if err != nil {
		return nil, types.NewKindError(types.KindValidation, "invalid context", err)
	}
	b.Context = merged
	expected := b.Version
	b.Version = expected + 1
	b.UpdatedAt = time.Now().UTC()
	if s.embedPolicy.ShouldEmbed(b.SchemaName) {
		b.Embedding = s.embedder.EmbedBreadcrumb(b.Title, b.Tags, b.Context)
	}

	ok, err := s.store.PatchBreadcrumb(ctx, b, expected)
	if err != nil {
		return nil, fmt.Errorf("context-merge breadcrumb: %w", err)
	}
	if !ok {
		return nil, types.ErrPreconditionFailed
	}
	s.publish(ctx, types.EventUpdated, b)
	return b, nil
}

// DeleteFull hard-removes a breadcrumb, its ACLs, and its edges, and
// publishes breadcrumb.deleted.
func (s *Service) DeleteFull(ctx context.Context, ownerID, id uuid.UUID) error {
	unlock := s.lockFor(id)
	defer unlock()

	b, err := s.store.GetBreadcrumb(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteBreadcrumbFull(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete breadcrumb: %w", err)
	}
	s.dropSchemaHints(b)
	s.publish(ctx, types.EventDeleted, b)
	return nil
}
