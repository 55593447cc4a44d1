package breadcrumbsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rcrt-io/rcrt/internal/storage/postgres"
	"github.com/rcrt-io/rcrt/internal/transform"
	"github.com/rcrt-io/rcrt/internal/types"
)

// ProjectedView is the response shape for GET /breadcrumbs/{id}.
type ProjectedView struct {
	ID         uuid.UUID
	SchemaName string
	Tags       []string
	Version    int64
	Context    json.RawMessage
}

// ReadOptions carries the optional secret-injection request.
type ReadOptions struct {
	ResolveSecrets bool
	Reason         string
	ReaderAgentID  uuid.UUID
}

// ReadContext implements the read path from §4.1 and §4.5: resolve
// llm_hints, project through the transform engine, optionally inject
// secret references, and bump read_count for usage/hybrid TTL records.
func (s *Service) ReadContext(ctx context.Context, ownerID, id uuid.UUID, opts ReadOptions) (*ProjectedView, error) {
	b, err := s.store.GetBreadcrumb(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	inline, err := types.ParseLlmHints(b.LlmHints)
	if err != nil {
		return nil, types.NewKindError(types.KindValidation, "invalid llm_hints", err)
	}
	schemaDefault := s.hints.Get(ownerID, b.SchemaName)
	effective := transform.Resolve(inline, schemaDefault)

	projected, err := s.engine.Project(b.Context, effective)
	if err != nil {
		return nil, fmt.Errorf("project context: %w", err)
	}

	if opts.ResolveSecrets {
		projected, err = s.injectSecrets(ctx, ownerID, opts, projected)
		if err != nil {
			return nil, fmt.Errorf("inject secrets: %w", err)
		}
	}

	if b.TTLType == types.TTLUsage || b.TTLType == types.TTLHybrid {
		if _, err := s.store.IncrementReadCount(ctx, ownerID, id); err != nil {
			return nil, fmt.Errorf("increment read_count: %w", err)
		}
	}

	return &ProjectedView{ID: b.ID, SchemaName: b.SchemaName, Tags: b.Tags, Version: b.Version, Context: projected}, nil
}

// ReadFull returns the untransformed row, curator-only by route gate.
func (s *Service) ReadFull(ctx context.Context, ownerID, id uuid.UUID) (*types.Breadcrumb, error) {
	return s.store.GetBreadcrumb(ctx, ownerID, id)
}

// List returns AND-filtered summaries, never applying llm_hints.
func (s *Service) List(ctx context.Context, f postgres.ListFilter) ([]types.Summary, error) {
	return s.store.List(ctx, f)
}

// SearchInput is the decoded GET /breadcrumbs/search query.
type SearchInput struct {
	OwnerID    uuid.UUID
	Query      string
	NN         int
	SchemaName string
	Tag        string
}

// Search embeds the query text and runs the kNN search described in
// §4.5.
func (s *Service) Search(ctx context.Context, in SearchInput) ([]postgres.SearchResult, error) {
	vec, err := s.embedder.Embed(in.Query)
	if err != nil {
		return nil, fmt.Errorf("embed search query: %w", err)
	}
	return s.store.Search(ctx, postgres.SearchFilter{
		OwnerID:    in.OwnerID,
		Query:      vec,
		NN:         in.NN,
		SchemaName: in.SchemaName,
		Tag:        in.Tag,
	})
}

// injectSecrets walks projected looking for the §4.5 reference shape
// {"<key>": {"secret_id": "<uuid>"}} and, when the caller can read the
// secret, injects plaintext under the sibling key "<key>_value" — the
// convention this implementation settled on for the open question of
// where injected plaintext is placed (documented alongside OpenAPI).
func (s *Service) injectSecrets(ctx context.Context, ownerID uuid.UUID, opts ReadOptions, projected json.RawMessage) (json.RawMessage, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(projected, &data); err != nil {
		// Not an object at the top level: references can't live here,
		// leave untouched.
		return projected, nil
	}
	changed := false
	for key, val := range data {
		obj, ok := val.(map[string]interface{})
		if !ok {
			continue
		}
		rawID, ok := obj["secret_id"].(string)
		if !ok {
			continue
		}
		secretID, err := uuid.Parse(rawID)
		if err != nil {
			continue
		}
		plaintext, err := s.decryptSecretForInjection(ctx, ownerID, secretID, opts)
		if err != nil {
			if err == types.ErrNotFound || err == types.ErrForbidden {
				continue
			}
			return nil, err
		}
		data[key+"_value"] = string(plaintext)
		changed = true
	}
	if !changed {
		return projected, nil
	}
	return json.Marshal(data)
}

func (s *Service) decryptSecretForInjection(ctx context.Context, ownerID, secretID uuid.UUID, opts ReadOptions) ([]byte, error) {
	sec, err := s.store.GetSecretForDecrypt(ctx, ownerID, secretID)
	if err != nil {
		return nil, err
	}
	plaintext, err := s.kek.Decrypt(ownerID.String(), sec.Name, sec.ScopeType, sec.ScopeRef, sec.Ciphertext, sec.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decrypt secret %s: %w", secretID, err)
	}
	if err := s.store.InsertSecretAudit(ctx, types.SecretAuditEntry{
		SecretID:      secretID,
		ReaderAgentID: opts.ReaderAgentID,
		Reason:        opts.Reason,
		At:            time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("record secret audit: %w", err)
	}
	return plaintext, nil
}
