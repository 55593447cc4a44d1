package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rcrt-io/rcrt/internal/auth"
	"github.com/rcrt-io/rcrt/internal/breadcrumbsvc"
	"github.com/rcrt-io/rcrt/internal/storage/postgres"
	"github.com/rcrt-io/rcrt/internal/types"
)

// createBreadcrumbRequest is the decoded POST /breadcrumbs body from
// §4.1.
type createBreadcrumbRequest struct {
	SchemaName     string          `json:"schema_name"`
	Title          string          `json:"title" validate:"required"`
	Tags           []string        `json:"tags"`
	Context        json.RawMessage `json:"context" validate:"required"`
	LlmHints       json.RawMessage `json:"llm_hints"`
	TTL            *time.Time      `json:"ttl"`
	TTLType        types.TTLType   `json:"ttl_type"`
	TTLConfig      json.RawMessage `json:"ttl_config"`
	TriggerEventID *uuid.UUID      `json:"trigger_event_id"`
}

type createBreadcrumbResponse struct {
	ID      uuid.UUID `json:"id"`
	Version int64     `json:"version"`
}

// handleCreateBreadcrumb implements POST /breadcrumbs from §4.1: the
// Idempotency-Key header, when present, coalesces retries onto the
// same breadcrumb for the dedupe window described there.
func (s *Server) handleCreateBreadcrumb(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	var req createBreadcrumbRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.NewKindError(types.KindValidation, "invalid request body", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, types.NewKindError(types.KindValidation, err.Error(), err))
		return
	}

	in := breadcrumbsvc.CreateInput{
		SchemaName:     req.SchemaName,
		Title:          req.Title,
		Tags:           req.Tags,
		Context:        req.Context,
		LlmHints:       req.LlmHints,
		TTL:            req.TTL,
		TTLType:        req.TTLType,
		TTLConfig:      req.TTLConfig,
		TriggerEventID: req.TriggerEventID,
	}

	b, err := s.svc.CreateIdempotent(r.Context(), claims.OwnerID, in, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createBreadcrumbResponse{ID: b.ID, Version: b.Version})
}

// handleListBreadcrumbs implements GET /breadcrumbs from §4.5: AND-combined
// schema_name/tag filters, summaries only, never llm_hints.
func (s *Server) handleListBreadcrumbs(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, types.NewKindError(types.KindValidation, "limit must be a non-negative integer", nil))
			return
		}
		limit = n
	}

	summaries, err := s.svc.List(r.Context(), postgres.ListFilter{
		OwnerID:    claims.OwnerID,
		SchemaName: q.Get("schema_name"),
		Tag:        q.Get("tag"),
		Limit:      limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []types.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// searchResultResponse is one row of GET /breadcrumbs/search, a summary
// plus the cosine distance from §4.5 that let the client see why it
// ranked where it did.
type searchResultResponse struct {
	types.Summary
	Distance float64 `json:"distance"`
}

// handleSearchBreadcrumbs implements GET /breadcrumbs/search from §4.5:
// embed q, run the kNN query, AND-combine the optional schema_name/tag
// filters.
func (s *Server) handleSearchBreadcrumbs(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		writeError(w, types.NewKindError(types.KindValidation, "q is required", nil))
		return
	}
	nn := 0
	if raw := q.Get("nn"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, types.NewKindError(types.KindValidation, "nn must be a non-negative integer", nil))
			return
		}
		nn = n
	}

	results, err := s.svc.Search(r.Context(), breadcrumbsvc.SearchInput{
		OwnerID:    claims.OwnerID,
		Query:      query,
		NN:         nn,
		SchemaName: q.Get("schema_name"),
		Tag:        q.Get("tag"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]searchResultResponse, len(results))
	for i, r := range results {
		out[i] = searchResultResponse{Summary: r.Summary, Distance: r.Distance}
	}
	writeJSON(w, http.StatusOK, out)
}

// projectedBreadcrumbResponse is the GET /breadcrumbs/{id} body: the
// transform-engine output plus the identifying fields from §4.1.
type projectedBreadcrumbResponse struct {
	ID         uuid.UUID       `json:"id"`
	SchemaName string          `json:"schema_name,omitempty"`
	Tags       []string        `json:"tags"`
	Version    int64           `json:"version"`
	Context    json.RawMessage `json:"context"`
}

// handleReadBreadcrumb implements GET /breadcrumbs/{id} from §4.1 and
// §4.5: resolve llm_hints, project, optionally inject secrets when
// resolve_secrets=true and a reason is supplied.
func (s *Server) handleReadBreadcrumb(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, types.NewKindError(types.KindValidation, "invalid id", err))
		return
	}

	opts := breadcrumbsvc.ReadOptions{ReaderAgentID: claims.AgentID}
	if r.URL.Query().Get("resolve_secrets") == "true" {
		reason := r.Header.Get("X-RCRT-Reason")
		if reason == "" {
			writeError(w, types.NewKindError(types.KindValidation, "X-RCRT-Reason is required with resolve_secrets=true", nil))
			return
		}
		opts.ResolveSecrets = true
		opts.Reason = reason
	}

	view, err := s.svc.ReadContext(r.Context(), claims.OwnerID, id, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projectedBreadcrumbResponse{
		ID:         view.ID,
		SchemaName: view.SchemaName,
		Tags:       view.Tags,
		Version:    view.Version,
		Context:    view.Context,
	})
}

// rawBreadcrumbResponse is the GET /breadcrumbs/{id}/full body: the
// untransformed row, curator-only per §4.1.
type rawBreadcrumbResponse struct {
	ID             uuid.UUID       `json:"id"`
	OwnerID        uuid.UUID       `json:"owner_id"`
	SchemaName     string          `json:"schema_name,omitempty"`
	Title          string          `json:"title"`
	Tags           []string        `json:"tags"`
	Context        json.RawMessage `json:"context"`
	LlmHints       json.RawMessage `json:"llm_hints,omitempty"`
	TTL            *time.Time      `json:"ttl,omitempty"`
	TTLType        types.TTLType   `json:"ttl_type"`
	TTLConfig      json.RawMessage `json:"ttl_config,omitempty"`
	ReadCount      int64           `json:"read_count"`
	TTLSource      types.TTLSource `json:"ttl_source"`
	Version        int64           `json:"version"`
	TriggerEventID *uuid.UUID      `json:"trigger_event_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (s *Server) handleReadBreadcrumbFull(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, types.NewKindError(types.KindValidation, "invalid id", err))
		return
	}

	b, err := s.svc.ReadFull(r.Context(), claims.OwnerID, id)
	if err != nil {
		writeError(w, errNotFoundAsForbidden(err))
		return
	}
	writeJSON(w, http.StatusOK, rawBreadcrumbResponse{
		ID: b.ID, OwnerID: b.OwnerID, SchemaName: b.SchemaName, Title: b.Title,
		Tags: b.Tags, Context: b.Context, LlmHints: b.LlmHints, TTL: b.TTL,
		TTLType: b.TTLType, TTLConfig: b.TTLConfig, ReadCount: b.ReadCount,
		TTLSource: b.TTLSource, Version: b.Version, TriggerEventID: b.TriggerEventID,
		CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	})
}

// errNotFoundAsForbidden implements §7's "curator operations on
// non-owned rows return 403 rather than 404 to avoid existence probing
// within a tenant boundary" rule for the curator-only full-read/delete
// routes. Tenant isolation already means a non-owned row simply isn't
// found by the scoped query, so a not_found here is indistinguishable
// from "wrong tenant" and is remapped to forbidden.
func errNotFoundAsForbidden(err error) error {
	if err == types.ErrNotFound {
		return types.ErrForbidden
	}
	return err
}

type patchBreadcrumbRequest struct {
	Title     *string         `json:"title"`
	Tags      []string        `json:"tags"`
	Context   json.RawMessage `json:"context"`
	LlmHints  json.RawMessage `json:"llm_hints"`
	TTL       *time.Time      `json:"ttl"`
	TTLType   *types.TTLType  `json:"ttl_type"`
	TTLConfig json.RawMessage `json:"ttl_config"`
}

type versionResponse struct {
	ID      uuid.UUID `json:"id"`
	Version int64     `json:"version"`
}

// handlePatchBreadcrumb implements PATCH /breadcrumbs/{id} from §4.1: a
// missing If-Match is a hard validation error, never a best-effort
// write (§7).
func (s *Server) handlePatchBreadcrumb(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, types.NewKindError(types.KindValidation, "invalid id", err))
		return
	}

	ifMatch := r.Header.Get("If-Match")
	if ifMatch == "" {
		writeError(w, types.NewKindError(types.KindValidation, "If-Match header is required", nil))
		return
	}
	expected, err := strconv.ParseInt(ifMatch, 10, 64)
	if err != nil {
		writeError(w, types.NewKindError(types.KindValidation, "If-Match must be an integer version", err))
		return
	}

	var req patchBreadcrumbRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.NewKindError(types.KindValidation, "invalid request body", err))
		return
	}

	b, err := s.svc.Patch(r.Context(), claims.OwnerID, id, expected, breadcrumbsvc.PatchInput{
		Title: req.Title, Tags: req.Tags, Context: req.Context, LlmHints: req.LlmHints,
		TTL: req.TTL, TTLType: req.TTLType, TTLConfig: req.TTLConfig,
	})
	if err != nil {
		writePatchError(w, r.Context(), s, claims.OwnerID, id, err)
		return
	}
	writeJSON(w, http.StatusOK, versionResponse{ID: b.ID, Version: b.Version})
}

// writePatchError implements §8's stale-patch contract: a 412 response
// body includes the record's current version so the client can re-read
// and retry without a second round trip just to discover it.
func writePatchError(w http.ResponseWriter, ctx context.Context, s *Server, ownerID, id uuid.UUID, err error) {
	if err != types.ErrPreconditionFailed {
		writeError(w, err)
		return
	}
	current, rerr := s.svc.ReadFull(ctx, ownerID, id)
	if rerr != nil {
		writeError(w, err)
		return
	}
	kind, status := classify(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := struct {
		Error struct {
			Kind    types.ErrorKind `json:"kind"`
			Message string          `json:"message"`
		} `json:"error"`
		CurrentVersion int64 `json:"current_version"`
	}{}
	body.Error.Kind = kind
	body.Error.Message = err.Error()
	body.CurrentVersion = current.Version
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleApproveBreadcrumb(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, types.NewKindError(types.KindValidation, "invalid id", err))
		return
	}
	b, err := s.svc.Approve(r.Context(), claims.OwnerID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versionResponse{ID: b.ID, Version: b.Version})
}

type contextMergeRequest struct {
	Context json.RawMessage `json:"context" validate:"required"`
}

func (s *Server) handleContextMergeBreadcrumb(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, types.NewKindError(types.KindValidation, "invalid id", err))
		return
	}
	var req contextMergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.NewKindError(types.KindValidation, "invalid request body", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, types.NewKindError(types.KindValidation, err.Error(), err))
		return
	}
	b, err := s.svc.ContextMerge(r.Context(), claims.OwnerID, id, req.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versionResponse{ID: b.ID, Version: b.Version})
}

func (s *Server) handleDeleteBreadcrumbFull(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, types.NewKindError(types.KindValidation, "invalid id", err))
		return
	}
	if err := s.svc.DeleteFull(r.Context(), claims.OwnerID, id); err != nil {
		writeError(w, errNotFoundAsForbidden(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
