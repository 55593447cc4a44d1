package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rcrt-io/rcrt/internal/auth"
	"github.com/rcrt-io/rcrt/internal/types"
)

// createSecretRequest is the decoded POST /secrets body from §4.8;
// Plaintext is held only transiently, never persisted unencrypted.
type createSecretRequest struct {
	Name      string            `json:"name" validate:"required"`
	ScopeType types.SecretScope `json:"scope_type" validate:"required"`
	ScopeRef  string            `json:"scope_ref"`
	Plaintext string            `json:"plaintext" validate:"required"`
}

type secretMetadataResponse struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	ScopeType types.SecretScope `json:"scope_type"`
	ScopeRef  string            `json:"scope_ref,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// handleCreateSecret implements POST /secrets (curator) from §4.8:
// encrypt the plaintext directly under the boot-time KEK, binding
// associated data to (owner_id, name, scope), and store only
// ciphertext.
func (s *Server) handleCreateSecret(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	var req createSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.NewKindError(types.KindValidation, "invalid request body", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, types.NewKindError(types.KindValidation, err.Error(), err))
		return
	}

	ciphertext, nonce, err := s.kek.Encrypt(claims.OwnerID.String(), req.Name, req.ScopeType, req.ScopeRef, []byte(req.Plaintext))
	if err != nil {
		writeError(w, err)
		return
	}
	sec := &types.Secret{
		ID:         uuid.New(),
		OwnerID:    claims.OwnerID,
		Name:       req.Name,
		ScopeType:  req.ScopeType,
		ScopeRef:   req.ScopeRef,
		Ciphertext: ciphertext,
		Nonce:      nonce,
		KEKRef:     s.kek.Ref(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateSecret(r.Context(), sec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, secretMetadataResponse{
		ID: sec.ID, Name: sec.Name, ScopeType: sec.ScopeType, ScopeRef: sec.ScopeRef, CreatedAt: sec.CreatedAt,
	})
}

// handleListSecrets implements GET /secrets from §4.8: metadata only,
// never ciphertext or plaintext, scoped to the caller's tenant.
func (s *Server) handleListSecrets(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	secrets, err := s.store.ListSecrets(r.Context(), claims.OwnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]secretMetadataResponse, len(secrets))
	for i, sec := range secrets {
		out[i] = secretMetadataResponse{ID: sec.ID, Name: sec.Name, ScopeType: sec.ScopeType, ScopeRef: sec.ScopeRef, CreatedAt: sec.CreatedAt}
	}
	writeJSON(w, http.StatusOK, out)
}

type decryptSecretRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type decryptSecretResponse struct {
	Plaintext string `json:"plaintext"`
}

// handleDecryptSecret implements POST /secrets/{id}/decrypt from §4.8:
// curator or scope-matching emitter, returns plaintext and records a
// secret_audit row. An emitter without a matching scope gets
// forbidden, not a silent empty response.
func (s *Server) handleDecryptSecret(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, types.NewKindError(types.KindValidation, "invalid id", err))
		return
	}

	var req decryptSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, types.NewKindError(types.KindValidation, "invalid request body", err))
		return
	}
	if req.Reason == "" {
		req.Reason = r.Header.Get("X-RCRT-Reason")
	}
	if req.Reason == "" {
		writeError(w, types.NewKindError(types.KindValidation, "reason is required", nil))
		return
	}

	sec, err := s.store.GetSecretForDecrypt(r.Context(), claims.OwnerID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !claims.HasRole(types.RoleCurator) {
		if sec.ScopeType == types.ScopeAgent && sec.ScopeRef != claims.AgentID.String() {
			writeError(w, types.ErrForbidden)
			return
		}
		if sec.ScopeType == types.ScopeWorkspace && sec.ScopeRef == "" {
			writeError(w, types.ErrForbidden)
			return
		}
	}

	plaintext, err := s.kek.Decrypt(claims.OwnerID.String(), sec.Name, sec.ScopeType, sec.ScopeRef, sec.Ciphertext, sec.Nonce)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.InsertSecretAudit(r.Context(), types.SecretAuditEntry{
		SecretID:      id,
		ReaderAgentID: claims.AgentID,
		Reason:        req.Reason,
		At:            time.Now().UTC(),
	}); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decryptSecretResponse{Plaintext: string(plaintext)})
}
