package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/rcrt-io/rcrt/internal/types"
)

type mintTokenRequest struct {
	OwnerID uuid.UUID    `json:"owner_id" validate:"required"`
	AgentID uuid.UUID    `json:"agent_id" validate:"required"`
	Roles   []types.Role `json:"roles" validate:"required,min=1"`
}

type mintTokenResponse struct {
	Token string `json:"token"`
}

// handleMintToken implements POST /auth/token from §4.7: the caller is
// the platform bootstrap, not an end user, so this route is
// unauthenticated but requires the agent to already exist under the
// named owner.
func (s *Server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	var req mintTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.NewKindError(types.KindValidation, "invalid request body", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, types.NewKindError(types.KindValidation, err.Error(), err))
		return
	}

	agent, err := s.store.GetAgent(r.Context(), req.OwnerID, req.AgentID)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, want := range req.Roles {
		if !agent.HasRole(want) {
			writeError(w, types.NewKindError(types.KindForbidden, "agent does not carry role "+string(want), nil))
			return
		}
	}

	token, err := s.minter.Mint(req.OwnerID, req.AgentID, req.Roles)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mintTokenResponse{Token: token})
}
