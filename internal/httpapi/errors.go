package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rcrt-io/rcrt/internal/types"
)

// errorBody is the {error: {kind, message}} shape from §7. Messages
// never carry raw SQL, another tenant's identifiers, or secret
// plaintext — callers pass a message they've already scrubbed.
type errorBody struct {
	Error struct {
		Kind    types.ErrorKind `json:"kind"`
		Message string          `json:"message"`
	} `json:"error"`
}

// statusForKind is the single error-kind-to-HTTP-status table from §7.
func statusForKind(kind types.ErrorKind) int {
	switch kind {
	case types.KindValidation:
		return http.StatusBadRequest
	case types.KindAuthRequired:
		return http.StatusUnauthorized
	case types.KindForbidden:
		return http.StatusForbidden
	case types.KindNotFound:
		return http.StatusNotFound
	case types.KindConflict:
		return http.StatusConflict
	case types.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	case types.KindRateLimited:
		return http.StatusTooManyRequests
	case types.KindDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// classify maps a returned error to a kind and a status, whether it's a
// *types.KindError or one of the bare sentinels storage/service code
// returns directly.
func classify(err error) (types.ErrorKind, int) {
	var ke *types.KindError
	if errors.As(err, &ke) {
		return ke.Kind, statusForKind(ke.Kind)
	}
	switch {
	case errors.Is(err, types.ErrNotFound):
		return types.KindNotFound, http.StatusNotFound
	case errors.Is(err, types.ErrForbidden):
		return types.KindForbidden, http.StatusForbidden
	case errors.Is(err, types.ErrAuthRequired):
		return types.KindAuthRequired, http.StatusUnauthorized
	case errors.Is(err, types.ErrValidation):
		return types.KindValidation, http.StatusBadRequest
	case errors.Is(err, types.ErrConflict):
		return types.KindConflict, http.StatusConflict
	case errors.Is(err, types.ErrPreconditionFailed):
		return types.KindPreconditionFailed, http.StatusPreconditionFailed
	case errors.Is(err, types.ErrRateLimited):
		return types.KindRateLimited, http.StatusTooManyRequests
	case errors.Is(err, types.ErrDependencyUnavailable):
		return types.KindDependencyUnavailable, http.StatusServiceUnavailable
	default:
		return types.KindInternal, http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind, status := classify(err)
	msg := err.Error()
	if kind == types.KindInternal {
		// Internal errors may wrap a driver error with a raw SQL
		// statement attached via %w; never let that reach a client.
		msg = "internal error"
	}
	body := errorBody{}
	body.Error.Kind = kind
	body.Error.Message = msg
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
