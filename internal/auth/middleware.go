package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rcrt-io/rcrt/internal/types"
)

type ctxKey int

const claimsKey ctxKey = 0

// FromContext returns the claims attached by Middleware, if any.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

func withClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// Middleware verifies the bearer token on every request, accepting it
// either from the Authorization header or, for the SSE endpoint which
// browsers can't attach headers to, an access_token query parameter.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeAuthError(w, types.ErrAuthRequired)
				return
			}
			claims, err := v.Parse(raw)
			if err != nil {
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}

func writeAuthError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"kind":"auth_required","message":"` + err.Error() + `"}}`))
}

// RequireRole builds middleware that rejects requests whose claims
// lack role, matching the curator/emitter/subscriber gates from §3.
func RequireRole(role types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := FromContext(r.Context())
			if !ok || !claims.HasRole(role) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":{"kind":"forbidden","message":"requires ` + string(role) + ` role"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
