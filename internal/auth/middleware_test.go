package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/internal/auth"
	"github.com/rcrt-io/rcrt/internal/types"
)

func mustVerifier(t *testing.T) (*auth.Minter, *auth.Verifier) {
	t.Helper()
	privPEM, pubPEM := generateTestKeyPair(t)
	priv, err := auth.ParsePrivateKeyPEM(privPEM)
	require.NoError(t, err)
	pub, err := auth.ParsePublicKeyPEM(pubPEM)
	require.NoError(t, err)
	return auth.NewMinter(priv, time.Hour), auth.NewVerifier(pub)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	_, verifier := mustVerifier(t)
	h := auth.Middleware(verifier)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/breadcrumbs", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareAcceptsBearerHeader(t *testing.T) {
	minter, verifier := mustVerifier(t)
	h := auth.Middleware(verifier)(okHandler())

	token, err := minter.Mint(uuid.New(), uuid.New(), []types.Role{types.RoleCurator})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/breadcrumbs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareAcceptsQueryToken(t *testing.T) {
	minter, verifier := mustVerifier(t)
	h := auth.Middleware(verifier)(okHandler())

	token, err := minter.Mint(uuid.New(), uuid.New(), []types.Role{types.RoleSubscriber})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/events/stream?access_token="+token, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleRejectsMissingRole(t *testing.T) {
	minter, verifier := mustVerifier(t)
	h := auth.Middleware(verifier)(auth.RequireRole(types.RoleCurator)(okHandler()))

	token, err := minter.Mint(uuid.New(), uuid.New(), []types.Role{types.RoleSubscriber})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/secrets", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoleAllowsMatchingRole(t *testing.T) {
	minter, verifier := mustVerifier(t)
	h := auth.Middleware(verifier)(auth.RequireRole(types.RoleCurator)(okHandler()))

	token, err := minter.Mint(uuid.New(), uuid.New(), []types.Role{types.RoleCurator})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/secrets", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
