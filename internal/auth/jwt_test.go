package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/internal/auth"
	"github.com/rcrt-io/rcrt/internal/types"
)

func generateTestKeyPair(t *testing.T) (string, string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(priv),
	})
	pubBytes, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})
	return string(privPEM), string(pubPEM)
}

func TestMintAndVerifyRoundTrip(t *testing.T) {
	privPEM, pubPEM := generateTestKeyPair(t)

	priv, err := auth.ParsePrivateKeyPEM(privPEM)
	require.NoError(t, err)
	pub, err := auth.ParsePublicKeyPEM(pubPEM)
	require.NoError(t, err)

	minter := auth.NewMinter(priv, time.Hour)
	verifier := auth.NewVerifier(pub)

	ownerID := uuid.New()
	agentID := uuid.New()
	roles := []types.Role{types.RoleCurator, types.RoleSubscriber}

	token, err := minter.Mint(ownerID, agentID, roles)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := verifier.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, ownerID, claims.OwnerID)
	assert.Equal(t, agentID, claims.AgentID)
	assert.True(t, claims.HasRole(types.RoleCurator))
	assert.True(t, claims.HasRole(types.RoleSubscriber))
	assert.False(t, claims.HasRole(types.RoleEmitter))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	privPEM, pubPEM := generateTestKeyPair(t)
	priv, err := auth.ParsePrivateKeyPEM(privPEM)
	require.NoError(t, err)
	pub, err := auth.ParsePublicKeyPEM(pubPEM)
	require.NoError(t, err)

	minter := auth.NewMinter(priv, -time.Minute)
	verifier := auth.NewVerifier(pub)

	token, err := minter.Mint(uuid.New(), uuid.New(), []types.Role{types.RoleEmitter})
	require.NoError(t, err)

	_, err = verifier.Parse(token)
	assert.Error(t, err)
}

func TestVerifyRejectsTokenFromDifferentKey(t *testing.T) {
	privPEM1, _ := generateTestKeyPair(t)
	_, pubPEM2 := generateTestKeyPair(t)

	priv1, err := auth.ParsePrivateKeyPEM(privPEM1)
	require.NoError(t, err)
	pub2, err := auth.ParsePublicKeyPEM(pubPEM2)
	require.NoError(t, err)

	minter := auth.NewMinter(priv1, time.Hour)
	verifier := auth.NewVerifier(pub2)

	token, err := minter.Mint(uuid.New(), uuid.New(), []types.Role{types.RoleEmitter})
	require.NoError(t, err)

	_, err = verifier.Parse(token)
	assert.Error(t, err)
}

func TestMinterDefaultsNonPositiveTTL(t *testing.T) {
	privPEM, pubPEM := generateTestKeyPair(t)
	priv, err := auth.ParsePrivateKeyPEM(privPEM)
	require.NoError(t, err)
	pub, err := auth.ParsePublicKeyPEM(pubPEM)
	require.NoError(t, err)

	minter := auth.NewMinter(priv, 0)
	verifier := auth.NewVerifier(pub)

	token, err := minter.Mint(uuid.New(), uuid.New(), nil)
	require.NoError(t, err)

	claims, err := verifier.Parse(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}
