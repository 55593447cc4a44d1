package secrets_test

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/internal/secrets"
	"github.com/rcrt-io/rcrt/internal/types"
)

func testKEK(t *testing.T) *secrets.KEK {
	t.Helper()
	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	kek, err := secrets.NewKEK(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	return kek
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	kek := testKEK(t)

	ciphertext, nonce, err := kek.Encrypt("owner-1", "api-key", types.ScopeAgent, "agent-1", []byte("sk-super-secret"))
	require.NoError(t, err)
	assert.NotEqual(t, []byte("sk-super-secret"), ciphertext)

	plaintext, err := kek.Decrypt("owner-1", "api-key", types.ScopeAgent, "agent-1", ciphertext, nonce)
	require.NoError(t, err)
	assert.Equal(t, "sk-super-secret", string(plaintext))
}

func TestDecryptFailsOnMismatchedAssociatedData(t *testing.T) {
	kek := testKEK(t)

	ciphertext, nonce, err := kek.Encrypt("owner-1", "api-key", types.ScopeAgent, "agent-1", []byte("sk-super-secret"))
	require.NoError(t, err)

	cases := []struct {
		name     string
		ownerID  string
		secret   string
		scope    types.SecretScope
		scopeRef string
	}{
		{"wrong owner", "owner-2", "api-key", types.ScopeAgent, "agent-1"},
		{"wrong name", "owner-1", "other-key", types.ScopeAgent, "agent-1"},
		{"wrong scope", "owner-1", "api-key", types.ScopeWorkspace, "agent-1"},
		{"wrong scope ref", "owner-1", "api-key", types.ScopeAgent, "agent-2"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := kek.Decrypt(c.ownerID, c.secret, c.scope, c.scopeRef, ciphertext, nonce)
			assert.Error(t, err)
		})
	}
}

func TestNewKEKRejectsInvalidBase64(t *testing.T) {
	_, err := secrets.NewKEK("not-valid-base64!!!")
	assert.Error(t, err)
}

func TestNewKEKRejectsWrongKeyLength(t *testing.T) {
	_, err := secrets.NewKEK(base64.StdEncoding.EncodeToString([]byte("too-short")))
	assert.Error(t, err)
}

func TestRefIsStableForSameKey(t *testing.T) {
	raw := make([]byte, 32)
	_, err := rand.Read(raw)
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(raw)

	kek1, err := secrets.NewKEK(encoded)
	require.NoError(t, err)
	kek2, err := secrets.NewKEK(encoded)
	require.NoError(t, err)

	assert.Equal(t, kek1.Ref(), kek2.Ref())
}
