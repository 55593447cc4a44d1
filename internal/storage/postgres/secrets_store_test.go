package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/internal/types"
)

func newSecret(ownerID uuid.UUID, name string) *types.Secret {
	return &types.Secret{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Name:       name,
		ScopeType:  types.ScopeGlobal,
		ScopeRef:   "",
		Ciphertext: []byte("ciphertext"),
		Nonce:      []byte("0123456789ab"),
		KEKRef:     "kek-v1",
		CreatedAt:  time.Now().UTC(),
	}
}

func TestCreateAndListSecretsOmitCiphertext(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	sec := newSecret(ownerID, "api-key")
	require.NoError(t, store.CreateSecret(ctx, sec))

	list, err := store.ListSecrets(ctx, ownerID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "api-key", list[0].Name)
	assert.Nil(t, list[0].Ciphertext, "list must never return ciphertext")
}

func TestGetSecretForDecryptScopesToOwner(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerA := newOwner(t, store)
	ownerB := newOwner(t, store)
	sec := newSecret(ownerA, "db-password")
	require.NoError(t, store.CreateSecret(ctx, sec))

	got, err := store.GetSecretForDecrypt(ctx, ownerA, sec.ID)
	require.NoError(t, err)
	assert.Equal(t, sec.Ciphertext, got.Ciphertext)

	_, err = store.GetSecretForDecrypt(ctx, ownerB, sec.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSecretByOwnerAndName(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	sec := newSecret(ownerID, "webhook-secret")
	require.NoError(t, store.CreateSecret(ctx, sec))

	got, err := store.SecretByOwnerAndName(ctx, ownerID, "webhook-secret")
	require.NoError(t, err)
	assert.Equal(t, sec.ID, got.ID)

	_, err = store.SecretByOwnerAndName(ctx, ownerID, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestInsertSecretAudit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	sec := newSecret(ownerID, "audited")
	require.NoError(t, store.CreateSecret(ctx, sec))

	entry := types.SecretAuditEntry{SecretID: sec.ID, ReaderAgentID: uuid.New(), Reason: "llm_hints decrypt", At: time.Now().UTC()}
	assert.NoError(t, store.InsertSecretAudit(ctx, entry))
}
