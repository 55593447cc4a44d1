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

func TestCreateAgentAndGetAgentRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	a := &types.Agent{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Name:      "curator-bot",
		Roles:     []types.Role{types.RoleCurator, types.RoleEmitter},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateAgent(ctx, a))

	got, err := store.GetAgent(ctx, ownerID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Name, got.Name)
	assert.ElementsMatch(t, a.Roles, got.Roles)
}

func TestGetAgentEnforcesTenantIsolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerA := newOwner(t, store)
	ownerB := newOwner(t, store)
	a := &types.Agent{ID: uuid.New(), OwnerID: ownerA, Name: "agent", Roles: []types.Role{types.RoleSubscriber}, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateAgent(ctx, a))

	_, err := store.GetAgent(ctx, ownerB, a.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListOwnerIDsIncludesEveryCreatedOwner(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	a := newOwner(t, store)
	b := newOwner(t, store)

	ids, err := store.ListOwnerIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, a)
	assert.Contains(t, ids, b)
}
