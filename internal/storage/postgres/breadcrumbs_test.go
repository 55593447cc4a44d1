package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/internal/storage/postgres"
	"github.com/rcrt-io/rcrt/internal/types"
)

// newOwner inserts an owner row and returns its id, so FK-constrained
// breadcrumbs/secrets rows in these tests reference a real tenant.
func newOwner(t *testing.T, store *postgres.Store) uuid.UUID {
	t.Helper()
	o := &types.Owner{ID: uuid.New(), Name: "test-owner", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.CreateOwner(context.Background(), o))
	return o.ID
}

func newBreadcrumb(ownerID uuid.UUID, title string) *types.Breadcrumb {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &types.Breadcrumb{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		SchemaName: "user.message.v1",
		Title:      title,
		Tags:       []string{"a", "b"},
		Context:    json.RawMessage(`{"body":"hello"}`),
		TTLType:    types.TTLNever,
		TTLSource:  types.TTLSourceManual,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestCreateAndGetBreadcrumbRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	b := newBreadcrumb(ownerID, "hello")
	require.NoError(t, store.CreateBreadcrumb(ctx, b))

	got, err := store.GetBreadcrumb(ctx, ownerID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Title, got.Title)
	assert.Equal(t, b.SchemaName, got.SchemaName)
	assert.ElementsMatch(t, b.Tags, got.Tags)
	assert.JSONEq(t, string(b.Context), string(got.Context))
	assert.Equal(t, int64(1), got.Version)
}

func TestGetBreadcrumbEnforcesTenantIsolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerA := newOwner(t, store)
	ownerB := newOwner(t, store)
	b := newBreadcrumb(ownerA, "owner a's record")
	require.NoError(t, store.CreateBreadcrumb(ctx, b))

	_, err := store.GetBreadcrumb(ctx, ownerB, b.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestPatchBreadcrumbOptimisticConcurrency(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	b := newBreadcrumb(ownerID, "v1")
	require.NoError(t, store.CreateBreadcrumb(ctx, b))

	b.Title = "v2"
	b.Version = 2
	b.UpdatedAt = time.Now().UTC()
	ok, err := store.PatchBreadcrumb(ctx, b, 1)
	require.NoError(t, err)
	assert.True(t, ok, "patch at the correct expected version must succeed")

	b.Title = "v3-stale"
	b.Version = 3
	ok, err = store.PatchBreadcrumb(ctx, b, 1)
	require.NoError(t, err)
	assert.False(t, ok, "patch against a stale expected version must be rejected, not silently applied")

	got, err := store.GetBreadcrumb(ctx, ownerID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title)
	assert.Equal(t, int64(2), got.Version)
}

func TestIncrementReadCount(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	b := newBreadcrumb(ownerID, "usage tracked")
	require.NoError(t, store.CreateBreadcrumb(ctx, b))

	n, err := store.IncrementReadCount(ctx, ownerID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.IncrementReadCount(ctx, ownerID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDeleteBreadcrumbFull(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	b := newBreadcrumb(ownerID, "to be deleted")
	require.NoError(t, store.CreateBreadcrumb(ctx, b))

	require.NoError(t, store.DeleteBreadcrumbFull(ctx, ownerID, b.ID))

	_, err := store.GetBreadcrumb(ctx, ownerID, b.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)

	err = store.DeleteBreadcrumbFull(ctx, ownerID, b.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestListOrdersByUpdatedAtDesc(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	older := newBreadcrumb(ownerID, "older")
	older.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	newer := newBreadcrumb(ownerID, "newer")
	newer.UpdatedAt = time.Now().UTC()

	require.NoError(t, store.CreateBreadcrumb(ctx, older))
	require.NoError(t, store.CreateBreadcrumb(ctx, newer))

	out, err := store.List(ctx, postgres.ListFilter{OwnerID: ownerID})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, newer.ID, out[0].ID)
	assert.Equal(t, older.ID, out[1].ID)
}

func TestListFiltersByTagAndSchema(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	match := newBreadcrumb(ownerID, "tagged")
	match.Tags = []string{"urgent"}
	other := newBreadcrumb(ownerID, "untagged")
	other.Tags = []string{"archive"}
	other.SchemaName = "other.schema.v1"

	require.NoError(t, store.CreateBreadcrumb(ctx, match))
	require.NoError(t, store.CreateBreadcrumb(ctx, other))

	out, err := store.List(ctx, postgres.ListFilter{OwnerID: ownerID, Tag: "urgent"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, match.ID, out[0].ID)

	out, err = store.List(ctx, postgres.ListFilter{OwnerID: ownerID, SchemaName: "other.schema.v1"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, other.ID, out[0].ID)
}
