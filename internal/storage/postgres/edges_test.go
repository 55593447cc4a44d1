package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/internal/types"
)

func TestInsertEdgesUpsertsOnConflict(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	from := newBreadcrumb(ownerID, "from")
	to := newBreadcrumb(ownerID, "to")
	require.NoError(t, store.CreateBreadcrumb(ctx, from))
	require.NoError(t, store.CreateBreadcrumb(ctx, to))

	e := types.Edge{FromID: from.ID, ToID: to.ID, EdgeType: types.EdgeTag, Weight: 1}
	require.NoError(t, store.InsertEdges(ctx, []types.Edge{e}))

	e.Weight = 2
	require.NoError(t, store.InsertEdges(ctx, []types.Edge{e}))
}

func TestInsertEdgesEmptyIsNoop(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.InsertEdges(context.Background(), nil))
}

func TestNearestTemporalNeighborWithinWindow(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	base := time.Now().UTC()

	anchor := newBreadcrumb(ownerID, "anchor")
	anchor.CreatedAt = base
	require.NoError(t, store.CreateBreadcrumb(ctx, anchor))

	near := newBreadcrumb(ownerID, "near")
	near.CreatedAt = base.Add(time.Minute)
	require.NoError(t, store.CreateBreadcrumb(ctx, near))

	far := newBreadcrumb(ownerID, "far")
	far.CreatedAt = base.Add(time.Hour)
	require.NoError(t, store.CreateBreadcrumb(ctx, far))

	id, found, err := store.NearestTemporalNeighbor(ctx, ownerID, anchor.SchemaName, anchor.CreatedAt, 10*time.Minute, anchor.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, near.ID, id)
}

func TestTagNeighborsRequiresMinShared(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	anchor := newBreadcrumb(ownerID, "anchor")
	anchor.Tags = []string{"a", "b", "c"}
	require.NoError(t, store.CreateBreadcrumb(ctx, anchor))

	strong := newBreadcrumb(ownerID, "strong overlap")
	strong.Tags = []string{"a", "b"}
	require.NoError(t, store.CreateBreadcrumb(ctx, strong))

	weak := newBreadcrumb(ownerID, "weak overlap")
	weak.Tags = []string{"a"}
	require.NoError(t, store.CreateBreadcrumb(ctx, weak))

	ids, err := store.TagNeighbors(ctx, ownerID, anchor.ID, anchor.Tags, 2)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, strong.ID, ids[0])
}

func TestSemanticNeighborsExcludesBelowThreshold(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	vecA := make([]float32, types.EmbeddingDims)
	vecA[0] = 1
	anchor := newBreadcrumb(ownerID, "anchor")
	require.NoError(t, store.CreateBreadcrumb(ctx, anchor))

	vecB := make([]float32, types.EmbeddingDims)
	vecB[1] = 1
	orthogonal := newBreadcrumb(ownerID, "orthogonal")
	orthogonal.Embedding = vecB
	require.NoError(t, store.CreateBreadcrumb(ctx, orthogonal))

	neighbors, err := store.SemanticNeighbors(ctx, ownerID, anchor.ID, vecA, 5, 0.99)
	require.NoError(t, err)
	assert.Empty(t, neighbors, "an orthogonal neighbor (similarity 0) is below the 0.99 threshold and must not be returned")
}
