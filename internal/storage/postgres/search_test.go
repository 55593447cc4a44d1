package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/internal/storage/postgres"
	"github.com/rcrt-io/rcrt/internal/types"
)

func unitVector(dim int) []float32 {
	v := make([]float32, types.EmbeddingDims)
	v[dim] = 1
	return v
}

func TestSearchOrdersByCosineDistance(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	near := newBreadcrumb(ownerID, "near")
	near.Embedding = unitVector(0)
	far := newBreadcrumb(ownerID, "far")
	far.Embedding = unitVector(1)

	require.NoError(t, store.CreateBreadcrumb(ctx, near))
	require.NoError(t, store.CreateBreadcrumb(ctx, far))

	out, err := store.Search(ctx, postgres.SearchFilter{OwnerID: ownerID, Query: unitVector(0), NN: 10})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, near.ID, out[0].Summary.ID)
	assert.Less(t, out[0].Distance, out[1].Distance)
}

func TestSearchExcludesRecordsWithNoEmbedding(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	unembedded := newBreadcrumb(ownerID, "no embedding")
	require.NoError(t, store.CreateBreadcrumb(ctx, unembedded))

	out, err := store.Search(ctx, postgres.SearchFilter{OwnerID: ownerID, Query: unitVector(0), NN: 10})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSearchFiltersBySchemaName(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	match := newBreadcrumb(ownerID, "matching schema")
	match.Embedding = unitVector(0)
	other := newBreadcrumb(ownerID, "other schema")
	other.Embedding = unitVector(0)
	other.SchemaName = "other.schema.v1"

	require.NoError(t, store.CreateBreadcrumb(ctx, match))
	require.NoError(t, store.CreateBreadcrumb(ctx, other))

	out, err := store.Search(ctx, postgres.SearchFilter{OwnerID: ownerID, Query: unitVector(0), NN: 10, SchemaName: match.SchemaName})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, match.ID, out[0].Summary.ID)
}
