package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetIdempotentMissIsNilNotError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	out, err := store.GetIdempotent(ctx, ownerID, "no-such-key")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestPutThenGetIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	breadcrumbID := uuid.New()
	require.NoError(t, store.PutIdempotent(ctx, ownerID, "key-1", breadcrumbID, "hash-1"))

	out, err := store.GetIdempotent(ctx, ownerID, "key-1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, breadcrumbID, out.BreadcrumbID)
	assert.Equal(t, "hash-1", out.ResponseHash)
}

func TestSweepExpiredIdempotencyKeys(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	require.NoError(t, store.PutIdempotent(ctx, ownerID, "stale-key", uuid.New(), "hash"))

	n, err := store.SweepExpiredIdempotencyKeys(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	out, err := store.GetIdempotent(ctx, ownerID, "stale-key")
	require.NoError(t, err)
	assert.Nil(t, out)
}
