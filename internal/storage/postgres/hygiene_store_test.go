package postgres_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/internal/types"
)

func TestTTLCandidatesExcludesNever(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	never := newBreadcrumb(ownerID, "never expires")
	require.NoError(t, store.CreateBreadcrumb(ctx, never))

	usage := newBreadcrumb(ownerID, "usage bound")
	usage.TTLType = types.TTLUsage
	usage.TTLConfig = json.RawMessage(`{"max_reads":3}`)
	require.NoError(t, store.CreateBreadcrumb(ctx, usage))

	out, err := store.TTLCandidates(ctx, 100)
	require.NoError(t, err)

	var ids []uuid.UUID
	for _, c := range out {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, usage.ID)
	assert.NotContains(t, ids, never.ID)
}

func TestPublishQueueLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ownerID := newOwner(t, store)
	b := newBreadcrumb(ownerID, "queued event")
	require.NoError(t, store.CreateBreadcrumb(ctx, b))

	require.NoError(t, store.EnqueuePublish(ctx, b.ID, types.EventCreated, json.RawMessage(`{"ok":true}`)))

	pending, err := store.PendingPublishes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].BreadcrumbID)
	assert.Equal(t, 0, pending[0].Attempts)

	require.NoError(t, store.BumpPublishAttempt(ctx, pending[0].QueueID))
	pending, err = store.PendingPublishes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)

	require.NoError(t, store.AckPublish(ctx, pending[0].QueueID))
	pending, err = store.PendingPublishes(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
