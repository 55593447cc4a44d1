package transform_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/rcrt-io/rcrt/internal/transform"
	"github.com/rcrt-io/rcrt/internal/types"
)

func TestSchemaHintsCacheIsScopedByOwner(t *testing.T) {
	c := transform.NewSchemaHintsCache()
	ownerA := uuid.New()
	ownerB := uuid.New()

	hintsA := &types.LlmHints{Mode: types.ModeReplace}
	c.Set(ownerA, "user.message.v1", hintsA)

	assert.Same(t, hintsA, c.Get(ownerA, "user.message.v1"))
	assert.Nil(t, c.Get(ownerB, "user.message.v1"), "owner B must not see owner A's cached default")
}

func TestSchemaHintsCacheDeleteIsPerOwner(t *testing.T) {
	c := transform.NewSchemaHintsCache()
	ownerA := uuid.New()
	ownerB := uuid.New()

	hints := &types.LlmHints{Mode: types.ModeMerge}
	c.Set(ownerA, "schema.x", hints)
	c.Set(ownerB, "schema.x", hints)

	c.Delete(ownerA, "schema.x")

	assert.Nil(t, c.Get(ownerA, "schema.x"))
	assert.NotNil(t, c.Get(ownerB, "schema.x"))
}
