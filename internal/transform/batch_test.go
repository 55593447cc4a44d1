package transform_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/internal/transform"
	"github.com/rcrt-io/rcrt/internal/types"
)

func TestBatchProjectIsPositionalAndIsolatesErrors(t *testing.T) {
	e := transform.NewEngine()
	items := []transform.BatchItem{
		{Context: json.RawMessage(`{"a":1}`), Hints: nil},
		{Context: json.RawMessage(`not json`), Hints: &types.LlmHints{Mode: types.ModeMerge}},
		{Context: json.RawMessage(`{"b":2}`), Hints: nil},
	}

	out, errs := e.BatchProject(context.Background(), items)
	require.Len(t, out, 3)
	require.Len(t, errs, 3)

	assert.JSONEq(t, `{"a":1}`, string(out[0]))
	assert.NoError(t, errs[0])

	assert.Error(t, errs[1])
	assert.Nil(t, out[1])

	assert.JSONEq(t, `{"b":2}`, string(out[2]))
	assert.NoError(t, errs[2])
}
