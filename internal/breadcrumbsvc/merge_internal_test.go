package breadcrumbsvc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeTopLevelOverwritesMatchingKeys(t *testing.T) {
	base := json.RawMessage(`{"a":1,"b":"keep"}`)
	patch := json.RawMessage(`{"a":2}`)

	out, err := mergeTopLevel(base, patch)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, float64(2), got["a"])
	assert.Equal(t, "keep", got["b"])
}

func TestMergeTopLevelAddsNewKeys(t *testing.T) {
	base := json.RawMessage(`{"a":1}`)
	patch := json.RawMessage(`{"c":3}`)

	out, err := mergeTopLevel(base, patch)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, float64(1), got["a"])
	assert.Equal(t, float64(3), got["c"])
}

func TestMergeTopLevelNilBaseProducesPatchOnly(t *testing.T) {
	patch := json.RawMessage(`{"x":"y"}`)

	out, err := mergeTopLevel(nil, patch)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, map[string]interface{}{"x": "y"}, got)
}

func TestMergeTopLevelDeepMergesNestedObjectsWithoutClobberingSiblings(t *testing.T) {
	base := json.RawMessage(`{"a":{"x":1,"y":2}}`)
	patch := json.RawMessage(`{"a":{"x":9}}`)

	out, err := mergeTopLevel(base, patch)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &got))
	a, ok := got["a"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(9), a["x"])
	assert.Equal(t, float64(2), a["y"])
}

func TestMergeTopLevelNestedArrayIsReplacedNotMerged(t *testing.T) {
	base := json.RawMessage(`{"a":{"items":[1,2,3]}}`)
	patch := json.RawMessage(`{"a":{"items":[4]}}`)

	out, err := mergeTopLevel(base, patch)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &got))
	a, ok := got["a"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{float64(4)}, a["items"])
}

func TestMergeTopLevelInvalidBaseJSONErrors(t *testing.T) {
	_, err := mergeTopLevel(json.RawMessage(`not json`), json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestMergeTopLevelInvalidPatchJSONErrors(t *testing.T) {
	_, err := mergeTopLevel(json.RawMessage(`{}`), json.RawMessage(`not json`))
	assert.Error(t, err)
}
