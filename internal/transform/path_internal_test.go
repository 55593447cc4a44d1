package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPathWildcardFansOutOverArray(t *testing.T) {
	data := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"name": "a"},
			map[string]interface{}{"name": "b"},
		},
	}
	val, ok := getPath(data, parsePath("items[*].name"))
	assert.True(t, ok)
	assert.Equal(t, []interface{}{"a", "b"}, val)
}

func TestGetPathMissingPrefixIsNotFound(t *testing.T) {
	data := map[string]interface{}{"a": map[string]interface{}{"b": 1}}
	_, ok := getPath(data, parsePath("a.c.d"))
	assert.False(t, ok)
}

func TestDeletePathWildcardAppliesToEveryElement(t *testing.T) {
	data := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"secret": "x", "name": "a"},
			map[string]interface{}{"secret": "y", "name": "b"},
		},
	}
	deletePath(data, parsePath("items[*].secret"))

	items := data["items"].([]interface{})
	for _, item := range items {
		m := item.(map[string]interface{})
		assert.NotContains(t, m, "secret")
	}
}

func TestSetPathCreatesIntermediateMaps(t *testing.T) {
	dst := map[string]interface{}{}
	setPath(dst, parsePath("a.b.c"), 42)
	assert.Equal(t, 42, dst["a"].(map[string]interface{})["b"].(map[string]interface{})["c"])
}

func TestTruthy(t *testing.T) {
	assert.False(t, truthy(nil))
	assert.False(t, truthy(""))
	assert.False(t, truthy(false))
	assert.False(t, truthy(float64(0)))
	assert.False(t, truthy([]interface{}{}))
	assert.True(t, truthy("x"))
	assert.True(t, truthy(float64(1)))
	assert.True(t, truthy(true))
}
