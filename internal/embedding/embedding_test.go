package embedding_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcrt-io/rcrt/internal/embedding"
)

func TestShouldEmbed(t *testing.T) {
	p := embedding.NewPolicy([]string{"custom.denied.v1"})

	assert.False(t, p.ShouldEmbed("system.anything"))
	assert.False(t, p.ShouldEmbed("catalog.aggregate.v1"))
	assert.False(t, p.ShouldEmbed("schema.def.v1"))
	assert.False(t, p.ShouldEmbed("custom.denied.v1"))
	assert.True(t, p.ShouldEmbed(""))
	assert.True(t, p.ShouldEmbed("user.message.v1"))
}

func TestTextCanonicalizesContextKeyOrder(t *testing.T) {
	a, err := embedding.Text("title", []string{"x", "y"}, []byte(`{"b":1,"a":2}`))
	require.NoError(t, err)
	b, err := embedding.Text("title", []string{"x", "y"}, []byte(`{"a":2,"b":1}`))
	require.NoError(t, err)

	assert.Equal(t, a, b, "key order in the source JSON must not change the embedding input text")
}

func TestEmbedIsDeterministic(t *testing.T) {
	m := embedding.NewModel(nil)

	v1, err := m.Embed("hello world")
	require.NoError(t, err)
	v2, err := m.Embed("hello world")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 384)
}

func TestEmbedIsL2Normalized(t *testing.T) {
	m := embedding.NewModel(nil)

	vec, err := m.Embed("a reasonably long piece of text to embed")
	require.NoError(t, err)

	var sumSquares float64
	for _, f := range vec {
		sumSquares += float64(f) * float64(f)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSquares), 1e-4)
}

func TestEmbedDistinguishesDifferentText(t *testing.T) {
	m := embedding.NewModel(nil)

	v1, err := m.Embed("alpha")
	require.NoError(t, err)
	v2, err := m.Embed("omega")
	require.NoError(t, err)

	assert.NotEqual(t, v1, v2)
}

func TestZeroVectorHasCorrectDimensionsAndIsZero(t *testing.T) {
	vec := embedding.ZeroVector()
	assert.Len(t, vec, 384)
	for _, f := range vec {
		assert.Equal(t, float32(0), f)
	}
}

func TestEmbedBreadcrumbDegradesToZeroVectorOnBadContext(t *testing.T) {
	m := embedding.NewModel(nil)

	vec := m.EmbedBreadcrumb("title", nil, []byte(`not json`))
	assert.Equal(t, embedding.ZeroVector(), vec)
}
